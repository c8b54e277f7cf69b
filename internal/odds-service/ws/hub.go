package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
)

const writeWait = 5 * time.Second

// client serializa as escritas de uma conexão (gorilla não aceita escritores concorrentes)
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por tópico
// (event:{id} para odds, user:{id} para alertas de preço)
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

func topicOf(msg ClientMsg) string {
	switch {
	case msg.EventID != "":
		return pubsub.EventTopic(msg.EventID)
	case msg.UserID != "":
		return pubsub.UserTopic(msg.UserID)
	default:
		return ""
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if t := topicOf(msg); t != "" {
				h.subscribe(t, c)
			}
		case "unsubscribe":
			if t := topicOf(msg); t != "" {
				h.unsubscribe(t, c)
			}
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for t, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, t)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(topic string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[topic]; !ok {
		h.subs[topic] = make(map[*client]struct{})
	}
	h.subs[topic][c] = struct{}{}
}

func (h *Hub) unsubscribe(topic string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[topic]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, topic)
		}
	}
}

// Subscribers retorna quantas conexões ouvem o tópico
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Broadcast envia a atualização para todos os clientes inscritos no tópico
func (h *Hub) Broadcast(update Update) int {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[update.Topic]))
	for c := range h.subs[update.Topic] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return 0
	}

	b, err := json.Marshal(update)
	if err != nil {
		return 0
	}
	sent := 0
	for _, c := range conns {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.String("topic", update.Topic), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
