package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publica mensagens nos canais consumidos pelo hub WS do odds-service
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// PublishJSON serializa v e publica no canal
func (b *RedisBroadcaster) PublishJSON(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, channel, payload)
}

// Envelope padrão lido pelo hub: Topic decide quem recebe (evento ou usuário)
type Envelope struct {
	Type    string `json:"type"` // "odds" | "alert"
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// EventTopic e UserTopic são as chaves de inscrição do hub
func EventTopic(eventID string) string { return "event:" + eventID }
func UserTopic(userID string) string   { return "user:" + userID }
