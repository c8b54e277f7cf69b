package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// EventID ou UserID: tópico de odds do evento ou de alertas do usuário
type ClientMsg struct {
	Type    string `json:"type"`
	EventID string `json:"eventId,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

// Update é o envelope recebido do Redis e repassado aos clientes do tópico
type Update struct {
	Type    string          `json:"type"` // odds | alert
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}
