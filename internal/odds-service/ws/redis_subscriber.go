package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta os canais de odds e alertas e repassa cada
// envelope ao Hub, que entrega aos clientes inscritos no tópico
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, hub *Hub, channels ...string) {
	sub := r.Subscribe(ctx, channels...)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				var upd Update
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil || upd.Topic == "" {
					log.Warn("ws subscriber: invalid envelope", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				hub.Broadcast(upd)
			}
		}
	}()
}
