package producer

import (
	"context"
	"time"

	"github.com/radieske/paper-sportsbook/internal/shared/kafka"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

type KafkaPublisher struct {
	pub *kafka.JSONPublisher
}

func NewKafkaPublisher(w kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{pub: kafka.NewJSONPublisher(w)}
}

// PublishBetPlaced usa o bet_id como chave de partição
func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.pub.Publish(ctx, e.BetID, e)
}
