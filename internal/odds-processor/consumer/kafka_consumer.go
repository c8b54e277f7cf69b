package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

// ErrUndecodable: mensagem sem o contrato OddsUpdate; vai para a DLQ
var ErrUndecodable = errors.New("undecodable odds update")

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type QuoteCache interface {
	SetEvent(ctx context.Context, e events.OddsUpdate) error
}

type Broadcaster interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

// Processor consome odds_updates, atualiza o cache de cotações e repassa ao
// hub WS via Redis Pub/Sub. Callbacks de métricas são opcionais.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Cache       QuoteCache
	Broadcaster Broadcaster
	Channel     string
	DLQ         MessageWriter // opcional

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnBroadcast func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		if err := p.Handle(ctx, m); err != nil {
			p.Log.Warn("odds update not processed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// Handle processa uma mensagem. Falha de cache não impede o broadcast.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.OddsUpdate
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.EventID == "" {
		p.onError("decode")
		if err == nil {
			err = errors.New("missing event_id")
		}
		p.deadLetter(ctx, m, err)
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	if err := p.Cache.SetEvent(ctx, ev); err != nil {
		p.Log.Warn("redis set failed", zap.String("event_id", ev.EventID), zap.Error(err))
		p.onError("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	if p.Broadcaster == nil {
		return nil
	}
	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	env := pubsub.Envelope{Type: "odds", Topic: pubsub.EventTopic(ev.EventID), Payload: ev}
	if err := p.Broadcaster.PublishJSON(bctx, p.Channel, env); err != nil {
		p.onError("broadcast")
		return fmt.Errorf("ws broadcast publish: %w", err)
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
	return nil
}

// deadLetter preserva a mensagem original com o motivo no header
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_topic", Value: []byte(m.Topic)},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
