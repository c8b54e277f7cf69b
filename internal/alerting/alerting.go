// Package alerting dispara notificações únicas quando uma cotação acompanhada
// atinge o preço-alvo do usuário. Um alerta só volta a disparar quando o preço
// supera estritamente o último preço notificado.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

// Epsilon da regra de re-disparo
var Epsilon = decimal.RequireFromString("0.000001")

var (
	ErrNotFound      = errors.New("tracked selection not found")
	ErrInvalidTarget = errors.New("target price must be greater than 1")
	ErrInvalidTrack  = errors.New("event, market and outcome are required")
)

// Tracked é uma seleção acompanhada
type Tracked struct {
	ID                int64               `json:"id"`
	UserID            string              `json:"userId"`
	EventID           string              `json:"eventId"`
	Market            string              `json:"market"`
	Outcome           string              `json:"outcome"`
	Line              decimal.NullDecimal `json:"line"`
	TargetPrice       decimal.Decimal     `json:"targetPrice"`
	LastNotifiedAt    *time.Time          `json:"lastNotifiedAt,omitempty"`
	LastNotifiedPrice decimal.NullDecimal `json:"lastNotifiedPrice"`
}

// Notification é o registro gravado quando um alerta dispara
type Notification struct {
	ID           int64               `json:"id"`
	UserID       string              `json:"userId"`
	TrackedID    int64               `json:"trackedId"`
	EventID      string              `json:"eventId"`
	Market       string              `json:"market"`
	Outcome      string              `json:"outcome"`
	Line         decimal.NullDecimal `json:"line"`
	CurrentPrice decimal.Decimal     `json:"currentPrice"`
	Bookmaker    string              `json:"bookmaker"`
	Message      string              `json:"message"`
	CreatedAt    time.Time           `json:"createdAt"`
	ReadAt       *time.Time          `json:"readAt,omitempty"`
}

type TrackRequest struct {
	UserID      string
	EventID     string
	Market      string
	Outcome     string
	Line        decimal.NullDecimal
	TargetPrice decimal.Decimal
}

// Store é a persistência do engine (Postgres em produção)
type Store interface {
	// MatchingTracked busca seleções com igualdade de linha null-safe
	MatchingTracked(ctx context.Context, q normalizer.Quote) ([]Tracked, error)
	// Fire grava last_notified_* de forma condicional e insere a notificação
	// na mesma transação; fired=false quando outro processo já disparou.
	Fire(ctx context.Context, t Tracked, q normalizer.Quote, message string) (n Notification, fired bool, err error)
	EventTeams(ctx context.Context, eventID string) (home, away string, ok bool, err error)

	Upsert(ctx context.Context, req TrackRequest) (Tracked, error)
	Delete(ctx context.Context, userID string, id int64) error
	ListTracked(ctx context.Context, userID string) ([]Tracked, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, id int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Broadcaster entrega o alerta ao hub WS (Redis Pub/Sub)
type Broadcaster interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

type Engine struct {
	Log         *zap.Logger
	Store       Store
	Broadcaster Broadcaster // opcional
	Channel     string
	OnFired     func()
}

// ShouldFire aplica a regra: preço >= alvo e (nunca notificado ou melhora estrita)
func ShouldFire(t Tracked, price decimal.Decimal) bool {
	if price.LessThan(t.TargetPrice) {
		return false
	}
	if !t.LastNotifiedPrice.Valid {
		return true
	}
	return price.GreaterThan(t.LastNotifiedPrice.Decimal.Add(Epsilon))
}

// OnQuote avalia uma cotação recém-ingerida contra as seleções acompanhadas
func (e *Engine) OnQuote(ctx context.Context, q normalizer.Quote) (int, error) {
	// mesma escala de last_notified_price, senão o preço gravado nunca alcança o recebido
	q.Price = normalizer.RoundPrice(q.Price)
	q.Line = normalizer.RoundLine(q.Line)

	tracked, err := e.Store.MatchingTracked(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("load tracked: %w", err)
	}
	if len(tracked) == 0 {
		return 0, nil
	}

	var (
		fired   int
		label   string
		labeled bool
	)
	for _, t := range tracked {
		if !ShouldFire(t, q.Price) {
			continue
		}
		if !labeled {
			label = e.eventLabel(ctx, q.EventID)
			labeled = true
		}
		msg := Message(label, t, q)

		n, ok, err := e.Store.Fire(ctx, t, q, msg)
		if err != nil {
			e.Log.Error("fire alert failed", zap.Int64("tracked_id", t.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		fired++
		if e.OnFired != nil {
			e.OnFired()
		}
		e.Log.Info("price alert fired",
			zap.Int64("tracked_id", t.ID),
			zap.String("user_id", t.UserID),
			zap.String("event_id", q.EventID),
			zap.String("price", q.Price.String()))
		e.broadcast(ctx, n)
	}
	return fired, nil
}

func (e *Engine) eventLabel(ctx context.Context, eventID string) string {
	home, away, ok, err := e.Store.EventTeams(ctx, eventID)
	if err != nil {
		e.Log.Warn("event lookup failed", zap.String("event_id", eventID), zap.Error(err))
	}
	if !ok || err != nil {
		return "Event " + eventID
	}
	return home + " vs " + away
}

func (e *Engine) broadcast(ctx context.Context, n Notification) {
	if e.Broadcaster == nil {
		return
	}
	alert := events.PriceAlert{
		NotificationID: n.ID,
		TrackedID:      n.TrackedID,
		UserID:         n.UserID,
		EventID:        n.EventID,
		Market:         n.Market,
		Outcome:        n.Outcome,
		Line:           n.Line,
		Price:          n.CurrentPrice,
		Bookmaker:      n.Bookmaker,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}
	env := pubsub.Envelope{Type: "alert", Topic: pubsub.UserTopic(n.UserID), Payload: alert}
	if err := e.Broadcaster.PublishJSON(ctx, e.Channel, env); err != nil {
		e.Log.Warn("alert broadcast failed", zap.Int64("notification_id", n.ID), zap.Error(err))
	}
}

// Message monta o texto da notificação
func Message(eventLabel string, t Tracked, q normalizer.Quote) string {
	msg := fmt.Sprintf("%s - %s %s reached %s (now %s",
		eventLabel,
		normalizer.MarketLabel(t.Market),
		normalizer.FormatOutcome(t.Market, t.Outcome, t.Line),
		t.TargetPrice.StringFixed(2),
		q.Price.StringFixed(2))
	if q.Bookmaker != "" {
		msg += " at " + q.Bookmaker
	}
	return msg + ")"
}

// Track cria ou atualiza a seleção acompanhada e rearma o alerta
func (e *Engine) Track(ctx context.Context, req TrackRequest) (Tracked, error) {
	if req.UserID == "" || req.EventID == "" || req.Market == "" || req.Outcome == "" {
		return Tracked{}, ErrInvalidTrack
	}
	req.TargetPrice = normalizer.RoundPrice(req.TargetPrice)
	req.Line = normalizer.RoundLine(req.Line)
	if req.TargetPrice.LessThanOrEqual(decimal.NewFromInt(1)) {
		return Tracked{}, ErrInvalidTarget
	}
	return e.Store.Upsert(ctx, req)
}

func (e *Engine) Untrack(ctx context.Context, userID string, id int64) error {
	return e.Store.Delete(ctx, userID, id)
}

func (e *Engine) ListTracked(ctx context.Context, userID string) ([]Tracked, error) {
	return e.Store.ListTracked(ctx, userID)
}

func (e *Engine) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	return e.Store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (e *Engine) UnreadCount(ctx context.Context, userID string) (int, error) {
	return e.Store.UnreadCount(ctx, userID)
}

func (e *Engine) MarkRead(ctx context.Context, userID string, id int64) error {
	return e.Store.MarkRead(ctx, userID, id)
}

func (e *Engine) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return e.Store.MarkAllRead(ctx, userID)
}
