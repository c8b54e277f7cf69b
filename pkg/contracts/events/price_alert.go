package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceAlert é publicado no Redis Pub/Sub quando um alerta de preço dispara
type PriceAlert struct {
	NotificationID int64               `json:"notificationId"`
	TrackedID      int64               `json:"trackedId"`
	UserID         string              `json:"userId"`
	EventID        string              `json:"eventId"`
	Market         string              `json:"market"`
	Outcome        string              `json:"outcome"`
	Line           decimal.NullDecimal `json:"line"`
	Price          decimal.Decimal     `json:"price"`
	Bookmaker      string              `json:"bookmaker,omitempty"`
	Message        string              `json:"message"`
	CreatedAt      time.Time           `json:"createdAt"`
}
