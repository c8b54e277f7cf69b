package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento emitido pelo settlement-worker após liquidar uma aposta.
type BetSettled struct {
	BetID     string          `json:"betId"`
	UserID    string          `json:"userId"`
	EventID   string          `json:"eventId"`
	Status    string          `json:"status"` // "won" | "lost" | "void"
	Reason    string          `json:"reason"` // bet_payout | bet_void_refund | bet_loss
	Payout    decimal.Decimal `json:"payout"`
	HomeScore float64         `json:"homeScore"`
	AwayScore float64         `json:"awayScore"`
	Ts        time.Time       `json:"ts"`
}
