package events

import "github.com/shopspring/decimal"

type BetPlaced struct {
	BetID           string              `json:"bet_id"`
	UserID          string              `json:"user_id"`
	EventID         string              `json:"event_id"`
	Market          string              `json:"market"`
	Outcome         string              `json:"outcome"`
	Line            decimal.NullDecimal `json:"line"`
	Stake           decimal.Decimal     `json:"stake"`
	Odds            decimal.Decimal     `json:"odds"`
	PotentialReturn decimal.Decimal     `json:"potential_return"`
	BalanceAfter    decimal.Decimal     `json:"balance_after"`
	TsUnixMs        int64               `json:"ts_unix_ms"`
}
