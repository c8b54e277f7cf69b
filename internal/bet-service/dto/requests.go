package dto

import "github.com/shopspring/decimal"

type PlaceBetRequest struct {
	UserID  string              `json:"userId"`
	EventID string              `json:"eventId"`
	Market  string              `json:"market"`  // h2h | spreads | totals
	Outcome string              `json:"outcome"` // time, Over/Under
	Line    decimal.NullDecimal `json:"line"`
	Stake   decimal.Decimal     `json:"stake"`
	Odds    string              `json:"odds,omitempty"` // odd que o cliente viu, decimal ou americana
}

type TrackRequest struct {
	EventID     string              `json:"eventId"`
	Market      string              `json:"market"`
	Outcome     string              `json:"outcome"`
	Line        decimal.NullDecimal `json:"line"`
	TargetPrice string              `json:"targetPrice"` // decimal ou americana
}
