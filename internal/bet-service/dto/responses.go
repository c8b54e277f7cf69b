package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/paper-sportsbook/internal/bet-service/repo"
)

type PlaceBetResponse struct {
	Bet          repo.Bet        `json:"bet"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Message      string          `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error       string           `json:"error"`
	CurrentOdds *decimal.Decimal `json:"currentOdds,omitempty"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
