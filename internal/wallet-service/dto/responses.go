package dto

import "github.com/shopspring/decimal"

type WalletResponse struct {
	UserID         string          `json:"userId"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type BalanceResponse struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
