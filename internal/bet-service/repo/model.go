package repo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bet é o modelo persistido no Postgres.
type Bet struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	EventID         string              `json:"eventId"`
	Market          string              `json:"market"`
	Outcome         string              `json:"outcome"`
	Line            decimal.NullDecimal `json:"line"`
	Odds            decimal.Decimal     `json:"odds"`
	Stake           decimal.Decimal     `json:"stake"`
	PotentialReturn decimal.Decimal     `json:"potentialReturn"`
	Status          string              `json:"status"`
	ActualReturn    decimal.NullDecimal `json:"actualReturn"`
	SettleReason    string              `json:"settleReason,omitempty"`
	PlacedAt        time.Time           `json:"placedAt"`
	SettledAt       *time.Time          `json:"settledAt,omitempty"`

	// dados do evento, preenchidos nas listagens
	HomeTeam string `json:"homeTeam,omitempty"`
	AwayTeam string `json:"awayTeam,omitempty"`
}

// PlaceParams é a aposta pedida pelo usuário. CachedPrice vem do Redis quando
// disponível; Expected é a odd que o cliente viu (opcional).
type PlaceParams struct {
	UserID      string
	EventID     string
	Market      string
	Outcome     string
	Line        decimal.NullDecimal
	Stake       decimal.Decimal
	Expected    decimal.NullDecimal
	CachedPrice decimal.NullDecimal
	Now         time.Time
}

// Placed é o resultado de uma colocação bem-sucedida
type Placed struct {
	Bet          Bet
	BalanceAfter decimal.Decimal
}

// Stats agrega o histórico de apostas de um usuário
type Stats struct {
	UserID    string          `json:"userId"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Voids     int             `json:"voids"`
	Pending   int             `json:"pending"`
	Cancelled int             `json:"cancelled"`
	Staked    decimal.Decimal `json:"staked"`
	Returned  decimal.Decimal `json:"returned"`
	NetProfit decimal.Decimal `json:"netProfit"`
	WinRate   decimal.Decimal `json:"winRate"` // % sobre apostas decididas (won+lost)
}

// LeaderboardEntry é uma linha do ranking: saldo, depois lucro líquido, depois volume
type LeaderboardEntry struct {
	Rank      int             `json:"rank"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	NetProfit decimal.Decimal `json:"netProfit"`
	Bets      int             `json:"bets"`
}

// ProfitPoint é o lucro líquido acumulado ao fim de um dia (UTC)
type ProfitPoint struct {
	Day string          `json:"day"` // 2006-01-02
	Net decimal.Decimal `json:"net"`
}
