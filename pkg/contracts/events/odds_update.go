package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote é uma cotação de um bookmaker para um outcome de um mercado
type Quote struct {
	Bookmaker string              `json:"bookmaker"`
	Market    string              `json:"market"` // h2h | spreads | totals
	Outcome   string              `json:"outcome"`
	Line      decimal.NullDecimal `json:"line"`
	Price     decimal.Decimal     `json:"price"` // odd decimal
}

// Evento publicado no tópico "odds_updates" a cada ciclo de ingestão, um por evento
type OddsUpdate struct {
	EventID      string    `json:"event_id"`
	SportKey     string    `json:"sport_key"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Quotes       []Quote   `json:"quotes"`
	UpdatedAt    time.Time `json:"updated_at"`
	Source       string    `json:"source"`
}
