package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sport representa um esporte do catálogo
type Sport struct {
	SportKey string `json:"sportKey"`
	Title    string `json:"title"`
	Group    string `json:"group"`
}

// Event representa um evento esportivo (ex: partida de futebol)
type Event struct {
	EventID      string    `json:"eventId"`
	SportKey     string    `json:"sportKey"`
	HomeTeam     string    `json:"homeTeam"`
	AwayTeam     string    `json:"awayTeam"`
	CommenceTime time.Time `json:"commenceTime"`
	Status       string    `json:"status"`
}

// SearchHit é um evento encontrado pela busca, com a pontuação usada na ordenação
type SearchHit struct {
	Event
	SportTitle string `json:"sportTitle"`
	Score      int    `json:"score"`
}

// Market representa um mercado de aposta (ex: resultado final)
type Market struct {
	Market string `json:"market"`
	Label  string `json:"label"`
}

// Odds é uma cotação de um bookmaker, com o preço também em formato americano
type Odds struct {
	Bookmaker string              `json:"bookmaker"`
	Market    string              `json:"market"`
	Outcome   string              `json:"outcome"`
	Line      decimal.NullDecimal `json:"line"`
	Price     decimal.Decimal     `json:"price"`
	American  string              `json:"american"`
	Label     string              `json:"label"`
}

type EventOdds struct {
	Event Event  `json:"event"`
	Odds  []Odds `json:"odds"`
}
