package cache

import (
	"strings"

	"github.com/shopspring/decimal"
)

// QuoteKey é a chave do melhor preço corrente de uma seleção:
// "odds:{event}:{market}:{outcome}:{line}", com "-" para mercados sem linha.
func QuoteKey(eventID, market, outcome string, line decimal.NullDecimal) string {
	l := "-"
	if line.Valid {
		l = line.Decimal.StringFixed(3)
	}
	return "odds:" + eventID + ":" + strings.ToLower(market) + ":" + strings.ToLower(strings.TrimSpace(outcome)) + ":" + l
}

// EventKey guarda o último snapshot de cotações do evento
func EventKey(eventID string) string { return "odds:event:" + eventID }
