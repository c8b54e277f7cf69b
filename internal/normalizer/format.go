package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Mercados suportados
const (
	MarketH2H     = "h2h"
	MarketSpreads = "spreads"
	MarketTotals  = "totals"
)

// PriceScale é a escala de odds e linhas no banco (NUMERIC(10,3) / NUMERIC(12,3)).
// Toda cotação é arredondada nela antes de ser comparada ou gravada.
const PriceScale = 3

// RoundPrice arredonda uma odd ou linha para PriceScale
func RoundPrice(d decimal.Decimal) decimal.Decimal { return d.Round(PriceScale) }

// RoundLine é RoundPrice para linhas opcionais
func RoundLine(l decimal.NullDecimal) decimal.NullDecimal {
	if !l.Valid {
		return l
	}
	return decimal.NewNullDecimal(RoundPrice(l.Decimal))
}

// IsLineMarket informa se o mercado exige uma linha (point)
func IsLineMarket(market string) bool {
	return market == MarketSpreads || market == MarketTotals
}

// MarketLabel retorna o nome exibido ao usuário
func MarketLabel(market string) string {
	switch market {
	case MarketH2H:
		return "Moneyline"
	case MarketSpreads:
		return "Spread"
	case MarketTotals:
		return "Total"
	default:
		return strings.ToUpper(market)
	}
}

// FormatLine formata a linha; spreads sempre levam sinal
func FormatLine(market string, line decimal.NullDecimal) string {
	if !line.Valid {
		return ""
	}
	s := line.Decimal.String()
	if market == MarketSpreads && !line.Decimal.IsNegative() {
		s = "+" + s
	}
	return s
}

// FormatOutcome junta outcome e linha, ex.: "Lakers +3.5", "Over 210"
func FormatOutcome(market, outcome string, line decimal.NullDecimal) string {
	if l := FormatLine(market, line); l != "" {
		return outcome + " " + l
	}
	return outcome
}
