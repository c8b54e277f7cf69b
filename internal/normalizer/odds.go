// Package normalizer converte os payloads do provedor de odds em registros
// canônicos e concentra as regras puras de formato de odds e nomes de times.
package normalizer

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidOdds indica uma string de odd que não é americana nem decimal válida
var ErrInvalidOdds = errors.New("invalid odds")

var (
	one       = decimal.NewFromInt(1)
	two       = decimal.NewFromInt(2)
	hundred   = decimal.NewFromInt(100)
	oddsInput = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// DecimalToAmerican formata uma odd decimal no padrão americano (+150 / -200).
// Odds <= 1.0 não têm representação e viram "N/A".
func DecimalToAmerican(d decimal.Decimal) string {
	if d.LessThanOrEqual(one) {
		return "N/A"
	}
	if d.GreaterThanOrEqual(two) {
		return "+" + d.Sub(one).Mul(hundred).Round(0).String()
	}
	return hundred.Neg().Div(d.Sub(one)).Round(0).String()
}

// AmericanToDecimal aceita odds americanas (|v| >= 100) ou uma odd decimal
// pura (> 1.0). Qualquer outra entrada retorna ErrInvalidOdds.
func AmericanToDecimal(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if !oddsInput.MatchString(s) {
		return decimal.Zero, ErrInvalidOdds
	}
	v, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidOdds
	}

	switch {
	case v.Abs().GreaterThanOrEqual(hundred):
		if v.IsPositive() {
			return one.Add(v.Div(hundred)), nil
		}
		return one.Add(hundred.Div(v.Abs())), nil
	case v.GreaterThan(one):
		return v, nil
	default:
		return decimal.Zero, ErrInvalidOdds
	}
}
