// Package settlement resolve apostas pendentes contra placares finais e
// liquida cada uma numa transação própria.
package settlement

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
)

// Epsilon usado nas comparações de linha
const Epsilon = 1e-6

// ErrUnresolvable: dados insuficientes para liquidar; a aposta segue pendente
var ErrUnresolvable = errors.New("bet unresolvable")

func unresolvable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnresolvable, fmt.Sprintf(format, args...))
}

// Status da aposta
type Status string

const (
	StatusPending   Status = "pending"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusVoid      Status = "void"
	StatusCancelled Status = "cancelled"
)

// Selection é a escolha tipada de uma aposta; cada mercado tem a sua
type Selection interface {
	Market() string
}

type H2HSelection struct {
	Team string
}

type SpreadSelection struct {
	Team string
	Line float64 // sinal na perspectiva do time
}

type TotalsSelection struct {
	Over bool
	Line float64
}

func (H2HSelection) Market() string    { return normalizer.MarketH2H }
func (SpreadSelection) Market() string { return normalizer.MarketSpreads }
func (TotalsSelection) Market() string { return normalizer.MarketTotals }

// MarketResolver interpreta e resolve apostas de um mercado
type MarketResolver interface {
	Market() string
	Parse(outcome string, line decimal.NullDecimal) (Selection, error)
	Resolve(sel Selection, g normalizer.GameResult) (Status, error)
}

// Registry mapeia a chave do mercado para o resolver
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]MarketResolver
}

// NewRegistry cria o registro com h2h, spreads e totals
func NewRegistry(m normalizer.TeamMatcher) *Registry {
	r := &Registry{resolvers: make(map[string]MarketResolver)}
	r.Register(H2HResolver{Matcher: m})
	r.Register(SpreadResolver{Matcher: m})
	r.Register(TotalsResolver{})
	return r
}

func (r *Registry) Register(res MarketResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[res.Market()] = res
}

func (r *Registry) Get(market string) (MarketResolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[market]
	return res, ok
}

func (r *Registry) Markets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.resolvers))
	for k := range r.resolvers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// H2HResolver: vence quem marcou mais; empate anula
type H2HResolver struct {
	Matcher normalizer.TeamMatcher
}

func (H2HResolver) Market() string { return normalizer.MarketH2H }

func (H2HResolver) Parse(outcome string, _ decimal.NullDecimal) (Selection, error) {
	team := strings.TrimSpace(outcome)
	if team == "" {
		return nil, unresolvable("empty h2h outcome")
	}
	return H2HSelection{Team: team}, nil
}

func (r H2HResolver) Resolve(s Selection, g normalizer.GameResult) (Status, error) {
	sel, ok := s.(H2HSelection)
	if !ok {
		return "", unresolvable("h2h resolver got %T", s)
	}
	winner := g.Winner()
	if winner == normalizer.SideNone {
		return StatusVoid, nil
	}
	if normalizer.NormalizeTeamLabel(sel.Team) == "draw" {
		return StatusLost, nil
	}
	side, ok := r.Matcher.Match(sel.Team, g.HomeTeam, g.AwayTeam)
	if !ok {
		return "", unresolvable("outcome %q matches neither %q nor %q", sel.Team, g.HomeTeam, g.AwayTeam)
	}
	if side == winner {
		return StatusWon, nil
	}
	return StatusLost, nil
}

// SpreadResolver: placar do time + linha contra o placar do adversário
type SpreadResolver struct {
	Matcher normalizer.TeamMatcher
}

func (SpreadResolver) Market() string { return normalizer.MarketSpreads }

func (SpreadResolver) Parse(outcome string, line decimal.NullDecimal) (Selection, error) {
	team := strings.TrimSpace(outcome)
	if team == "" {
		return nil, unresolvable("empty spread outcome")
	}
	if !line.Valid {
		return nil, unresolvable("spread bet without line")
	}
	return SpreadSelection{Team: team, Line: line.Decimal.InexactFloat64()}, nil
}

func (r SpreadResolver) Resolve(s Selection, g normalizer.GameResult) (Status, error) {
	sel, ok := s.(SpreadSelection)
	if !ok {
		return "", unresolvable("spread resolver got %T", s)
	}
	if g.KeywordOnly {
		return "", unresolvable("spread needs numeric scores")
	}
	side, ok := r.Matcher.Match(sel.Team, g.HomeTeam, g.AwayTeam)
	if !ok {
		return "", unresolvable("outcome %q matches neither %q nor %q", sel.Team, g.HomeTeam, g.AwayTeam)
	}
	diff := g.Score(side) + sel.Line - g.Score(side.Opposite())
	return compare(diff), nil
}

// TotalsResolver: over/under contra a soma dos placares
type TotalsResolver struct{}

func (TotalsResolver) Market() string { return normalizer.MarketTotals }

func (TotalsResolver) Parse(outcome string, line decimal.NullDecimal) (Selection, error) {
	var over bool
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "over":
		over = true
	case "under":
	default:
		return nil, unresolvable("totals outcome %q is neither over nor under", outcome)
	}
	if !line.Valid {
		return nil, unresolvable("totals bet without line")
	}
	return TotalsSelection{Over: over, Line: line.Decimal.InexactFloat64()}, nil
}

func (TotalsResolver) Resolve(s Selection, g normalizer.GameResult) (Status, error) {
	sel, ok := s.(TotalsSelection)
	if !ok {
		return "", unresolvable("totals resolver got %T", s)
	}
	if g.KeywordOnly {
		return "", unresolvable("totals needs numeric scores")
	}
	diff := g.Total() - sel.Line
	if !sel.Over {
		diff = -diff
	}
	return compare(diff), nil
}

func compare(diff float64) Status {
	switch {
	case math.Abs(diff) <= Epsilon:
		return StatusVoid
	case diff > 0:
		return StatusWon
	default:
		return StatusLost
	}
}

// Payout calcula o crédito e o motivo para um status terminal
func Payout(status Status, stake, odds decimal.Decimal) (decimal.Decimal, string) {
	switch status {
	case StatusWon:
		return stake.Mul(odds).Round(2), ledger.ReasonPayout
	case StatusVoid:
		return stake.Round(2), ledger.ReasonVoidRefund
	default:
		return decimal.Zero, ledger.ReasonLoss
	}
}
