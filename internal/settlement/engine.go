package settlement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

// ErrNotPending: a aposta já foi liquidada por outra execução
var ErrNotPending = errors.New("bet is no longer pending")

// Bet é uma aposta pendente já com os dados do evento
type Bet struct {
	ID           string
	UserID       string
	EventID      string
	SportKey     string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Market       string
	Outcome      string
	Line         decimal.NullDecimal
	Odds         decimal.Decimal
	Stake        decimal.Decimal
}

// Settlement é a transição terminal de uma aposta
type Settlement struct {
	Bet    Bet
	Status Status
	Payout decimal.Decimal
	Reason string
}

// Filter restringe as apostas candidatas
type Filter struct {
	Sport           string
	EventID         string
	IncludeUpcoming bool
	Now             time.Time
}

// Store persiste a liquidação. Settle deve creditar a carteira (se houver
// pagamento) e mudar o status na mesma transação, retornando ErrNotPending se a
// aposta já não estiver pendente.
type Store interface {
	PendingBets(ctx context.Context, f Filter) ([]Bet, error)
	Settle(ctx context.Context, s Settlement) error
	MarkEventCompleted(ctx context.Context, eventID string) error
}

// ScoresSource fornece o snapshot de placares por esporte
type ScoresSource interface {
	Scores(ctx context.Context, sport string, daysFrom int) ([]normalizer.ScoreEvent, []byte, error)
}

// Publisher publica eventos de contrato (Kafka)
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

// Options são os filtros vindos da linha de comando
type Options struct {
	Sport           string
	EventID         string
	DaysFrom        int
	IncludeUpcoming bool
	DumpScores      bool
}

// Report resume uma execução
type Report struct {
	Candidates   int
	Won          int
	Lost         int
	Void         int
	Skipped      int
	Failed       int
	SportsFailed []string
}

func (r Report) Settled() int { return r.Won + r.Lost + r.Void }

// Engine executa o ciclo de liquidação
type Engine struct {
	Log       *zap.Logger
	Store     Store
	Scores    ScoresSource
	Registry  *Registry
	Matcher   normalizer.TeamMatcher
	Publisher Publisher // opcional
	Now       func() time.Time

	OnSettled func(status string) // métricas
	OnSkipped func(reason string) // métricas
	OnError   func(stage string)  // métricas por fase
}

// Run liquida o que for possível. Falhas por esporte ou por aposta são logadas
// e não interrompem a execução; só a consulta de candidatas é fatal.
func (e *Engine) Run(ctx context.Context, opt Options) (Report, error) {
	var rep Report
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now()
	}
	if opt.DaysFrom <= 0 {
		opt.DaysFrom = 3
	}

	bets, err := e.Store.PendingBets(ctx, Filter{
		Sport:           opt.Sport,
		EventID:         opt.EventID,
		IncludeUpcoming: opt.IncludeUpcoming,
		Now:             now,
	})
	if err != nil {
		e.onError("candidates")
		return rep, err
	}
	rep.Candidates = len(bets)
	if len(bets) == 0 {
		e.Log.Info("no pending bets to settle")
		return rep, nil
	}

	bySport := make(map[string][]Bet)
	for _, b := range bets {
		bySport[b.SportKey] = append(bySport[b.SportKey], b)
	}
	sports := make([]string, 0, len(bySport))
	for s := range bySport {
		sports = append(sports, s)
	}
	sort.Strings(sports)

	for _, sport := range sports {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		e.settleSport(ctx, sport, bySport[sport], opt, &rep)
	}

	e.Log.Info("settlement run finished",
		zap.Int("candidates", rep.Candidates),
		zap.Int("won", rep.Won),
		zap.Int("lost", rep.Lost),
		zap.Int("void", rep.Void),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Strings("sports_failed", rep.SportsFailed),
	)
	return rep, nil
}

func (e *Engine) settleSport(ctx context.Context, sport string, bets []Bet, opt Options, rep *Report) {
	log := e.Log.With(zap.String("sport", sport))

	list, raw, err := e.Scores.Scores(ctx, sport, opt.DaysFrom)
	if err != nil {
		log.Warn("scores fetch failed; sport skipped", zap.Int("bets", len(bets)), zap.Error(err))
		e.onError("fetch")
		rep.SportsFailed = append(rep.SportsFailed, sport)
		rep.Skipped += len(bets)
		return
	}
	if opt.DumpScores {
		log.Info("scores snapshot", zap.ByteString("payload", raw))
	}
	snapshot := normalizer.IndexScores(list)

	type resolved struct {
		game normalizer.GameResult
		err  error
	}
	games := make(map[string]resolved)

	for _, b := range bets {
		if ctx.Err() != nil {
			return
		}
		blog := log.With(zap.String("bet_id", b.ID), zap.String("event_id", b.EventID))

		se, ok := snapshot[b.EventID]
		if !ok {
			e.skip(blog, rep, "not_in_snapshot", nil)
			continue
		}
		g, seen := games[b.EventID]
		if !seen {
			game, err := e.Matcher.Resolve(se, b.HomeTeam, b.AwayTeam)
			g = resolved{game: game, err: err}
			games[b.EventID] = g
			if err == nil {
				if err := e.Store.MarkEventCompleted(ctx, b.EventID); err != nil {
					blog.Warn("mark event completed failed", zap.Error(err))
				}
			}
		}
		if g.err != nil {
			reason := "scores_unresolved"
			if errors.Is(g.err, normalizer.ErrNotCompleted) {
				reason = "not_completed"
			}
			e.skip(blog, rep, reason, g.err)
			continue
		}

		status, err := e.resolve(b, g.game)
		if err != nil {
			e.skip(blog, rep, "unresolvable", err)
			continue
		}

		payout, reason := Payout(status, b.Stake, b.Odds)
		s := Settlement{Bet: b, Status: status, Payout: payout, Reason: reason}
		if err := e.Store.Settle(ctx, s); err != nil {
			if errors.Is(err, ErrNotPending) {
				e.skip(blog, rep, "already_settled", err)
				continue
			}
			blog.Error("settle bet failed", zap.Error(err))
			e.onError("settle")
			rep.Failed++
			continue
		}

		switch status {
		case StatusWon:
			rep.Won++
		case StatusLost:
			rep.Lost++
		case StatusVoid:
			rep.Void++
		}
		if e.OnSettled != nil {
			e.OnSettled(string(status))
		}
		blog.Info("bet settled",
			zap.String("status", string(status)),
			zap.String("payout", payout.StringFixed(2)),
			zap.String("reason", reason))

		e.publish(ctx, blog, s, g.game)
	}
}

func (e *Engine) resolve(b Bet, g normalizer.GameResult) (Status, error) {
	res, ok := e.Registry.Get(b.Market)
	if !ok {
		return "", unresolvable("no resolver for market %q", b.Market)
	}
	sel, err := res.Parse(b.Outcome, b.Line)
	if err != nil {
		return "", err
	}
	return res.Resolve(sel, g)
}

func (e *Engine) skip(log *zap.Logger, rep *Report, reason string, err error) {
	rep.Skipped++
	if e.OnSkipped != nil {
		e.OnSkipped(reason)
	}
	if err != nil {
		log.Debug("bet left pending", zap.String("reason", reason), zap.Error(err))
		return
	}
	log.Debug("bet left pending", zap.String("reason", reason))
}

func (e *Engine) publish(ctx context.Context, log *zap.Logger, s Settlement, g normalizer.GameResult) {
	if e.Publisher == nil {
		return
	}
	ev := events.BetSettled{
		BetID:     s.Bet.ID,
		UserID:    s.Bet.UserID,
		EventID:   s.Bet.EventID,
		Status:    string(s.Status),
		Reason:    s.Reason,
		Payout:    s.Payout,
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Ts:        time.Now().UTC(),
	}
	if err := e.Publisher.Publish(ctx, s.Bet.ID, ev); err != nil {
		log.Warn("publish bet_settled failed", zap.Error(err))
		e.onError("publish")
	}
}

func (e *Engine) onError(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}
