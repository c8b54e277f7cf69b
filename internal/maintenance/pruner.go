// Package maintenance remove dados antigos que não servem mais a apostas em aberto.
package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Policy define as janelas de retenção
type Policy struct {
	OddsAge        time.Duration // odds de eventos que começaram antes disso
	EventAge       time.Duration // eventos sem apostas pendentes
	LedgerAge      time.Duration // lançamentos de carteira
	BlockedMarkets []string
	Bookmaker      string // se definido, odds de outras casas são removidas
}

type Report struct {
	Odds          int64
	Events        int64
	LedgerRows    int64
	BlockedQuotes int64
	ForeignQuotes int64
}

type Pruner struct {
	DB     *sql.DB
	Log    *zap.Logger
	Policy Policy
	Now    func() time.Time

	OnDeleted func(table string, n int64)
}

// Run executa cada etapa de forma independente; uma falha não impede as demais.
func (p *Pruner) Run(ctx context.Context) (Report, error) {
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}
	var rep Report
	var errs []error

	step := func(name string, dst *int64, fn func(context.Context, time.Time) (int64, error)) {
		n, err := fn(ctx, now)
		if err != nil {
			p.Log.Error("prune step failed", zap.String("step", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
		p.Log.Info("prune step done", zap.String("step", name), zap.Int64("rows", n))
		if p.OnDeleted != nil {
			p.OnDeleted(name, n)
		}
	}

	if p.Policy.OddsAge > 0 {
		step("odds", &rep.Odds, p.pruneOdds)
	}
	if p.Policy.EventAge > 0 {
		step("events", &rep.Events, p.pruneEvents)
	}
	if p.Policy.LedgerAge > 0 {
		step("wallet_transactions", &rep.LedgerRows, p.pruneLedger)
	}
	if len(p.Policy.BlockedMarkets) > 0 {
		step("blocked_markets", &rep.BlockedQuotes, p.pruneBlocked)
	}
	if strings.TrimSpace(p.Policy.Bookmaker) != "" {
		step("foreign_bookmakers", &rep.ForeignQuotes, p.pruneForeign)
	}
	return rep, errors.Join(errs...)
}

func (p *Pruner) pruneOdds(ctx context.Context, now time.Time) (int64, error) {
	return p.exec(ctx, `
		DELETE FROM odds o
		USING events e
		WHERE e.event_id = o.event_id AND e.commence_time < $1`, now.Add(-p.Policy.OddsAge))
}

// pruneEvents mantém eventos que ainda têm apostas pendentes
func (p *Pruner) pruneEvents(ctx context.Context, now time.Time) (int64, error) {
	return p.exec(ctx, `
		DELETE FROM events e
		WHERE e.commence_time < $1
		  AND NOT EXISTS (SELECT 1 FROM bets b WHERE b.event_id = e.event_id AND b.status = 'pending')`,
		now.Add(-p.Policy.EventAge))
}

// pruneLedger apaga lançamentos antigos e soma o que foi apagado ao
// initial_balance, para que balance = initial_balance + Σ change_amt continue valendo.
func (p *Pruner) pruneLedger(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := p.DB.QueryRowContext(ctx, `
		WITH pruned AS (
			DELETE FROM wallet_transactions WHERE created_at < $1
			RETURNING user_id, change_amt
		), carried AS (
			UPDATE wallets w SET initial_balance = w.initial_balance + c.total
			FROM (SELECT user_id, SUM(change_amt) AS total FROM pruned GROUP BY user_id) c
			WHERE w.user_id = c.user_id
			RETURNING 1
		)
		SELECT COUNT(*) FROM pruned`, now.Add(-p.Policy.LedgerAge)).Scan(&n)
	return n, err
}

func (p *Pruner) pruneBlocked(ctx context.Context, _ time.Time) (int64, error) {
	markets := make([]string, 0, len(p.Policy.BlockedMarkets))
	for _, m := range p.Policy.BlockedMarkets {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markets = append(markets, m)
		}
	}
	return p.exec(ctx, `DELETE FROM odds WHERE market = ANY($1)`, pq.Array(markets))
}

func (p *Pruner) pruneForeign(ctx context.Context, _ time.Time) (int64, error) {
	return p.exec(ctx, `DELETE FROM odds WHERE lower(bookmaker) <> lower($1)`, strings.TrimSpace(p.Policy.Bookmaker))
}

func (p *Pruner) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := p.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
