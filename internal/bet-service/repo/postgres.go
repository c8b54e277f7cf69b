package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
)

var (
	ErrBetNotFound   = errors.New("bet not found")
	ErrEventNotFound = errors.New("event not found")
	ErrEventStarted  = errors.New("event already started")
	ErrQuoteNotFound = errors.New("no current odds for selection")
)

// OddsChangedError: a odd vista pelo cliente não é mais a corrente
type OddsChangedError struct {
	Current decimal.Decimal
}

func (e *OddsChangedError) Error() string {
	return "odds changed; current=" + e.Current.String()
}

// Postgres implementa operações de persistência de apostas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Place valida evento e cotação, debita a carteira e grava a aposta na mesma
// transação. A odd gravada é a corrente (cache quando houver, senão o banco).
func (p *Postgres) Place(ctx context.Context, in PlaceParams) (Placed, error) {
	stake := in.Stake.Round(2)
	if !stake.IsPositive() {
		return Placed{}, ledger.ErrInvalidAmount
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Placed{}, err
	}
	defer tx.Rollback()

	var commence time.Time
	err = tx.QueryRowContext(ctx, `SELECT commence_time FROM events WHERE event_id = $1`, in.EventID).Scan(&commence)
	if errors.Is(err, sql.ErrNoRows) {
		return Placed{}, ErrEventNotFound
	}
	if err != nil {
		return Placed{}, fmt.Errorf("load event: %w", err)
	}
	if !commence.After(now) {
		return Placed{}, ErrEventStarted
	}

	var (
		price decimal.Decimal
		line  decimal.NullDecimal
	)
	err = tx.QueryRowContext(ctx, `
		SELECT price, line
		FROM odds
		WHERE event_id = $1 AND market = $2 AND outcome = $3
		  AND ((line IS NULL AND $4::numeric IS NULL) OR ABS(line - $4::numeric) < 0.0001)
		ORDER BY price DESC
		LIMIT 1`,
		in.EventID, in.Market, in.Outcome, in.Line).Scan(&price, &line)
	if errors.Is(err, sql.ErrNoRows) {
		return Placed{}, ErrQuoteNotFound
	}
	if err != nil {
		return Placed{}, fmt.Errorf("load quote: %w", err)
	}
	if in.CachedPrice.Valid {
		price = in.CachedPrice.Decimal
	}
	// bets.odds é NUMERIC(10,3): o retorno potencial usa a odd que a liquidação vai ler
	price = normalizer.RoundPrice(price)
	if in.Expected.Valid && !normalizer.RoundPrice(in.Expected.Decimal).Equal(price) {
		return Placed{}, &OddsChangedError{Current: price}
	}

	bet := Bet{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		EventID:         in.EventID,
		Market:          in.Market,
		Outcome:         in.Outcome,
		Line:            line,
		Odds:            price,
		Stake:           stake,
		PotentialReturn: stake.Mul(price).Round(2),
		Status:          "pending",
		PlacedAt:        now,
	}

	balance, err := ledger.DebitTx(ctx, tx, ledger.Posting{
		UserID:   in.UserID,
		Amount:   stake,
		Reason:   ledger.ReasonBet,
		RefBetID: bet.ID,
	})
	if err != nil {
		return Placed{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, event_id, market, outcome, line, odds, stake, potential_return, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)`,
		bet.ID, bet.UserID, bet.EventID, bet.Market, bet.Outcome, bet.Line, bet.Odds, bet.Stake, bet.PotentialReturn, bet.PlacedAt); err != nil {
		return Placed{}, fmt.Errorf("insert bet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Placed{}, err
	}
	return Placed{Bet: bet, BalanceAfter: balance}, nil
}

const betCols = `b.id, b.user_id, b.event_id, b.market, b.outcome, b.line, b.odds, b.stake, b.potential_return,
	b.status, b.actual_return, COALESCE(b.settle_reason, ''), b.placed_at, b.settled_at,
	COALESCE(e.home_team, ''), COALESCE(e.away_team, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (Bet, error) {
	var (
		b         Bet
		settledAt sql.NullTime
	)
	err := s.Scan(&b.ID, &b.UserID, &b.EventID, &b.Market, &b.Outcome, &b.Line, &b.Odds, &b.Stake, &b.PotentialReturn,
		&b.Status, &b.ActualReturn, &b.SettleReason, &b.PlacedAt, &settledAt, &b.HomeTeam, &b.AwayTeam)
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return b, err
}

// Get retorna uma aposta pelo id
func (p *Postgres) Get(ctx context.Context, betID string) (Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+betCols+`
		FROM bets b LEFT JOIN events e ON e.event_id = b.event_id
		WHERE b.id = $1`, betID)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrBetNotFound
	}
	return b, err
}

// ListByUser lista as apostas do usuário, opcionalmente por status
func (p *Postgres) ListByUser(ctx context.Context, userID, status string, limit int) ([]Bet, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betCols+`
		FROM bets b LEFT JOIN events e ON e.event_id = b.event_id
		WHERE b.user_id = $1 AND ($2 = '' OR b.status = $2)
		ORDER BY b.placed_at DESC
		LIMIT $3`, userID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats agrega o desempenho do usuário
func (p *Postgres) Stats(ctx context.Context, userID string) (Stats, error) {
	st := Stats{UserID: userID}
	err := p.db.QueryRowContext(ctx, `
		SELECT
		  COUNT(*) FILTER (WHERE status = 'won'),
		  COUNT(*) FILTER (WHERE status = 'lost'),
		  COUNT(*) FILTER (WHERE status = 'void'),
		  COUNT(*) FILTER (WHERE status = 'pending'),
		  COUNT(*) FILTER (WHERE status = 'cancelled'),
		  COALESCE(SUM(stake) FILTER (WHERE status IN ('won','lost','void','cancelled')), 0),
		  COALESCE(SUM(actual_return) FILTER (WHERE status IN ('won','lost','void','cancelled')), 0)
		FROM bets
		WHERE user_id = $1`, userID).
		Scan(&st.Wins, &st.Losses, &st.Voids, &st.Pending, &st.Cancelled, &st.Staked, &st.Returned)
	if err != nil {
		return Stats{}, err
	}
	return st.finish(), nil
}

// Leaderboard ordena as carteiras por saldo. O lucro conta só apostas
// decididas (won: retorno - stake, lost: -stake); void e pending não entram.
func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT w.user_id, w.balance,
		  COALESCE(SUM(CASE
		    WHEN b.status = 'won'  THEN b.actual_return - b.stake
		    WHEN b.status = 'lost' THEN -b.stake
		    ELSE 0 END), 0) AS net_profit,
		  COUNT(b.id) AS bets
		FROM wallets w
		LEFT JOIN bets b ON b.user_id = w.user_id
		GROUP BY w.user_id, w.balance
		ORDER BY w.balance DESC, net_profit DESC, bets DESC, w.user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		e := LeaderboardEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Balance, &e.NetProfit, &e.Bets); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ProfitSeries devolve o lucro acumulado por dia desde since, contando apostas
// encerradas (won, lost, void, cancelled) pela data de liquidação.
func (p *Postgres) ProfitSeries(ctx context.Context, userID string, since time.Time) ([]ProfitPoint, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT (COALESCE(settled_at, placed_at) AT TIME ZONE 'UTC')::date AS day,
		  SUM(COALESCE(actual_return, 0) - stake) AS net_change
		FROM bets
		WHERE user_id = $1
		  AND status IN ('won','lost','void','cancelled')
		  AND COALESCE(settled_at, placed_at) >= $2
		GROUP BY day
		ORDER BY day`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []ProfitPoint
		running decimal.Decimal
	)
	for rows.Next() {
		var (
			day    time.Time
			change decimal.Decimal
		)
		if err := rows.Scan(&day, &change); err != nil {
			return nil, err
		}
		running = running.Add(change)
		out = append(out, ProfitPoint{Day: day.Format("2006-01-02"), Net: running.Round(2)})
	}
	return out, rows.Err()
}

func (st Stats) finish() Stats {
	st.NetProfit = st.Returned.Sub(st.Staked)
	if decided := st.Wins + st.Losses; decided > 0 {
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(decided))).Round(1)
	}
	return st
}
