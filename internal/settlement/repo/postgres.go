package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/paper-sportsbook/internal/settlement"
	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
)

// PostgresStore implementa settlement.Store
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{DB: db} }

// PendingBets lista apostas pendentes cujo evento já começou (ou todas com
// IncludeUpcoming), opcionalmente filtradas por esporte e evento.
func (s *PostgresStore) PendingBets(ctx context.Context, f settlement.Filter) ([]settlement.Bet, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.event_id, e.sport_key, e.home_team, e.away_team, e.commence_time,
		       b.market, b.outcome, b.line, b.odds, b.stake
		FROM bets b
		JOIN events e ON e.event_id = b.event_id
		WHERE b.status = 'pending'
		  AND ($1 = '' OR e.sport_key = $1)
		  AND ($2 = '' OR b.event_id = $2)
		  AND ($3 OR e.commence_time < $4)
		ORDER BY e.sport_key, e.commence_time, b.placed_at`,
		f.Sport, f.EventID, f.IncludeUpcoming, f.Now)
	if err != nil {
		return nil, fmt.Errorf("query pending bets: %w", err)
	}
	defer rows.Close()

	var out []settlement.Bet
	for rows.Next() {
		var b settlement.Bet
		if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.SportKey, &b.HomeTeam, &b.AwayTeam, &b.CommenceTime,
			&b.Market, &b.Outcome, &b.Line, &b.Odds, &b.Stake); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Settle credita a carteira (quando há pagamento) e fecha a aposta na mesma
// transação. O UPDATE condicional em status='pending' é a barreira contra
// pagamento em dobro: se outra execução chegou antes, nada é gravado.
func (s *PostgresStore) Settle(ctx context.Context, st settlement.Settlement) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if st.Payout.IsPositive() {
		if _, err := ledger.CreditTx(ctx, tx, ledger.Posting{
			UserID:   st.Bet.UserID,
			Amount:   st.Payout,
			Reason:   st.Reason,
			RefBetID: st.Bet.ID,
		}); err != nil {
			return fmt.Errorf("credit payout: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status = $1, actual_return = $2, settle_reason = $3, settled_at = NOW()
		WHERE id = $4 AND status = 'pending'`,
		string(st.Status), st.Payout.Round(2), st.Reason, st.Bet.ID)
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return settlement.ErrNotPending
	}
	return tx.Commit()
}

// MarkEventCompleted registra que o evento tem placar final
func (s *PostgresStore) MarkEventCompleted(ctx context.Context, eventID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE events SET status = 'completed', updated_at = NOW() WHERE event_id = $1 AND status <> 'completed'`,
		eventID)
	return err
}

var _ settlement.Store = (*PostgresStore)(nil)
