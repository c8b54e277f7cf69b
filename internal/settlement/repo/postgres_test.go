package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/radieske/paper-sportsbook/internal/settlement"
)

type decArg string

func (d decArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(decimal.RequireFromString(string(d)))
}

var (
	lockSQL      = regexp.QuoteMeta(`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`)
	walletSQL    = regexp.QuoteMeta(`UPDATE wallets SET balance = $1`)
	walletTxSQL  = regexp.QuoteMeta(`INSERT INTO wallet_transactions`)
	settleBetSQL = regexp.QuoteMeta(`UPDATE bets`)
)

func newStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func wonSettlement() settlement.Settlement {
	return settlement.Settlement{
		Bet: settlement.Bet{
			ID:     "7d3c1c2e-3f7a-4c55-9a51-0c7b8e2f1a10",
			UserID: "u1",
			Stake:  decimal.NewFromInt(10),
			Odds:   decimal.NewFromInt(2),
		},
		Status: settlement.StatusWon,
		Payout: decimal.NewFromInt(20),
		Reason: "bet_payout",
	}
}

func TestSettleWonCreditsAndCloses(t *testing.T) {
	s, mock := newStore(t)
	st := wonSettlement()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("90.00"))
	mock.ExpectExec(walletSQL).WithArgs(decArg("110"), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(walletTxSQL).WithArgs("u1", decArg("20"), decArg("110"), "bet_payout", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(settleBetSQL).WithArgs("won", decArg("20"), "bet_payout", st.Bet.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Settle(context.Background(), st); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSettleAlreadySettledRollsBackCredit(t *testing.T) {
	s, mock := newStore(t)
	st := wonSettlement()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("90.00"))
	mock.ExpectExec(walletSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(walletTxSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(settleBetSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Settle(context.Background(), st)
	if !errors.Is(err, settlement.ErrNotPending) {
		t.Fatalf("Settle() error = %v, want ErrNotPending", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSettleLostTouchesNoWallet(t *testing.T) {
	s, mock := newStore(t)
	st := wonSettlement()
	st.Status, st.Payout, st.Reason = settlement.StatusLost, decimal.Zero, "bet_loss"

	mock.ExpectBegin()
	mock.ExpectExec(settleBetSQL).WithArgs("lost", decArg("0"), "bet_loss", st.Bet.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Settle(context.Background(), st); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPendingBetsScansJoin(t *testing.T) {
	s, mock := newStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	commence := now.Add(-3 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bets b`)).
		WithArgs("basketball_nba", "", false, now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "event_id", "sport_key", "home_team", "away_team", "commence_time",
			"market", "outcome", "line", "odds", "stake",
		}).
			AddRow("b1", "u1", "e1", "basketball_nba", "Lakers", "Celtics", commence, "h2h", "Lakers", nil, "1.910", "10.00").
			AddRow("b2", "u2", "e1", "basketball_nba", "Lakers", "Celtics", commence, "spreads", "Celtics", "-3.500", "1.900", "25.00"))

	bets, err := s.PendingBets(context.Background(), settlement.Filter{Sport: "basketball_nba", Now: now})
	if err != nil {
		t.Fatalf("PendingBets() error = %v", err)
	}
	if len(bets) != 2 {
		t.Fatalf("len = %d, want 2", len(bets))
	}
	if bets[0].Line.Valid {
		t.Errorf("h2h line should be null")
	}
	if !bets[1].Line.Valid || !bets[1].Line.Decimal.Equal(decimal.RequireFromString("-3.5")) {
		t.Errorf("spread line = %+v, want -3.5", bets[1].Line)
	}
	if !bets[1].Stake.Equal(decimal.NewFromInt(25)) {
		t.Errorf("stake = %s, want 25", bets[1].Stake)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
