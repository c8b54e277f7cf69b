// Package ledger é o único ponto de escrita de saldo: toda alteração trava a
// linha da carteira, grava o novo saldo e registra o lançamento de auditoria
// na mesma transação.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Motivos gravados em wallet_transactions.reason
const (
	ReasonBet        = "bet"
	ReasonPayout     = "bet_payout"
	ReasonVoidRefund = "bet_void_refund"
	ReasonLoss       = "bet_loss" // só na aposta; perda não movimenta saldo
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Posting descreve um débito ou crédito
type Posting struct {
	UserID   string
	Amount   decimal.Decimal
	Reason   string
	RefBetID string // opcional
}

type Wallet struct {
	UserID         string          `json:"userId"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Entry struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"userId"`
	ChangeAmt    decimal.Decimal `json:"changeAmt"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Reason       string          `json:"reason"`
	RefBetID     string          `json:"refBetId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Reconciliation compara o saldo gravado com saldo inicial + soma dos lançamentos
type Reconciliation struct {
	UserID     string          `json:"userId"`
	Balance    decimal.Decimal `json:"balance"`
	Expected   decimal.Decimal `json:"expected"`
	Consistent bool            `json:"consistent"`
}

// Ledger implementa operações de carteira em Postgres
type Ledger struct{ db *sql.DB }

func New(db *sql.DB) *Ledger { return &Ledger{db: db} }

// Debit debita amount do usuário numa transação própria
func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	return l.inTx(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return DebitTx(ctx, tx, Posting{UserID: userID, Amount: amount, Reason: reason})
	})
}

// Credit credita amount ao usuário numa transação própria
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	return l.inTx(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return CreditTx(ctx, tx, Posting{UserID: userID, Amount: amount, Reason: reason})
	})
}

func (l *Ledger) inTx(ctx context.Context, fn func(*sql.Tx) (decimal.Decimal, error)) (decimal.Decimal, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	bal, err := fn(tx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

// DebitTx debita dentro de uma transação do chamador (ex.: colocação de aposta).
// A linha da carteira fica travada até o commit/rollback do chamador.
func DebitTx(ctx context.Context, tx *sql.Tx, p Posting) (decimal.Decimal, error) {
	return apply(ctx, tx, p, true)
}

// CreditTx credita dentro de uma transação do chamador (ex.: liquidação)
func CreditTx(ctx context.Context, tx *sql.Tx, p Posting) (decimal.Decimal, error) {
	return apply(ctx, tx, p, false)
}

func apply(ctx context.Context, tx *sql.Tx, p Posting, debit bool) (decimal.Decimal, error) {
	amount := p.Amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, p.UserID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: user %s", ErrWalletNotFound, p.UserID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock wallet: %w", err)
	}

	change := amount
	if debit {
		if balance.LessThan(amount) {
			return decimal.Zero, ErrInsufficientFunds
		}
		change = amount.Neg()
	}
	newBalance := balance.Add(change)

	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`,
		newBalance, p.UserID); err != nil {
		return decimal.Zero, fmt.Errorf("update wallet: %w", err)
	}

	ref := sql.NullString{String: p.RefBetID, Valid: p.RefBetID != ""}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (user_id, change_amt, balance_after, reason, ref_bet_id) VALUES ($1, $2, $3, $4, $5)`,
		p.UserID, change, newBalance, p.Reason, ref); err != nil {
		return decimal.Zero, fmt.Errorf("insert wallet transaction: %w", err)
	}
	return newBalance, nil
}

// CreateWallet cria a carteira no cadastro com o saldo inicial concedido
func (l *Ledger) CreateWallet(ctx context.Context, userID string, grant decimal.Decimal) (Wallet, error) {
	if grant.IsNegative() {
		return Wallet{}, ErrInvalidAmount
	}
	grant = grant.Round(2)
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, initial_balance) VALUES ($1, $2, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, grant)
	if err != nil {
		return Wallet{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Wallet{}, ErrWalletExists
	}
	return Wallet{UserID: userID, Balance: grant, InitialBalance: grant, UpdatedAt: time.Now().UTC()}, nil
}

// Get retorna a carteira do usuário
func (l *Ledger) Get(ctx context.Context, userID string) (Wallet, error) {
	w := Wallet{UserID: userID}
	err := l.db.QueryRowContext(ctx,
		`SELECT balance, initial_balance, updated_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.Balance, &w.InitialBalance, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

// Balance retorna só o saldo corrente
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := l.Get(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// Transactions lista os lançamentos mais recentes do usuário
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, change_amt, balance_after, reason, ref_bet_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{UserID: userID}
		var ref sql.NullString
		if err := rows.Scan(&e.ID, &e.ChangeAmt, &e.BalanceAfter, &e.Reason, &ref, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RefBetID = ref.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reconcile confere o invariante balance == initial_balance + Σ change_amt
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	r := Reconciliation{UserID: userID}
	err := l.db.QueryRowContext(ctx, `
		SELECT w.balance, w.initial_balance + COALESCE(SUM(t.change_amt), 0)
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.user_id = w.user_id
		WHERE w.user_id = $1
		GROUP BY w.user_id, w.balance, w.initial_balance`, userID).Scan(&r.Balance, &r.Expected)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrWalletNotFound
	}
	if err != nil {
		return r, err
	}
	r.Consistent = r.Balance.Equal(r.Expected)
	return r, nil
}
