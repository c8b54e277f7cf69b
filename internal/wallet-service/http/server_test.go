package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
)

type fakeLedger struct {
	wallets map[string]ledger.Wallet
}

func (f *fakeLedger) CreateWallet(_ context.Context, userID string, grant decimal.Decimal) (ledger.Wallet, error) {
	if _, ok := f.wallets[userID]; ok {
		return ledger.Wallet{}, ledger.ErrWalletExists
	}
	w := ledger.Wallet{UserID: userID, Balance: grant, InitialBalance: grant}
	f.wallets[userID] = w
	return w, nil
}

func (f *fakeLedger) Get(_ context.Context, userID string) (ledger.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return ledger.Wallet{}, ledger.ErrWalletNotFound
	}
	return w, nil
}

func (f *fakeLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := f.Get(ctx, userID)
	return w.Balance, err
}

func (f *fakeLedger) Transactions(context.Context, string, int) ([]ledger.Entry, error) {
	return nil, nil
}

func (f *fakeLedger) Reconcile(_ context.Context, userID string) (ledger.Reconciliation, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return ledger.Reconciliation{}, ledger.ErrWalletNotFound
	}
	return ledger.Reconciliation{UserID: userID, Balance: w.Balance, Expected: w.Balance, Consistent: true}, nil
}

func TestWalletRoutes(t *testing.T) {
	fl := &fakeLedger{wallets: map[string]ledger.Wallet{}}
	h := NewServer(zap.NewNop(), fl, decimal.RequireFromString("10000.00")).Router()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"create", http.MethodPost, "/wallet", `{"userId":"alice"}`, http.StatusCreated, `"balance":"10000"`},
		{"create twice", http.MethodPost, "/wallet", `{"userId":"alice"}`, http.StatusConflict, "already exists"},
		{"create without user", http.MethodPost, "/wallet", `{"userId":"  "}`, http.StatusBadRequest, "userId required"},
		{"get", http.MethodGet, "/wallet?userId=alice", "", http.StatusOK, `"userId":"alice"`},
		{"get unknown", http.MethodGet, "/wallet?userId=bob", "", http.StatusNotFound, "wallet not found"},
		{"balance", http.MethodGet, "/wallet/balance?userId=alice", "", http.StatusOK, `"balance":"10000"`},
		{"balance unknown", http.MethodGet, "/wallet/balance?userId=bob", "", http.StatusNotFound, "wallet not found"},
		{"transactions empty list", http.MethodGet, "/wallet/transactions?userId=alice", "", http.StatusOK, "[]"},
		{"reconcile", http.MethodGet, "/wallet/reconcile?userId=alice", "", http.StatusOK, `"consistent":true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want to contain %s", rec.Body, tt.wantBody)
			}
		})
	}
}
