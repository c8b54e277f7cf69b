package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/wallet-service/dto"
	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
)

// Ledger define as operações de carteira usadas pelo handler HTTP.
// Débito e crédito não são expostos: só apostas e liquidação movimentam saldo.
type Ledger interface {
	CreateWallet(ctx context.Context, userID string, grant decimal.Decimal) (ledger.Wallet, error)
	Get(ctx context.Context, userID string) (ledger.Wallet, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
	Reconcile(ctx context.Context, userID string) (ledger.Reconciliation, error)
}

// Server expõe endpoints HTTP de consulta e abertura de carteira
type Server struct {
	log   *zap.Logger
	led   Ledger
	grant decimal.Decimal
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, led Ledger, grant decimal.Decimal) *Server {
	return &Server{log: log, led: led, grant: grant}
}

// Router retorna o roteador HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/wallet", s.createWallet)             // cadastro
	r.Get("/wallet", s.getWallet)                 // ?userId=...
	r.Get("/wallet/balance", s.balance)           // ?userId=...
	r.Get("/wallet/transactions", s.transactions) // ?userId=...&limit=...
	r.Get("/wallet/reconcile", s.reconcile)       // ?userId=...
	return r
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	wal, err := s.led.CreateWallet(r.Context(), req.UserID, s.grant)
	if errors.Is(err, ledger.ErrWalletExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.Error("create wallet failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("wallet created", zap.String("user_id", req.UserID), zap.String("grant", wal.Balance.StringFixed(2)))
	writeJSON(w, http.StatusCreated, dto.WalletResponse{UserID: wal.UserID, Balance: wal.Balance, InitialBalance: wal.InitialBalance})
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	wal, err := s.led.Get(r.Context(), userID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: wal.UserID, Balance: wal.Balance, InitialBalance: wal.InitialBalance})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	bal, err := s.led.Balance(r.Context(), userID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: bal})
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.led.Transactions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// reconcile confere o invariante do saldo; divergência é logada como erro
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	rec, err := s.led.Reconcile(r.Context(), userID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !rec.Consistent {
		s.log.Error("wallet ledger mismatch",
			zap.String("user_id", userID),
			zap.String("balance", rec.Balance.String()),
			zap.String("expected", rec.Expected.String()))
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
