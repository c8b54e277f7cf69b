package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/alerting"
	"github.com/radieske/paper-sportsbook/internal/bet-service/dto"
	"github.com/radieske/paper-sportsbook/internal/bet-service/repo"
	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/settlement"
	"github.com/radieske/paper-sportsbook/internal/wallet-service/ledger"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

type Bets interface {
	Place(ctx context.Context, in repo.PlaceParams) (repo.Placed, error)
	Get(ctx context.Context, betID string) (repo.Bet, error)
	ListByUser(ctx context.Context, userID, status string, limit int) ([]repo.Bet, error)
	Stats(ctx context.Context, userID string) (repo.Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]repo.LeaderboardEntry, error)
	ProfitSeries(ctx context.Context, userID string, since time.Time) ([]repo.ProfitPoint, error)
}

type Prices interface {
	CurrentPrice(ctx context.Context, eventID, market, outcome string, line decimal.NullDecimal) (decimal.Decimal, bool, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type Tracker interface {
	Track(ctx context.Context, req alerting.TrackRequest) (alerting.Tracked, error)
	Untrack(ctx context.Context, userID string, id int64) error
	ListTracked(ctx context.Context, userID string) ([]alerting.Tracked, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]alerting.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, id int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Server struct {
	log     *zap.Logger
	bets    Bets
	prices  Prices    // opcional
	publ    Publisher // opcional
	tracker Tracker
}

func NewServer(log *zap.Logger, b Bets, p Prices, pub Publisher, t Tracker) *Server {
	return &Server{log: log, bets: b, prices: p, publ: pub, tracker: t}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/bets/{id}", s.getBet)
	r.Get("/v1/leaderboard", s.leaderboard)
	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Get("/bets", s.listBets)
		r.Get("/stats", s.stats)
		r.Get("/profit", s.profit)

		r.Get("/tracked", s.listTracked)
		r.Post("/tracked", s.track)
		r.Delete("/tracked/{id}", s.untrack)

		r.Get("/notifications", s.listNotifications)
		r.Get("/notifications/unread-count", s.unreadCount)
		r.Post("/notifications/read-all", s.markAllRead)
		r.Post("/notifications/{id}/read", s.markRead)
	})
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Market = strings.ToLower(strings.TrimSpace(req.Market))
	req.Outcome = strings.TrimSpace(req.Outcome)
	if req.UserID == "" || req.EventID == "" || req.Market == "" || req.Outcome == "" || !req.Stake.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if normalizer.IsLineMarket(req.Market) && !req.Line.Valid {
		writeError(w, http.StatusBadRequest, "line required for "+req.Market)
		return
	}

	in := repo.PlaceParams{
		UserID:  req.UserID,
		EventID: req.EventID,
		Market:  req.Market,
		Outcome: req.Outcome,
		Line:    req.Line,
		Stake:   req.Stake,
		Now:     time.Now().UTC(),
	}
	if req.Odds != "" {
		odds, err := normalizer.AmericanToDecimal(req.Odds)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Expected = decimal.NewNullDecimal(odds)
	}

	// 1) odd corrente no cache; miss ou erro cai para o Postgres
	if s.prices != nil {
		price, ok, err := s.prices.CurrentPrice(r.Context(), req.EventID, req.Market, req.Outcome, req.Line)
		if err != nil {
			s.log.Warn("odds cache lookup failed", zap.String("event_id", req.EventID), zap.Error(err))
		} else if ok {
			in.CachedPrice = decimal.NewNullDecimal(price)
		}
	}

	// 2) débito + aposta numa transação
	placed, err := s.bets.Place(r.Context(), in)
	if err != nil {
		s.placeError(w, req, err)
		return
	}
	b := placed.Bet

	// 3) bet_placed é best effort; a aposta já está gravada
	if s.publ != nil {
		if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:           b.ID,
			UserID:          b.UserID,
			EventID:         b.EventID,
			Market:          b.Market,
			Outcome:         b.Outcome,
			Line:            b.Line,
			Stake:           b.Stake,
			Odds:            b.Odds,
			PotentialReturn: b.PotentialReturn,
			BalanceAfter:    placed.BalanceAfter,
		}); err != nil {
			s.log.Warn("publish bet_placed failed", zap.String("bet_id", b.ID), zap.Error(err))
		}
	}

	s.log.Info("bet placed",
		zap.String("bet_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("event_id", b.EventID),
		zap.String("stake", b.Stake.StringFixed(2)),
		zap.String("odds", b.Odds.String()))

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		Bet:          b,
		BalanceAfter: placed.BalanceAfter,
		Message: "Bet placed: " + normalizer.MarketLabel(b.Market) + " " +
			normalizer.FormatOutcome(b.Market, b.Outcome, b.Line) + " at " + normalizer.DecimalToAmerican(b.Odds),
	})
}

func (s *Server) placeError(w http.ResponseWriter, req dto.PlaceBetRequest, err error) {
	var changed *repo.OddsChangedError
	switch {
	case errors.As(err, &changed):
		cur := changed.Current
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: err.Error(), CurrentOdds: &cur})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, repo.ErrEventStarted):
		writeError(w, http.StatusConflict, "event already started")
	case errors.Is(err, repo.ErrEventNotFound), errors.Is(err, repo.ErrQuoteNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrWalletNotFound):
		s.log.Error("bet placement without wallet", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusNotFound, "wallet not found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("bet placement failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.bets.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrBetNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internal(w, "get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// betStatuses são os filtros aceitos em ?status=; cancelled é manual, fora da liquidação
var betStatuses = map[settlement.Status]bool{
	settlement.StatusPending:   true,
	settlement.StatusWon:       true,
	settlement.StatusLost:      true,
	settlement.StatusVoid:      true,
	settlement.StatusCancelled: true,
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !betStatuses[settlement.Status(status)] {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	list, err := s.bets.ListByUser(r.Context(), chi.URLParam(r, "userID"), status, limit)
	if err != nil {
		s.internal(w, "list bets", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.bets.Stats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.internal(w, "user stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.bets.Leaderboard(r.Context(), limit)
	if err != nil {
		s.internal(w, "leaderboard", err)
		return
	}
	if list == nil {
		list = []repo.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// profit: série de lucro acumulado, ?days= (padrão 90, até 365)
func (s *Server) profit(w http.ResponseWriter, r *http.Request) {
	days := 90
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = min(n, 365)
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	series, err := s.bets.ProfitSeries(r.Context(), chi.URLParam(r, "userID"), since)
	if err != nil {
		s.internal(w, "profit series", err)
		return
	}
	if series == nil {
		series = []repo.ProfitPoint{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	var req dto.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	target, err := normalizer.AmericanToDecimal(req.TargetPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.tracker.Track(r.Context(), alerting.TrackRequest{
		UserID:      chi.URLParam(r, "userID"),
		EventID:     req.EventID,
		Market:      strings.ToLower(strings.TrimSpace(req.Market)),
		Outcome:     strings.TrimSpace(req.Outcome),
		Line:        req.Line,
		TargetPrice: target,
	})
	if errors.Is(err, alerting.ErrInvalidTarget) || errors.Is(err, alerting.ErrInvalidTrack) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internal(w, "track", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) untrack(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.tracker.Untrack(r.Context(), chi.URLParam(r, "userID"), id)
	if errors.Is(err, alerting.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internal(w, "untrack", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTracked(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.ListTracked(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.internal(w, "list tracked", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	unread := q.Get("unread") == "1" || q.Get("unread") == "true"
	list, err := s.tracker.ListNotifications(r.Context(), chi.URLParam(r, "userID"), unread, limit)
	if err != nil {
		s.internal(w, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.tracker.UnreadCount(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.internal(w, "unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountResponse{Count: int64(n)})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.tracker.MarkRead(r.Context(), chi.URLParam(r, "userID"), id)
	if errors.Is(err, alerting.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.internal(w, "mark read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.tracker.MarkAllRead(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.internal(w, "mark all read", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountResponse{Count: n})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) internal(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
