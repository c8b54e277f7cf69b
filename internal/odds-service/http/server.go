package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/odds-service/dto"
	"github.com/radieske/paper-sportsbook/internal/odds-service/repo"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

type Reader interface {
	ListSports(ctx context.Context) ([]dto.Sport, error)
	ListEvents(ctx context.Context, sport string, since time.Time) ([]dto.Event, error)
	GetEvent(ctx context.Context, eventID string) (dto.Event, error)
	ListMarkets(ctx context.Context, eventID string) ([]string, error)
	GetOddsByEvent(ctx context.Context, eventID string) ([]dto.Odds, error)
	SearchEvents(ctx context.Context, terms []string, since time.Time, limit int) ([]dto.SearchHit, error)
}

type OddsCache interface {
	GetOdds(ctx context.Context, eventID string) (events.OddsUpdate, bool, error)
	SetOdds(ctx context.Context, u events.OddsUpdate, ttl time.Duration) error
}

// API expõe os endpoints REST de consulta de eventos e odds
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	Log      *zap.Logger
	ReadRepo Reader    // acesso ao banco de dados
	Cache    OddsCache // cache de odds
	CacheTTL time.Duration
	Now      func() time.Time
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/v1/sports", a.listSports)               // Catálogo de esportes ativos
	r.Get("/v1/events", a.listEvents)               // Eventos, ?sport=
	r.Get("/v1/events/search", a.searchEvents)      // Busca por time, ?q=&limit=
	r.Get("/v1/events/{id}", a.getEvent)            // Um evento
	r.Get("/v1/events/{id}/markets", a.listMarkets) // Mercados de um evento
	r.Get("/v1/events/{id}/odds", a.getOdds)        // Cotações de um evento
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	a.Log.Error("odds read failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (a *API) listSports(w http.ResponseWriter, r *http.Request) {
	sp, err := a.ReadRepo.ListSports(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// listEvents inclui jogos iniciados nas últimas 3h (ao vivo)
func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	ev, err := a.ReadRepo.ListEvents(r.Context(), r.URL.Query().Get("sport"), now.Add(-3*time.Hour))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// searchEvents procura jogos ainda não iniciados pelos nomes dos times
func (a *API) searchEvents(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < normalizer.MinSearchLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query too short"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	terms := normalizer.SearchTerms(q)
	if len(terms) == 0 {
		writeJSON(w, http.StatusOK, []dto.SearchHit{})
		return
	}

	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	hits, err := a.ReadRepo.SearchEvents(r.Context(), terms, now, limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if hits == nil {
		hits = []dto.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := a.ReadRepo.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) listMarkets(w http.ResponseWriter, r *http.Request) {
	keys, err := a.ReadRepo.ListMarkets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]dto.Market, 0, len(keys))
	for _, k := range keys {
		out = append(out, dto.Market{Market: k, Label: normalizer.MarketLabel(k)})
	}
	writeJSON(w, http.StatusOK, out)
}

// getOdds retorna as odds de um evento, preferencialmente do cache
func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if u, ok, err := a.Cache.GetOdds(r.Context(), id); err == nil && ok {
		writeJSON(w, http.StatusOK, fromSnapshot(u))
		return
	} else if err != nil {
		a.Log.Warn("odds cache read failed", zap.String("event_id", id), zap.Error(err))
	}

	ev, err := a.ReadRepo.GetEvent(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	od, err := a.ReadRepo.GetOddsByEvent(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}

	ttl := a.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	_ = a.Cache.SetOdds(r.Context(), toSnapshot(ev, od), ttl)
	writeJSON(w, http.StatusOK, dto.EventOdds{Event: ev, Odds: decorate(od)})
}

func decorate(od []dto.Odds) []dto.Odds {
	for i := range od {
		od[i].American = normalizer.DecimalToAmerican(od[i].Price)
		od[i].Label = normalizer.FormatOutcome(od[i].Market, od[i].Outcome, od[i].Line)
	}
	return od
}

func fromSnapshot(u events.OddsUpdate) dto.EventOdds {
	od := make([]dto.Odds, 0, len(u.Quotes))
	for _, q := range u.Quotes {
		od = append(od, dto.Odds{Bookmaker: q.Bookmaker, Market: q.Market, Outcome: q.Outcome, Line: q.Line, Price: q.Price})
	}
	return dto.EventOdds{
		Event: dto.Event{EventID: u.EventID, SportKey: u.SportKey, HomeTeam: u.HomeTeam, AwayTeam: u.AwayTeam, CommenceTime: u.CommenceTime},
		Odds:  decorate(od),
	}
}

func toSnapshot(ev dto.Event, od []dto.Odds) events.OddsUpdate {
	quotes := make([]events.Quote, 0, len(od))
	for _, o := range od {
		quotes = append(quotes, events.Quote{Bookmaker: o.Bookmaker, Market: o.Market, Outcome: o.Outcome, Line: o.Line, Price: o.Price})
	}
	return events.OddsUpdate{
		EventID: ev.EventID, SportKey: ev.SportKey, HomeTeam: ev.HomeTeam, AwayTeam: ev.AwayTeam,
		CommenceTime: ev.CommenceTime, Quotes: quotes, UpdatedAt: time.Now().UTC(), Source: "odds-service",
	}
}
