// Package simulator serve o contrato JSON do provedor de odds (sports, odds,
// scores) com jogos gerados, para rodar a plataforma sem chave de API.
package simulator

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
)

// Fixture é um jogo simulado; o placar final já nasce sorteado
type Fixture struct {
	ID        string
	SportKey  string
	HomeTeam  string
	AwayTeam  string
	Commence  time.Time
	HomeScore int
	AwayScore int
	homeProb  float64 // chance do mandante, base das odds
}

type sportSpec struct {
	payload   normalizer.SportPayload
	teams     []string
	totalLine float64
	maxScore  int
}

var catalog = []sportSpec{
	{
		payload:   normalizer.SportPayload{Key: "basketball_nba", Group: "Basketball", Title: "NBA", Active: true},
		teams:     []string{"Los Angeles Lakers", "Boston Celtics", "Golden State Warriors", "Miami Heat", "Denver Nuggets", "Phoenix Suns"},
		totalLine: 221.5,
		maxScore:  130,
	},
	{
		payload:   normalizer.SportPayload{Key: "americanfootball_nfl", Group: "American Football", Title: "NFL", Active: true},
		teams:     []string{"Kansas City Chiefs", "Buffalo Bills", "Philadelphia Eagles", "San Francisco 49ers", "Dallas Cowboys", "Detroit Lions"},
		totalLine: 44.5,
		maxScore:  38,
	},
	{
		payload:   normalizer.SportPayload{Key: "soccer_epl", Group: "Soccer", Title: "EPL", Active: true},
		teams:     []string{"Arsenal", "Manchester City", "Liverpool", "Tottenham Hotspur", "Chelsea", "Newcastle United"},
		totalLine: 2.5,
		maxScore:  4,
	},
	{
		payload: normalizer.SportPayload{Key: "icehockey_nhl", Group: "Ice Hockey", Title: "NHL", Active: false},
	},
}

type book struct{ key, title string }

var books = []book{{"draftkings", "DraftKings"}, {"fanduel", "FanDuel"}, {"betfair_ex_uk", "Betfair"}}

// Jogos por esporte, relativos ao início: dois encerrados, um ao vivo, três futuros
var offsets = []time.Duration{-30 * time.Hour, -6 * time.Hour, -30 * time.Minute, 3 * time.Hour, 27 * time.Hour, 51 * time.Hour}

const gameLength = 3 * time.Hour

type Simulator struct {
	Log   *zap.Logger
	Now   func() time.Time
	Quota int

	OnRequest func(endpoint string) // métricas

	mu       sync.Mutex
	rnd      *rand.Rand
	fixtures map[string][]Fixture
	used     int
}

// New gera o calendário a partir de start; a mesma seed gera os mesmos jogos
func New(log *zap.Logger, seed int64, start time.Time) *Simulator {
	s := &Simulator{
		Log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
		Quota:    500,
		rnd:      rand.New(rand.NewSource(seed)),
		fixtures: make(map[string][]Fixture),
	}
	for _, sp := range catalog {
		if !sp.payload.Active {
			continue
		}
		for i, off := range offsets {
			home := sp.teams[i%len(sp.teams)]
			away := sp.teams[(i+1+i/len(sp.teams))%len(sp.teams)]
			commence := start.Add(off).Truncate(time.Minute)
			s.fixtures[sp.payload.Key] = append(s.fixtures[sp.payload.Key], Fixture{
				ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(sp.payload.Key+"/"+home+"/"+away+"/"+commence.Format(time.RFC3339))).String(),
				SportKey:  sp.payload.Key,
				HomeTeam:  home,
				AwayTeam:  away,
				Commence:  commence,
				HomeScore: s.rnd.Intn(sp.maxScore + 1),
				AwayScore: s.rnd.Intn(sp.maxScore + 1),
				homeProb:  0.30 + s.rnd.Float64()*0.40,
			})
		}
	}
	return s
}

// Fixtures retorna os jogos de um esporte
func (s *Simulator) Fixtures(sport string) []Fixture {
	return append([]Fixture(nil), s.fixtures[sport]...)
}

func (s *Simulator) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Get("/v4/sports", s.sports)
	r.Get("/v4/sports/{sport}/odds", s.odds)
	r.Get("/v4/sports/{sport}/scores", s.scores)
	return r
}

// quota devolve false quando a cota simulada acabou
func (s *Simulator) quota(w http.ResponseWriter, endpoint string) bool {
	if s.OnRequest != nil {
		s.OnRequest(endpoint)
	}
	s.mu.Lock()
	s.used++
	used := s.used
	s.mu.Unlock()

	remaining := s.Quota - used
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("x-requests-used", strconv.Itoa(used))
	w.Header().Set("x-requests-remaining", strconv.Itoa(remaining))
	if used > s.Quota {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "usage quota has been reached"})
		return false
	}
	return true
}

func (s *Simulator) sports(w http.ResponseWriter, r *http.Request) {
	if !s.quota(w, "sports") {
		return
	}
	out := make([]normalizer.SportPayload, 0, len(catalog))
	for _, sp := range catalog {
		out = append(out, sp.payload)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Simulator) odds(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	list, ok := s.fixtures[sport]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown sport"})
		return
	}
	if !s.quota(w, "odds") {
		return
	}
	want := map[string]bool{}
	for _, m := range strings.Split(r.URL.Query().Get("markets"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			want[m] = true
		}
	}
	if len(want) == 0 {
		want["h2h"] = true
	}

	now := s.Now()
	spec := specOf(sport)
	out := make([]normalizer.EventPayload, 0, len(list))
	s.mu.Lock()
	for _, f := range list {
		if now.After(f.Commence.Add(gameLength)) {
			continue // encerrado, sai do board
		}
		ep := eventPayload(f)
		for _, b := range books {
			ep.Bookmakers = append(ep.Bookmakers, s.bookOdds(b, f, spec, want))
		}
		out = append(out, ep)
	}
	s.mu.Unlock()

	s.Log.Debug("odds served", zap.String("sport", sport), zap.Int("events", len(out)))
	writeJSON(w, http.StatusOK, out)
}

// bookOdds aplica um ruído de até 3% sobre as probabilidades do jogo.
// Chamado com s.mu travado.
func (s *Simulator) bookOdds(b book, f Fixture, spec sportSpec, want map[string]bool) normalizer.BookmakerPayload {
	p := f.homeProb * (0.97 + s.rnd.Float64()*0.06)
	bp := normalizer.BookmakerPayload{Key: b.key, Title: b.title}
	if want["h2h"] {
		bp.Markets = append(bp.Markets, normalizer.MarketPayload{Key: "h2h", Outcomes: []normalizer.OutcomePayload{
			{Name: f.HomeTeam, Price: price(1 / p)},
			{Name: f.AwayTeam, Price: price(1 / (1 - p))},
		}})
	}
	if want["spreads"] {
		line := decimal.NewFromFloat((0.5 - p) * 20).Round(0).Add(decimal.NewFromFloat(0.5))
		bp.Markets = append(bp.Markets, normalizer.MarketPayload{Key: "spreads", Outcomes: []normalizer.OutcomePayload{
			{Name: f.HomeTeam, Price: price(1.87 + s.rnd.Float64()*0.08), Point: raw(line)},
			{Name: f.AwayTeam, Price: price(1.87 + s.rnd.Float64()*0.08), Point: raw(line.Neg())},
		}})
	}
	if want["totals"] {
		line := decimal.NewFromFloat(spec.totalLine)
		bp.Markets = append(bp.Markets, normalizer.MarketPayload{Key: "totals", Outcomes: []normalizer.OutcomePayload{
			{Name: "Over", Price: price(1.87 + s.rnd.Float64()*0.08), Point: raw(line)},
			{Name: "Under", Price: price(1.87 + s.rnd.Float64()*0.08), Point: raw(line)},
		}})
	}
	// a exchange também publica lay, que a ingestão descarta
	if b.key == "betfair_ex_uk" && want["h2h"] {
		bp.Markets = append(bp.Markets, normalizer.MarketPayload{Key: "h2h_lay", Outcomes: []normalizer.OutcomePayload{
			{Name: f.HomeTeam, Price: price(1/p + 0.02)},
			{Name: f.AwayTeam, Price: price(1/(1-p) + 0.02)},
		}})
	}
	return bp
}

func (s *Simulator) scores(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	list, ok := s.fixtures[sport]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown sport"})
		return
	}
	if !s.quota(w, "scores") {
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("daysFrom"))
	now := s.Now()
	from := now.AddDate(0, 0, -days)

	out := make([]normalizer.ScoreEvent, 0, len(list))
	for _, f := range list {
		if days > 0 && f.Commence.Before(from) {
			continue
		}
		if days == 0 && f.Commence.Before(now) {
			continue
		}
		se := normalizer.ScoreEvent{
			ID:           f.ID,
			SportKey:     f.SportKey,
			CommenceTime: f.Commence.Format(time.RFC3339),
			HomeTeam:     f.HomeTeam,
			AwayTeam:     f.AwayTeam,
			Completed:    now.After(f.Commence.Add(gameLength)),
		}
		if se.Completed {
			se.Scores = []normalizer.ScoreEntry{
				{Name: f.HomeTeam, Score: raw(strconv.Itoa(f.HomeScore))},
				{Name: f.AwayTeam, Score: raw(strconv.Itoa(f.AwayScore))},
			}
			se.LastUpdate = f.Commence.Add(gameLength).Format(time.RFC3339)
		}
		out = append(out, se)
	}
	writeJSON(w, http.StatusOK, out)
}

func eventPayload(f Fixture) normalizer.EventPayload {
	return normalizer.EventPayload{
		ID:           f.ID,
		SportKey:     f.SportKey,
		CommenceTime: f.Commence.Format(time.RFC3339),
		HomeTeam:     f.HomeTeam,
		AwayTeam:     f.AwayTeam,
	}
}

func specOf(sport string) sportSpec {
	for _, sp := range catalog {
		if sp.payload.Key == sport {
			return sp
		}
	}
	return sportSpec{}
}

// price arredonda para 2 casas com piso de 1.01
func price(v float64) json.RawMessage {
	d := decimal.NewFromFloat(v).Round(2)
	if d.LessThan(decimal.RequireFromString("1.01")) {
		d = decimal.RequireFromString("1.01")
	}
	return raw(d)
}

// raw serializa como número JSON; strings viram string JSON
func raw(v any) json.RawMessage {
	switch x := v.(type) {
	case decimal.Decimal:
		return json.RawMessage(x.String())
	case string:
		b, _ := json.Marshal(x)
		return b
	}
	b, _ := json.Marshal(v)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
