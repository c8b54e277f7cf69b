package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
)

// memStore simula a tabela de apostas com a mesma barreira de status do Postgres
type memStore struct {
	mu        sync.Mutex
	bets      []Bet
	status    map[string]Status
	credits   map[string]decimal.Decimal // por usuário
	failOn    string
	completed map[string]bool
}

func newMemStore(bets ...Bet) *memStore {
	s := &memStore{
		bets:      bets,
		status:    make(map[string]Status),
		credits:   make(map[string]decimal.Decimal),
		completed: make(map[string]bool),
	}
	for _, b := range bets {
		s.status[b.ID] = StatusPending
	}
	return s
}

func (s *memStore) PendingBets(_ context.Context, f Filter) ([]Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bet
	for _, b := range s.bets {
		if s.status[b.ID] != StatusPending {
			continue
		}
		if f.Sport != "" && b.SportKey != f.Sport {
			continue
		}
		if f.EventID != "" && b.EventID != f.EventID {
			continue
		}
		if !f.IncludeUpcoming && !b.CommenceTime.Before(f.Now) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) Settle(_ context.Context, st Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Bet.ID == s.failOn {
		return errors.New("connection reset")
	}
	if s.status[st.Bet.ID] != StatusPending {
		return ErrNotPending
	}
	s.status[st.Bet.ID] = st.Status
	s.credits[st.Bet.UserID] = s.credits[st.Bet.UserID].Add(st.Payout)
	return nil
}

func (s *memStore) MarkEventCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[id] = true
	return nil
}

type fakeScores struct {
	bySport map[string][]normalizer.ScoreEvent
	fail    map[string]bool
	calls   map[string]int
}

func (f *fakeScores) Scores(_ context.Context, sport string, _ int) ([]normalizer.ScoreEvent, []byte, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[sport]++
	if f.fail[sport] {
		return nil, nil, errors.New("provider returned 500")
	}
	return f.bySport[sport], nil, nil
}

type fakePublisher struct {
	keys []string
}

func (p *fakePublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func score(id string, completed bool, home, away string, hs, as int) normalizer.ScoreEvent {
	raw := func(n int) json.RawMessage { b, _ := json.Marshal(n); return b }
	return normalizer.ScoreEvent{
		ID: id, Completed: completed, HomeTeam: home, AwayTeam: away,
		Scores: []normalizer.ScoreEntry{{Name: home, Score: raw(hs)}, {Name: away, Score: raw(as)}},
	}
}

func bet(id, user, sport, event, market, outcome string, ln decimal.NullDecimal, odds string, started bool) Bet {
	commence := now.Add(-3 * time.Hour)
	if !started {
		commence = now.Add(3 * time.Hour)
	}
	return Bet{
		ID: id, UserID: user, EventID: event, SportKey: sport,
		HomeTeam: "Lakers", AwayTeam: "Celtics", CommenceTime: commence,
		Market: market, Outcome: outcome, Line: ln,
		Odds: decimal.RequireFromString(odds), Stake: decimal.NewFromInt(10),
	}
}

func newEngine(store Store, scores ScoresSource) *Engine {
	m := normalizer.NewTeamMatcher(normalizer.DefaultMaxDistance)
	return &Engine{
		Log:      zap.NewNop(),
		Store:    store,
		Scores:   scores,
		Registry: NewRegistry(m),
		Matcher:  m,
		Now:      func() time.Time { return now },
	}
}

func TestRunSettlesCompletedEvent(t *testing.T) {
	store := newMemStore(
		bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
		bet("b2", "u2", "nba", "e1", "spreads", "Celtics", line("3.0"), "1.90", true),
		bet("b3", "u3", "nba", "e1", "totals", "Over", line("230.5"), "1.90", true),
	)
	scores := &fakeScores{bySport: map[string][]normalizer.ScoreEvent{
		"nba": {score("e1", true, "Lakers", "Celtics", 113, 110)},
	}}
	pub := &fakePublisher{}
	e := newEngine(store, scores)
	e.Publisher = pub

	rep, err := e.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Won != 1 || rep.Void != 1 || rep.Lost != 1 || rep.Settled() != 3 {
		t.Errorf("report = %+v", rep)
	}
	if !store.credits["u1"].Equal(decimal.NewFromInt(20)) {
		t.Errorf("u1 credit = %s, want 20", store.credits["u1"])
	}
	if !store.credits["u2"].Equal(decimal.NewFromInt(10)) {
		t.Errorf("u2 refund = %s, want 10", store.credits["u2"])
	}
	if !store.credits["u3"].IsZero() {
		t.Errorf("u3 credit = %s, want 0", store.credits["u3"])
	}
	if !store.completed["e1"] {
		t.Errorf("event e1 not marked completed")
	}
	if len(pub.keys) != 3 {
		t.Errorf("published %d events, want 3", len(pub.keys))
	}
}

func TestRunTwiceSettlesOnce(t *testing.T) {
	store := newMemStore(bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true))
	scores := &fakeScores{bySport: map[string][]normalizer.ScoreEvent{
		"nba": {score("e1", true, "Lakers", "Celtics", 100, 90)},
	}}
	e := newEngine(store, scores)

	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background(), Options{}); err != nil {
			t.Fatal(err)
		}
	}
	if !store.credits["u1"].Equal(decimal.NewFromInt(20)) {
		t.Errorf("credit after two runs = %s, want 20", store.credits["u1"])
	}
}

func TestConcurrentRunsNeverDoublePay(t *testing.T) {
	store := newMemStore(bet("b1", "u1", "nba", "e1", "h2h", "Celtics", decimal.NullDecimal{}, "3.10", true))
	snapshot := map[string][]normalizer.ScoreEvent{"nba": {score("e1", true, "Lakers", "Celtics", 90, 100)}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := newEngine(store, &fakeScores{bySport: snapshot})
			_, _ = e.Run(context.Background(), Options{})
		}()
	}
	wg.Wait()
	if !store.credits["u1"].Equal(decimal.NewFromInt(31)) {
		t.Errorf("credit = %s, want 31", store.credits["u1"])
	}
}

func TestRunLeavesPending(t *testing.T) {
	tests := []struct {
		name   string
		scores []normalizer.ScoreEvent
	}{
		{"not in snapshot", nil},
		{"not completed", []normalizer.ScoreEvent{score("e1", false, "Lakers", "Celtics", 50, 40)}},
		{"names unmatched", []normalizer.ScoreEvent{score("e1", true, "Warriors", "Suns", 100, 90)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true))
			e := newEngine(store, &fakeScores{bySport: map[string][]normalizer.ScoreEvent{"nba": tt.scores}})

			rep, err := e.Run(context.Background(), Options{})
			if err != nil {
				t.Fatal(err)
			}
			if rep.Skipped != 1 || rep.Settled() != 0 {
				t.Errorf("report = %+v", rep)
			}
			if store.status["b1"] != StatusPending {
				t.Errorf("status = %s, want pending", store.status["b1"])
			}
		})
	}
}

func TestRunSkipsUpcomingUnlessAsked(t *testing.T) {
	store := newMemStore(bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", false))
	scores := &fakeScores{bySport: map[string][]normalizer.ScoreEvent{
		"nba": {score("e1", true, "Lakers", "Celtics", 100, 90)},
	}}
	e := newEngine(store, scores)

	rep, _ := e.Run(context.Background(), Options{})
	if rep.Candidates != 0 || scores.calls["nba"] != 0 {
		t.Fatalf("upcoming bet should not be a candidate: %+v", rep)
	}

	rep, _ = e.Run(context.Background(), Options{IncludeUpcoming: true})
	if rep.Won != 1 {
		t.Errorf("with include-upcoming report = %+v", rep)
	}
}

func TestProviderFailureIsolatedPerSport(t *testing.T) {
	store := newMemStore(
		bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
		bet("b2", "u2", "nhl", "e2", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
	)
	scores := &fakeScores{
		bySport: map[string][]normalizer.ScoreEvent{"nhl": {score("e2", true, "Lakers", "Celtics", 3, 2)}},
		fail:    map[string]bool{"nba": true},
	}
	var stages []string
	e := newEngine(store, scores)
	e.OnError = func(stage string) { stages = append(stages, stage) }

	rep, err := e.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Won != 1 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.SportsFailed) != 1 || rep.SportsFailed[0] != "nba" {
		t.Errorf("sports failed = %v", rep.SportsFailed)
	}
	if len(stages) != 1 || stages[0] != "fetch" {
		t.Errorf("error stages = %v", stages)
	}
	if store.status["b1"] != StatusPending {
		t.Errorf("nba bet should stay pending")
	}
}

func TestBetFailureDoesNotStopRun(t *testing.T) {
	store := newMemStore(
		bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
		bet("b2", "u2", "nba", "e1", "h2h", "Celtics", decimal.NullDecimal{}, "2.00", true),
	)
	store.failOn = "b1"
	scores := &fakeScores{bySport: map[string][]normalizer.ScoreEvent{
		"nba": {score("e1", true, "Lakers", "Celtics", 100, 90)},
	}}
	e := newEngine(store, scores)

	rep, err := e.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 1 || rep.Lost != 1 {
		t.Errorf("report = %+v", rep)
	}
	if scores.calls["nba"] != 1 {
		t.Errorf("scores fetched %d times, want 1 per sport", scores.calls["nba"])
	}
}

func TestRunFiltersByEvent(t *testing.T) {
	store := newMemStore(
		bet("b1", "u1", "nba", "e1", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
		bet("b2", "u2", "nba", "e2", "h2h", "Lakers", decimal.NullDecimal{}, "2.00", true),
	)
	scores := &fakeScores{bySport: map[string][]normalizer.ScoreEvent{
		"nba": {score("e1", true, "Lakers", "Celtics", 1, 0), score("e2", true, "Lakers", "Celtics", 1, 0)},
	}}
	e := newEngine(store, scores)

	rep, _ := e.Run(context.Background(), Options{EventID: "e2"})
	if rep.Candidates != 1 || store.status["b1"] != StatusPending || store.status["b2"] != StatusWon {
		t.Errorf("report = %+v, statuses = %v", rep, store.status)
	}
}
