package alerting

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
)

// memStore reproduz o UPDATE condicional do Postgres, inclusive o NUMERIC(10,3)
type memStore struct {
	mu      sync.Mutex
	tracked []Tracked
	notes   []Notification
	teams   map[string][2]string
}

func sameLine(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func (s *memStore) MatchingTracked(_ context.Context, q normalizer.Quote) ([]Tracked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Tracked
	for _, t := range s.tracked {
		if t.EventID == q.EventID && t.Market == q.Market && t.Outcome == q.Outcome && sameLine(t.Line, q.Line) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) Fire(_ context.Context, t Tracked, q normalizer.Quote, msg string) (Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tracked {
		cur := &s.tracked[i]
		if cur.ID != t.ID || !ShouldFire(*cur, q.Price) {
			continue
		}
		now := time.Now()
		cur.LastNotifiedAt = &now
		cur.LastNotifiedPrice = decimal.NewNullDecimal(q.Price.Round(3))
		n := Notification{ID: int64(len(s.notes) + 1), UserID: t.UserID, TrackedID: t.ID, EventID: q.EventID,
			Market: q.Market, Outcome: q.Outcome, Line: q.Line, CurrentPrice: q.Price, Bookmaker: q.Bookmaker, Message: msg}
		s.notes = append(s.notes, n)
		return n, true, nil
	}
	return Notification{}, false, nil
}

func (s *memStore) EventTeams(_ context.Context, id string) (string, string, bool, error) {
	t, ok := s.teams[id]
	return t[0], t[1], ok, nil
}

func (s *memStore) Upsert(_ context.Context, req TrackRequest) (Tracked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tracked {
		t := &s.tracked[i]
		if t.UserID == req.UserID && t.EventID == req.EventID && t.Market == req.Market &&
			t.Outcome == req.Outcome && sameLine(t.Line, req.Line) {
			t.TargetPrice = req.TargetPrice
			t.LastNotifiedAt, t.LastNotifiedPrice = nil, decimal.NullDecimal{}
			return *t, nil
		}
	}
	t := Tracked{ID: int64(len(s.tracked) + 1), UserID: req.UserID, EventID: req.EventID, Market: req.Market,
		Outcome: req.Outcome, Line: req.Line, TargetPrice: req.TargetPrice}
	s.tracked = append(s.tracked, t)
	return t, nil
}

func (s *memStore) Delete(context.Context, string, int64) error { return nil }
func (s *memStore) ListTracked(context.Context, string) ([]Tracked, error) {
	return s.tracked, nil
}
func (s *memStore) ListNotifications(context.Context, string, bool, int) ([]Notification, error) {
	return s.notes, nil
}
func (s *memStore) UnreadCount(context.Context, string) (int, error)   { return len(s.notes), nil }
func (s *memStore) MarkRead(context.Context, string, int64) error      { return nil }
func (s *memStore) MarkAllRead(context.Context, string) (int64, error) { return 0, nil }

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []pubsub.Envelope
}

func (b *fakeBroadcaster) PublishJSON(_ context.Context, _ string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, v.(pubsub.Envelope))
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quote(price string) normalizer.Quote {
	return normalizer.Quote{EventID: "e1", Bookmaker: "DraftKings", Market: "h2h", Outcome: "Lakers", Price: dec(price)}
}

func newEngine(store *memStore) (*Engine, *fakeBroadcaster) {
	b := &fakeBroadcaster{}
	return &Engine{Log: zap.NewNop(), Store: store, Broadcaster: b, Channel: "price_alerts_broadcast"}, b
}

func TestOnQuoteFiresOncePerImprovement(t *testing.T) {
	store := &memStore{teams: map[string][2]string{"e1": {"Lakers", "Celtics"}}}
	e, b := newEngine(store)
	ctx := context.Background()
	if _, err := e.Track(ctx, TrackRequest{UserID: "u1", EventID: "e1", Market: "h2h", Outcome: "Lakers", TargetPrice: dec("2.10")}); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		price string
		want  int
	}{
		{"2.05", 0}, // abaixo do alvo
		{"2.10", 1}, // atinge o alvo
		{"2.10", 0}, // mesmo preço
		{"2.08", 0}, // piora
		{"2.15", 1}, // melhora estrita
		{"2.1500001", 0},
	}
	for i, st := range steps {
		got, err := e.OnQuote(ctx, quote(st.price))
		if err != nil {
			t.Fatal(err)
		}
		if got != st.want {
			t.Errorf("step %d price %s: fired %d, want %d", i, st.price, got, st.want)
		}
	}
	if len(store.notes) != 2 || len(b.sent) != 2 {
		t.Errorf("notifications = %d, broadcasts = %d; want 2, 2", len(store.notes), len(b.sent))
	}
	if b.sent[0].Topic != "user:u1" {
		t.Errorf("topic = %s", b.sent[0].Topic)
	}
}

func TestOnQuoteSubScalePriceFiresOnce(t *testing.T) {
	store := &memStore{}
	e, _ := newEngine(store)
	ctx := context.Background()
	_, _ = e.Track(ctx, TrackRequest{UserID: "u1", EventID: "e1", Market: "h2h", Outcome: "Lakers", TargetPrice: dec("2.5")})

	steps := []struct {
		price string
		want  int
	}{
		{"2.6004", 1},
		{"2.6004", 0}, // gravado como 2.600
		{"2.6003", 0},
		{"2.6006", 1}, // 2.601
	}
	for i, st := range steps {
		got, err := e.OnQuote(ctx, quote(st.price))
		if err != nil {
			t.Fatal(err)
		}
		if got != st.want {
			t.Errorf("step %d price %s: fired %d, want %d", i, st.price, got, st.want)
		}
	}
	if n := store.tracked[0].LastNotifiedPrice.Decimal; !n.Equal(dec("2.601")) {
		t.Errorf("last notified = %s, want 2.601", n)
	}
	if p := store.notes[0].CurrentPrice; !p.Equal(dec("2.6")) {
		t.Errorf("notified price = %s, want 2.6", p)
	}
}

func TestTrackRearms(t *testing.T) {
	store := &memStore{}
	e, _ := newEngine(store)
	ctx := context.Background()
	req := TrackRequest{UserID: "u1", EventID: "e1", Market: "h2h", Outcome: "Lakers", TargetPrice: dec("2.00")}
	_, _ = e.Track(ctx, req)

	if n, _ := e.OnQuote(ctx, quote("2.20")); n != 1 {
		t.Fatalf("first fire = %d", n)
	}
	if n, _ := e.OnQuote(ctx, quote("2.20")); n != 0 {
		t.Fatalf("repeat fire = %d", n)
	}
	_, _ = e.Track(ctx, req)
	if n, _ := e.OnQuote(ctx, quote("2.20")); n != 1 {
		t.Errorf("after re-track fire = %d, want 1", n)
	}
}

func TestOnQuoteLineMatching(t *testing.T) {
	store := &memStore{}
	e, _ := newEngine(store)
	ctx := context.Background()
	_, _ = e.Track(ctx, TrackRequest{UserID: "u1", EventID: "e1", Market: "spreads", Outcome: "Lakers",
		Line: decimal.NewNullDecimal(dec("-3.5")), TargetPrice: dec("1.90")})

	q := normalizer.Quote{EventID: "e1", Market: "spreads", Outcome: "Lakers", Price: dec("1.95")}
	if n, _ := e.OnQuote(ctx, q); n != 0 {
		t.Errorf("null line quote fired %d", n)
	}
	q.Line = decimal.NewNullDecimal(dec("-4.5"))
	if n, _ := e.OnQuote(ctx, q); n != 0 {
		t.Errorf("other line fired %d", n)
	}
	q.Line = decimal.NewNullDecimal(dec("-3.500"))
	if n, _ := e.OnQuote(ctx, q); n != 1 {
		t.Errorf("same line fired %d, want 1", n)
	}
}

func TestConcurrentQuotesFireOnce(t *testing.T) {
	store := &memStore{}
	e, _ := newEngine(store)
	ctx := context.Background()
	_, _ = e.Track(ctx, TrackRequest{UserID: "u1", EventID: "e1", Market: "h2h", Outcome: "Lakers", TargetPrice: dec("2.00")})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.OnQuote(ctx, quote("2.30"))
		}()
	}
	wg.Wait()
	if len(store.notes) != 1 {
		t.Errorf("notifications = %d, want 1", len(store.notes))
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		teams map[string][2]string
		tr    Tracked
		q     normalizer.Quote
		want  string
	}{
		{
			name:  "moneyline",
			teams: map[string][2]string{"e1": {"Lakers", "Celtics"}},
			tr:    Tracked{Market: "h2h", Outcome: "Lakers", TargetPrice: dec("2.1")},
			q:     normalizer.Quote{EventID: "e1", Bookmaker: "FanDuel", Price: dec("2.25")},
			want:  "Lakers vs Celtics - Moneyline Lakers reached 2.10 (now 2.25 at FanDuel)",
		},
		{
			name: "unknown event spread",
			tr:   Tracked{Market: "spreads", Outcome: "Celtics", Line: decimal.NewNullDecimal(dec("3.500")), TargetPrice: dec("1.95")},
			q:    normalizer.Quote{EventID: "e9", Bookmaker: "FanDuel", Price: dec("2")},
			want: "Event e9 - Spread Celtics +3.5 reached 1.95 (now 2.00 at FanDuel)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(&memStore{teams: tt.teams})
			got := Message(e.eventLabel(context.Background(), tt.q.EventID), tt.tr, tt.q)
			if got != tt.want {
				t.Errorf("Message() = %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestTrackValidation(t *testing.T) {
	e, _ := newEngine(&memStore{})
	_, err := e.Track(context.Background(), TrackRequest{UserID: "u1", EventID: "e1", Market: "h2h", Outcome: "X", TargetPrice: dec("1")})
	if err != ErrInvalidTarget {
		t.Errorf("err = %v, want ErrInvalidTarget", err)
	}
	_, err = e.Track(context.Background(), TrackRequest{UserID: "u1", TargetPrice: dec("2")})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("err = %v, want ErrInvalidTrack", err)
	}
}
