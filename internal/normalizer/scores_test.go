package normalizer

import (
	"errors"
	"testing"
)

func TestResolveFallbackChain(t *testing.T) {
	m := NewTeamMatcher(DefaultMaxDistance)
	const home, away = "Boston Celtics", "Miami Heat"

	tests := []struct {
		name     string
		payload  string
		wantHome float64
		wantAway float64
		keyword  bool
		wantErr  error
	}{
		{
			name:     "scores array with string values",
			payload:  `[{"id":"e","completed":true,"scores":[{"name":"Miami Heat","score":"101"},{"name":"Boston Celtics","score":"110"}]}]`,
			wantHome: 110, wantAway: 101,
		},
		{
			name:     "scores array with fuzzy names and numbers",
			payload:  `[{"id":"e","completed":true,"scores":[{"name":"boston celtcs","score":98},{"name":"MIAMI HEAT","score":98}]}]`,
			wantHome: 98, wantAway: 98,
		},
		{
			name:     "home_score and away_score fields",
			payload:  `[{"id":"e","completed":true,"home_score":"3","away_score":1}]`,
			wantHome: 3, wantAway: 1,
		},
		{
			name:     "flipped orientation in feed",
			payload:  `[{"id":"e","completed":true,"home_team":"Miami Heat","away_team":"Boston Celtics","home_score":7,"away_score":4}]`,
			wantHome: 4, wantAway: 7,
		},
		{
			name:     "keyword win on away side",
			payload:  `[{"id":"e","completed":true,"scores":[{"name":"Miami Heat","score":"Win"}]}]`,
			wantHome: 0, wantAway: 1, keyword: true,
		},
		{
			name:    "keyword draw",
			payload: `[{"id":"e","completed":true,"home_score":"draw","away_score":"draw"}]`,
			keyword: true,
		},
		{
			name:    "contradictory keywords",
			payload: `[{"id":"e","completed":true,"scores":[{"name":"Miami Heat","score":"win"},{"name":"Boston Celtics","score":"win"}]}]`,
			wantErr: ErrScoresUnresolved,
		},
		{
			name:    "both entries map to the same side",
			payload: `[{"id":"e","completed":true,"scores":[{"name":"Boston Celtics","score":"1"},{"name":"Boston Celtic","score":"2"}]}]`,
			wantErr: ErrScoresUnresolved,
		},
		{
			name:    "unknown team names",
			payload: `[{"id":"e","completed":true,"scores":[{"name":"Lakers","score":"1"},{"name":"Bulls","score":"2"}]}]`,
			wantErr: ErrScoresUnresolved,
		},
		{
			name:    "not completed",
			payload: `[{"id":"e","completed":false,"scores":[{"name":"Miami Heat","score":"10"},{"name":"Boston Celtics","score":"3"}]}]`,
			wantErr: ErrNotCompleted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := ParseScores([]byte(tt.payload))
			if err != nil || len(list) != 1 {
				t.Fatalf("ParseScores() = %d, %v", len(list), err)
			}
			got, err := m.Resolve(list[0], home, away)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.HomeScore != tt.wantHome || got.AwayScore != tt.wantAway || got.KeywordOnly != tt.keyword {
				t.Errorf("Resolve() = %+v, want %v-%v keyword=%v", got, tt.wantHome, tt.wantAway, tt.keyword)
			}
		})
	}
}

func TestGameResultWinner(t *testing.T) {
	if w := (GameResult{HomeScore: 3, AwayScore: 1}).Winner(); w != SideHome {
		t.Errorf("Winner(3-1) = %v", w)
	}
	if w := (GameResult{HomeScore: 2, AwayScore: 2}).Winner(); w != SideNone {
		t.Errorf("Winner(2-2) = %v", w)
	}
	if total := (GameResult{HomeScore: 110, AwayScore: 101}).Total(); total != 211 {
		t.Errorf("Total() = %v", total)
	}
}

func TestIndexScoresSkipsMissingID(t *testing.T) {
	list, err := ParseScores([]byte(`[{"id":"a","completed":true},{"completed":true},{"id":"b"}]`))
	if err != nil {
		t.Fatal(err)
	}
	idx := IndexScores(list)
	if len(idx) != 2 {
		t.Errorf("IndexScores() len = %d, want 2", len(idx))
	}
	if _, ok := idx["b"]; !ok {
		t.Error("event b missing from index")
	}
}
