package normalizer

import (
	"reflect"
	"testing"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		q    string
		want []string
	}{
		{"Atlético  Madrid", []string{"atletico", "madrid"}},
		{"  St. Louis - Blues ", []string{"st", "louis", "blues"}},
		{"!!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			if got := SearchTerms(tt.q); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SearchTerms(%q) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func TestSearchKey(t *testing.T) {
	if got := SearchKey("Club Atlético de Madrid", "São Paulo FC"); got != "clubatleticodemadrid|saopaulofc" {
		t.Errorf("SearchKey() = %q", got)
	}
}

func TestSearchScore(t *testing.T) {
	tests := []struct {
		name       string
		terms      []string
		home, away string
		want       int
	}{
		{"prefix", []string{"los"}, "Los Angeles Lakers", "Boston Celtics", 2},
		{"contained", []string{"lakers"}, "Los Angeles Lakers", "Boston Celtics", 1},
		{"both teams", []string{"lakers", "boston"}, "Los Angeles Lakers", "Boston Celtics", 3},
		{"missing term", []string{"lakers", "heat"}, "Los Angeles Lakers", "Boston Celtics", 0},
		{"accent folded", []string{"gremio"}, "Grêmio", "Internacional", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchScore(tt.terms, tt.home, tt.away); got != tt.want {
				t.Errorf("SearchScore() = %d, want %d", got, tt.want)
			}
		})
	}
}
