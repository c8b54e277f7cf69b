package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotCompleted: o evento ainda não terminou no feed
	ErrNotCompleted = errors.New("event not completed")
	// ErrScoresUnresolved: não foi possível montar um placar confiável
	ErrScoresUnresolved = errors.New("scores unresolved")
)

// ScoreEvent é uma entrada do snapshot de placares por esporte. Alguns feeds
// mandam scores[], outros home_score/away_score; o valor pode ser numérico,
// string numérica ou palavra-chave (win/loss/draw).
type ScoreEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	CommenceTime string          `json:"commence_time"`
	Completed    bool            `json:"completed"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Scores       []ScoreEntry    `json:"scores"`
	HomeScore    json.RawMessage `json:"home_score,omitempty"`
	AwayScore    json.RawMessage `json:"away_score,omitempty"`
	LastUpdate   string          `json:"last_update,omitempty"`
}

type ScoreEntry struct {
	Name  string          `json:"name"`
	Score json.RawMessage `json:"score"`
}

// GameResult é o placar final já orientado para o mandante/visitante
// armazenados. KeywordOnly indica que só se sabe o vencedor (1-0 / 0-0
// sintéticos), sem margem.
type GameResult struct {
	HomeTeam    string
	AwayTeam    string
	HomeScore   float64
	AwayScore   float64
	KeywordOnly bool
}

func (g GameResult) Total() float64 { return g.HomeScore + g.AwayScore }

// Score retorna o placar de um lado
func (g GameResult) Score(s Side) float64 {
	if s == SideAway {
		return g.AwayScore
	}
	return g.HomeScore
}

// Winner retorna o lado vencedor; SideNone em empate
func (g GameResult) Winner() Side {
	switch {
	case g.HomeScore > g.AwayScore:
		return SideHome
	case g.AwayScore > g.HomeScore:
		return SideAway
	default:
		return SideNone
	}
}

// ParseScores decodifica o snapshot de placares; entradas sem id são ignoradas
func ParseScores(payload []byte) ([]ScoreEvent, error) {
	var all []ScoreEvent
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	out := all[:0]
	for _, s := range all {
		if s.ID != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// IndexScores monta o mapa event_id -> placar
func IndexScores(list []ScoreEvent) map[string]ScoreEvent {
	m := make(map[string]ScoreEvent, len(list))
	for _, s := range list {
		m[s.ID] = s
	}
	return m
}

type scoreValue struct {
	num     float64
	keyword string // win | loss | draw
	numeric bool
}

func parseScoreValue(raw json.RawMessage) (scoreValue, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return scoreValue{}, false
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return scoreValue{}, false
		}
	} else {
		s = string(raw)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "win", "won", "w":
		return scoreValue{keyword: "win"}, true
	case "loss", "lost", "lose", "l":
		return scoreValue{keyword: "loss"}, true
	case "draw", "tie", "d":
		return scoreValue{keyword: "draw"}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return scoreValue{}, false
	}
	return scoreValue{num: f, numeric: true}, true
}

// Resolve aplica a cadeia de fallback para obter o placar de um evento
// armazenado como home x away:
//  1. scores[] com nomes casados pelo TeamMatcher
//  2. campos home_score/away_score
//  3. palavras-chave win/loss/draw relativas ao lado em que aparecem
func (m TeamMatcher) Resolve(ev ScoreEvent, home, away string) (GameResult, error) {
	if !ev.Completed {
		return GameResult{}, ErrNotCompleted
	}

	var vals [3]*scoreValue
	for _, entry := range ev.Scores {
		side, ok := m.Match(entry.Name, home, away)
		if !ok {
			continue
		}
		if vals[side] != nil {
			return GameResult{}, fmt.Errorf("%w: two score entries match %s", ErrScoresUnresolved, side)
		}
		v, ok := parseScoreValue(entry.Score)
		if !ok {
			return GameResult{}, fmt.Errorf("%w: unreadable score %q for %s", ErrScoresUnresolved, string(entry.Score), entry.Name)
		}
		vals[side] = &v
	}

	if vals[SideHome] == nil || vals[SideAway] == nil {
		h, hok := parseScoreValue(ev.HomeScore)
		a, aok := parseScoreValue(ev.AwayScore)
		if hok && aok {
			homeSide, awaySide := SideHome, SideAway
			// feed com mandante invertido em relação ao armazenado
			if ev.HomeTeam != "" {
				if s, ok := m.Match(ev.HomeTeam, home, away); ok && s == SideAway {
					homeSide, awaySide = SideAway, SideHome
				}
			}
			vals[homeSide], vals[awaySide] = &h, &a
		}
	}

	hv, av := vals[SideHome], vals[SideAway]
	if hv != nil && av != nil && hv.numeric && av.numeric {
		return GameResult{HomeTeam: home, AwayTeam: away, HomeScore: hv.num, AwayScore: av.num}, nil
	}
	return keywordResult(home, away, hv, av)
}

func keywordResult(home, away string, hv, av *scoreValue) (GameResult, error) {
	winner := SideNone
	decided := false
	apply := func(side Side, v *scoreValue) error {
		if v == nil || v.numeric {
			return nil
		}
		var w Side
		switch v.keyword {
		case "win":
			w = side
		case "loss":
			w = side.Opposite()
		case "draw":
			w = SideNone
		}
		if decided && w != winner {
			return fmt.Errorf("%w: contradictory keywords", ErrScoresUnresolved)
		}
		winner, decided = w, true
		return nil
	}
	if err := apply(SideHome, hv); err != nil {
		return GameResult{}, err
	}
	if err := apply(SideAway, av); err != nil {
		return GameResult{}, err
	}
	if !decided {
		return GameResult{}, fmt.Errorf("%w: no usable scores", ErrScoresUnresolved)
	}

	g := GameResult{HomeTeam: home, AwayTeam: away, KeywordOnly: true}
	switch winner {
	case SideHome:
		g.HomeScore = 1
	case SideAway:
		g.AwayScore = 1
	}
	return g, nil
}
