package normalizer

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDistance é a distância de edição padrão aceita no match de times.
// Heurística: nomes muito curtos podem casar errado, por isso é configurável.
const DefaultMaxDistance = 2

// Side identifica o mandante ou o visitante de um evento
type Side int

const (
	SideNone Side = iota
	SideHome
	SideAway
)

func (s Side) String() string {
	switch s {
	case SideHome:
		return "home"
	case SideAway:
		return "away"
	default:
		return "none"
	}
}

// Opposite retorna o outro lado do confronto
func (s Side) Opposite() Side {
	switch s {
	case SideHome:
		return SideAway
	case SideAway:
		return SideHome
	default:
		return SideNone
	}
}

// NormalizeTeamLabel gera o slug usado para comparar nomes de times:
// remove acentos, passa para minúsculas e descarta tudo que não é [a-z0-9].
func NormalizeTeamLabel(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TeamMatcher associa um nome livre (vindo do feed de placares ou de uma aposta)
// a um dos lados do evento. Ordem: slug exato, depois distância de edição.
type TeamMatcher struct {
	MaxDistance int
}

func NewTeamMatcher(maxDistance int) TeamMatcher {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	return TeamMatcher{MaxDistance: maxDistance}
}

// Match retorna o lado correspondente a name. ok=false quando não há
// correspondência única.
func (m TeamMatcher) Match(name, home, away string) (Side, bool) {
	n := NormalizeTeamLabel(name)
	if n == "" {
		return SideNone, false
	}
	h, a := NormalizeTeamLabel(home), NormalizeTeamLabel(away)

	switch {
	case n == h && n == a:
		return SideNone, false
	case n == h:
		return SideHome, true
	case n == a:
		return SideAway, true
	}

	dh := levenshtein.ComputeDistance(n, h)
	da := levenshtein.ComputeDistance(n, a)
	best, side := dh, SideHome
	if da < dh {
		best, side = da, SideAway
	}
	if dh == da || best > m.MaxDistance || best >= len(n) {
		return SideNone, false
	}
	return side, true
}
