package normalizer

import "strings"

// MinSearchLength é o tamanho mínimo da consulta de busca de eventos
const MinSearchLength = 2

// SearchKey é a chave gravada em events.search_key. O separador impede que um
// termo case atravessando os dois times.
func SearchKey(home, away string) string {
	return NormalizeTeamLabel(home) + "|" + NormalizeTeamLabel(away)
}

// SearchTerms quebra a consulta em termos já normalizados; termos que ficam
// vazios (só pontuação) são descartados.
func SearchTerms(q string) []string {
	var out []string
	for _, f := range strings.Fields(q) {
		if t := NormalizeTeamLabel(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SearchScore pontua um evento: 2 por termo que é prefixo de um dos times,
// 1 por termo contido. Zero quando algum termo não aparece.
func SearchScore(terms []string, home, away string) int {
	h, a := NormalizeTeamLabel(home), NormalizeTeamLabel(away)
	score := 0
	for _, t := range terms {
		switch {
		case strings.HasPrefix(h, t) || strings.HasPrefix(a, t):
			score += 2
		case strings.Contains(h, t) || strings.Contains(a, t):
			score++
		default:
			return 0
		}
	}
	return score
}
