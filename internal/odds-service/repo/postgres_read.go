package repo

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/odds-service/dto"
)

var ErrNotFound = errors.New("not found")

type ReadRepo struct {
	DB *sql.DB
}

func (r *ReadRepo) ListSports(ctx context.Context) ([]dto.Sport, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT sport_key, title, group_name
		FROM sports
		WHERE active
		ORDER BY group_name, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.Sport
	for rows.Next() {
		var s dto.Sport
		if err := rows.Scan(&s.SportKey, &s.Title, &s.Group); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEvents lista eventos a partir de since, opcionalmente de um esporte
func (r *ReadRepo) ListEvents(ctx context.Context, sport string, since time.Time) ([]dto.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT event_id, sport_key, home_team, away_team, commence_time, status
		FROM events
		WHERE ($1 = '' OR sport_key = $1) AND commence_time >= $2
		ORDER BY commence_time, event_id
		LIMIT 500`, sport, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.Event
	for rows.Next() {
		var e dto.Event
		if err := rows.Scan(&e.EventID, &e.SportKey, &e.HomeTeam, &e.AwayTeam, &e.CommenceTime, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ReadRepo) GetEvent(ctx context.Context, eventID string) (dto.Event, error) {
	var e dto.Event
	err := r.DB.QueryRowContext(ctx, `
		SELECT event_id, sport_key, home_team, away_team, commence_time, status
		FROM events WHERE event_id = $1`, eventID).
		Scan(&e.EventID, &e.SportKey, &e.HomeTeam, &e.AwayTeam, &e.CommenceTime, &e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return dto.Event{}, ErrNotFound
	}
	return e, err
}

func (r *ReadRepo) ListMarkets(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT market
		FROM odds
		WHERE event_id = $1
		ORDER BY market`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ReadRepo) GetOddsByEvent(ctx context.Context, eventID string) ([]dto.Odds, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT bookmaker, market, outcome, line, price
		FROM odds
		WHERE event_id = $1
		ORDER BY market, outcome, line NULLS FIRST, price DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.Odds
	for rows.Next() {
		var o dto.Odds
		if err := rows.Scan(&o.Bookmaker, &o.Market, &o.Outcome, &o.Line, &o.Price); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// searchCandidates limita quantos eventos entram na ordenação por relevância
const searchCandidates = 500

// SearchEvents busca eventos a partir de since cujos times contêm todos os
// termos (já normalizados). O filtro usa events.search_key; a relevância
// (prefixo vale mais que substring) é calculada aqui.
func (r *ReadRepo) SearchEvents(ctx context.Context, terms []string, since time.Time, limit int) ([]dto.SearchHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = "%" + t + "%"
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT e.event_id, e.sport_key, e.home_team, e.away_team, e.commence_time, e.status, COALESCE(s.title, '')
		FROM events e
		LEFT JOIN sports s ON s.sport_key = e.sport_key
		WHERE e.commence_time >= $1 AND e.search_key LIKE ALL($2)
		ORDER BY e.commence_time, e.event_id
		LIMIT $3`, since, pq.Array(patterns), searchCandidates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dto.SearchHit
	for rows.Next() {
		var h dto.SearchHit
		if err := rows.Scan(&h.EventID, &h.SportKey, &h.HomeTeam, &h.AwayTeam, &h.CommenceTime, &h.Status, &h.SportTitle); err != nil {
			return nil, err
		}
		h.Score = normalizer.SearchScore(terms, h.HomeTeam, h.AwayTeam)
		if h.Score == 0 {
			continue
		}
		if strings.TrimSpace(h.SportTitle) == "" {
			h.SportTitle = sportTitle(h.SportKey)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// já vem por commence_time; stable mantém essa ordem no empate
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sportTitle: "basketball_nba" -> "Basketball Nba" quando o catálogo não tem título
func sportTitle(key string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(key, "_", " "))
}
