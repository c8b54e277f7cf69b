package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
)

// PostgresRepo persiste catálogo, eventos e cotações ingeridas
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertSports atualiza o catálogo de esportes
func (r *PostgresRepo) UpsertSports(ctx context.Context, sports []normalizer.SportPayload) error {
	const q = `
		INSERT INTO sports (sport_key, title, group_name, active, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sport_key) DO UPDATE SET
		  title      = EXCLUDED.title,
		  group_name = EXCLUDED.group_name,
		  active     = EXCLUDED.active,
		  updated_at = NOW()
	`
	for _, s := range sports {
		if _, err := r.DB.ExecContext(ctx, q, s.Key, s.Title, s.Group, s.Active); err != nil {
			return fmt.Errorf("upsert sport %s: %w", s.Key, err)
		}
	}
	return nil
}

// ReplaceEvent faz upsert do evento e substitui todas as suas cotações numa
// transação; leitores nunca veem um evento com cotações pela metade.
func (r *PostgresRepo) ReplaceEvent(ctx context.Context, eo normalizer.EventOdds) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ev := eo.Event
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (event_id, sport_key, home_team, away_team, commence_time, search_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
		  sport_key     = EXCLUDED.sport_key,
		  home_team     = EXCLUDED.home_team,
		  away_team     = EXCLUDED.away_team,
		  commence_time = EXCLUDED.commence_time,
		  search_key    = EXCLUDED.search_key,
		  updated_at    = NOW()
	`, ev.ID, ev.SportKey, ev.HomeTeam, ev.AwayTeam, ev.CommenceTime,
		normalizer.SearchKey(ev.HomeTeam, ev.AwayTeam)); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM odds WHERE event_id = $1`, ev.ID); err != nil {
		return fmt.Errorf("delete odds: %w", err)
	}

	if len(eo.Quotes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO odds (event_id, bookmaker, market, outcome, line, price, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, q := range eo.Quotes {
			if _, err := stmt.ExecContext(ctx, ev.ID, q.Bookmaker, q.Market, q.Outcome, q.Line, q.Price); err != nil {
				return fmt.Errorf("insert odds: %w", err)
			}
		}
	}
	return tx.Commit()
}
