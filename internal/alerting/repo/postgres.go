package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/radieske/paper-sportsbook/internal/alerting"
	"github.com/radieske/paper-sportsbook/internal/normalizer"
)

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{DB: db} }

const trackedCols = `id, user_id, event_id, market, outcome, line, target_price, last_notified_at, last_notified_price`

type scanner interface {
	Scan(dest ...any) error
}

func scanTracked(s scanner) (alerting.Tracked, error) {
	var (
		t  alerting.Tracked
		at sql.NullTime
	)
	err := s.Scan(&t.ID, &t.UserID, &t.EventID, &t.Market, &t.Outcome, &t.Line, &t.TargetPrice, &at, &t.LastNotifiedPrice)
	if at.Valid {
		t.LastNotifiedAt = &at.Time
	}
	return t, err
}

func (s *PostgresStore) MatchingTracked(ctx context.Context, q normalizer.Quote) ([]alerting.Tracked, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+trackedCols+`
		FROM tracked_odds
		WHERE event_id = $1 AND market = $2 AND outcome = $3
		  AND line IS NOT DISTINCT FROM $4`,
		q.EventID, q.Market, q.Outcome, q.Line)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerting.Tracked
	for rows.Next() {
		t, err := scanTracked(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Fire re-checa a regra de disparo no próprio UPDATE: se duas ingestões
// concorrentes avaliarem a mesma cotação, só uma afeta a linha.
func (s *PostgresStore) Fire(ctx context.Context, t alerting.Tracked, q normalizer.Quote, message string) (alerting.Notification, bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return alerting.Notification{}, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tracked_odds
		SET last_notified_at = NOW(), last_notified_price = $1, updated_at = NOW()
		WHERE id = $2
		  AND $1 >= target_price
		  AND (last_notified_price IS NULL OR $1 > last_notified_price + 0.000001)`,
		q.Price, t.ID)
	if err != nil {
		return alerting.Notification{}, false, fmt.Errorf("update tracked: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return alerting.Notification{}, false, err
	}

	n := alerting.Notification{
		UserID:       t.UserID,
		TrackedID:    t.ID,
		EventID:      q.EventID,
		Market:       q.Market,
		Outcome:      q.Outcome,
		Line:         q.Line,
		CurrentPrice: q.Price,
		Bookmaker:    q.Bookmaker,
		Message:      message,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, tracked_id, event_id, market, outcome, line, current_price, bookmaker, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		n.UserID, n.TrackedID, n.EventID, n.Market, n.Outcome, n.Line, n.CurrentPrice, n.Bookmaker, n.Message).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return alerting.Notification{}, false, fmt.Errorf("insert notification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return alerting.Notification{}, false, err
	}
	return n, true, nil
}

func (s *PostgresStore) EventTeams(ctx context.Context, eventID string) (string, string, bool, error) {
	var home, away string
	err := s.DB.QueryRowContext(ctx,
		`SELECT home_team, away_team FROM events WHERE event_id = $1`, eventID).Scan(&home, &away)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return home, away, true, nil
}

// Upsert grava o alvo e zera last_notified_*, rearmando o alerta
func (s *PostgresStore) Upsert(ctx context.Context, req alerting.TrackRequest) (alerting.Tracked, error) {
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO tracked_odds (user_id, event_id, market, outcome, line, target_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT uq_tracked_selection DO UPDATE
		SET target_price = EXCLUDED.target_price,
		    last_notified_at = NULL,
		    last_notified_price = NULL,
		    updated_at = NOW()
		RETURNING `+trackedCols,
		req.UserID, req.EventID, req.Market, req.Outcome, req.Line, req.TargetPrice)
	return scanTracked(row)
}

func (s *PostgresStore) Delete(ctx context.Context, userID string, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tracked_odds WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return alerting.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTracked(ctx context.Context, userID string) ([]alerting.Tracked, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+trackedCols+`
		FROM tracked_odds
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerting.Tracked
	for rows.Next() {
		t, err := scanTracked(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]alerting.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, COALESCE(tracked_id, 0), event_id, market, outcome, line, current_price, bookmaker, message, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerting.Notification
	for rows.Next() {
		n := alerting.Notification{UserID: userID}
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.TrackedID, &n.EventID, &n.Market, &n.Outcome, &n.Line,
			&n.CurrentPrice, &n.Bookmaker, &n.Message, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID string, id int64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return alerting.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ alerting.Store = (*PostgresStore)(nil)
