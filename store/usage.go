package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type WeeklyUsage struct {
	ID        int64
	UserID    int64
	WeekStart string // YYYY-MM-DD of the Monday
	Words     int
}

// EnsureWeeklyUsage returns the (userID, week) row, creating it at zero.
// Concurrent first calls converge on the same row.
func (s *Store) EnsureWeeklyUsage(ctx context.Context, userID int64, week string) (*WeeklyUsage, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_usage (user_id, week_start, words)
		VALUES (?, ?, 0)
		ON CONFLICT (user_id, week_start) DO NOTHING
	`, userID, week); err != nil {
		return nil, fmt.Errorf("upsert weekly usage: %w", err)
	}

	var u WeeklyUsage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, week_start, words FROM weekly_usage
		WHERE user_id = ? AND week_start = ?
	`, userID, week).Scan(&u.ID, &u.UserID, &u.WeekStart, &u.Words)
	if err != nil {
		return nil, fmt.Errorf("select weekly usage: %w", err)
	}
	return &u, nil
}

// AddWords increments the row's counter in a single statement and returns
// the new total.
func (s *Store) AddWords(ctx context.Context, usageID int64, words int) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		UPDATE weekly_usage SET words = words + ?
		WHERE id = ?
		RETURNING words
	`, words, usageID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("add words: %w", err)
	}
	return total, nil
}

func (s *Store) LogTranscription(ctx context.Context, userID int64, words int, duration time.Duration, engine string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcriptions (user_id, words, duration_ms, engine, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, words, duration.Milliseconds(), engine, unix(now))
	if err != nil {
		return fmt.Errorf("log transcription: %w", err)
	}
	return nil
}

// TranscriptionCount reports how many transcriptions userID has logged.
func (s *Store) TranscriptionCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcriptions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
