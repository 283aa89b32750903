package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateToken issues an opaque bearer token for userID valid for ttl.
func (s *Store) CreateToken(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (string, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, token, userID, unix(now), unix(now.Add(ttl)))
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

// UserByToken resolves a bearer token. Unknown and expired tokens both
// yield ErrNotFound.
func (s *Store) UserByToken(ctx context.Context, token string, now time.Time) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumnsQualified+`
		FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ? AND t.expires_at > ?
	`, token, unix(now))
	return scanUser(row)
}

func (s *Store) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PurgeExpiredTokens removes tokens that expired before now.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, unix(now))
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}

const userColumnsQualified = `u.id, u.email, u.name, u.password_hash, COALESCE(u.license_key, ''), u.license_active, u.created_at`
