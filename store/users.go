package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID            int64
	Email         string
	Name          string
	PasswordHash  string
	LicenseKey    string
	LicenseActive bool
	CreatedAt     time.Time
}

const userColumns = `id, email, name, password_hash, COALESCE(license_key, ''), license_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.LicenseKey, &u.LicenseActive, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string, now time.Time) (*User, error) {
	email = strings.TrimSpace(email)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, email, name, passwordHash, unix(now))
	if err != nil {
		if isConstraint(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	return scanUser(row)
}

// BindLicense binds key to userID and marks the user entitled, in one
// transaction. It returns bound=false without changes when the user is
// already entitled, and ErrLicenseTaken when another user holds key.
func (s *Store) BindLicense(ctx context.Context, userID int64, key string) (bound bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT license_active FROM users WHERE id = ?`, userID).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, ErrNotFound
	case err != nil:
		return false, fmt.Errorf("lookup user: %w", err)
	case active:
		return false, nil
	}

	var owner int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE license_key = ?`, key).Scan(&owner)
	switch {
	case err == nil && owner != userID:
		return false, ErrLicenseTaken
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("lookup license owner: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET license_key = ?, license_active = 1
		WHERE id = ? AND license_active = 0
	`, key, userID)
	if err != nil {
		if isConstraint(err) {
			return false, ErrLicenseTaken
		}
		return false, fmt.Errorf("bind license: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		if isConstraint(err) {
			return false, ErrLicenseTaken
		}
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
