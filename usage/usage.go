// Package usage enforces the weekly word allowance and license entitlement.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vox/store"
)

const (
	DefaultWeeklyLimit = 3000
	weekLayout         = "2006-01-02"
)

var (
	ErrQuotaExceeded  = errors.New("weekly word limit reached")
	ErrKeyAlreadyUsed = errors.New("license key already in use")
	ErrNegativeWords  = errors.New("word count must not be negative")
	ErrInvalidKey     = errors.New("invalid license key format")
)

// WeekStart returns Monday 00:00 of now's week in now's location.
func WeekStart(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}

// WeekKey is the bucket identifier stored with each usage row.
func WeekKey(now time.Time) string {
	return WeekStart(now).Format(weekLayout)
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

type Service struct {
	store *store.Store
	limit int
}

func NewService(st *store.Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultWeeklyLimit
	}
	return &Service{store: st, limit: limit}
}

func (s *Service) Limit() int { return s.limit }

func (s *Service) GetOrCreateWeeklyUsage(ctx context.Context, userID int64, now time.Time) (*store.WeeklyUsage, error) {
	return s.store.EnsureWeeklyUsage(ctx, userID, WeekKey(now))
}

// RecordUsage adds words to u atomically and refreshes u.Words with the
// stored total.
func (s *Service) RecordUsage(ctx context.Context, u *store.WeeklyUsage, words int) error {
	if words < 0 {
		return ErrNegativeWords
	}
	total, err := s.store.AddWords(ctx, u.ID, words)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	u.Words = total
	return nil
}

// CheckQuota must run before the engine is invoked; it judges the counter
// as it stood before this attempt.
func (s *Service) CheckQuota(user *store.User, u *store.WeeklyUsage) error {
	if user.LicenseActive {
		return nil
	}
	if u.Words >= s.limit {
		return fmt.Errorf("%w: %d of %d words used this week", ErrQuotaExceeded, u.Words, s.limit)
	}
	return nil
}

// Remaining is -1 for entitled users.
func (s *Service) Remaining(user *store.User, u *store.WeeklyUsage) int {
	if user.LicenseActive {
		return -1
	}
	return max(0, s.limit-u.Words)
}
