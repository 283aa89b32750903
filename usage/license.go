package usage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"vox/store"
)

const keyPrefix = "VOX"

// NewLicenseKey returns a random key of the form VOX-XXXX-XXXX-XXXX.
func NewLicenseKey() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return keyPrefix + "-" + hex[0:4] + "-" + hex[4:8] + "-" + hex[8:12]
}

// NormalizeKey trims and upper-cases a user-entered key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func ValidKey(key string) bool {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 4 {
			return false
		}
		for _, c := range p {
			if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
				return false
			}
		}
	}
	return true
}

// ActivateLicense binds key to user. A user who is already entitled gets
// success with no change, whatever key was sent. A key held by someone else
// is rejected. It reports whether a new binding was made.
func (s *Service) ActivateLicense(ctx context.Context, user *store.User, key string) (bool, error) {
	if user.LicenseActive {
		return false, nil
	}
	key = NormalizeKey(key)
	if !ValidKey(key) {
		return false, ErrInvalidKey
	}
	bound, err := s.store.BindLicense(ctx, user.ID, key)
	if errors.Is(err, store.ErrLicenseTaken) {
		return false, ErrKeyAlreadyUsed
	}
	if err != nil {
		return false, err
	}
	if bound {
		user.LicenseKey = key
		user.LicenseActive = true
	}
	return bound, nil
}
