package server

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vox/api"
	"vox/store"
	"vox/usage"
)

const minPasswordLen = 8

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	email := strings.TrimSpace(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		writeError(w, http.StatusBadRequest, "", "Invalid email address")
		return
	}
	if len(in.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "", "Password must be at least 8 characters")
		return
	}
	// bcrypt ignores everything past 72 bytes.
	if len(in.Password) > 72 {
		writeError(w, http.StatusBadRequest, "", "Password must be at most 72 bytes")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		s.internalError(w, r, err, "hash password")
		return
	}
	user, err := s.store.CreateUser(r.Context(), email, strings.TrimSpace(in.Name), string(hash), s.now())
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, api.CodeEmailTaken, "Email already registered")
		return
	}
	if err != nil {
		s.internalError(w, r, err, "create user")
		return
	}
	registrations.Inc()
	s.issueToken(w, r, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	user, err := s.store.UserByEmail(r.Context(), in.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, r, err, "lookup user")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "Invalid email or password")
		return
	}
	s.issueToken(w, r, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteToken(r.Context(), bearer(r)); err != nil {
		s.internalError(w, r, err, "delete token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profile(r, userFrom(r))
	if err != nil {
		s.internalError(w, r, err, "load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, user *store.User) {
	token, err := s.store.CreateToken(r.Context(), user.ID, s.tokenTTL, s.now())
	if err != nil {
		s.internalError(w, r, err, "create token")
		return
	}
	profile, err := s.profile(r, user)
	if err != nil {
		s.internalError(w, r, err, "load profile")
		return
	}
	writeJSON(w, http.StatusOK, api.AuthResponse{Token: token, User: *profile})
}

func (s *Server) profile(r *http.Request, user *store.User) (*api.User, error) {
	now := s.now()
	u, err := s.usage.GetOrCreateWeeklyUsage(r.Context(), user.ID, now)
	if err != nil {
		return nil, err
	}
	return &api.User{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		LicenseActive:  user.LicenseActive,
		WordsThisWeek:  u.Words,
		WordsRemaining: s.usage.Remaining(user, u),
		WeekStart:      usage.WeekKey(now),
	}, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, op string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(op)
	writeError(w, http.StatusInternalServerError, "", "Internal server error")
}
