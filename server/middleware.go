package server

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vox/api"
	"vox/log"
	"vox/store"
)

const requestIDHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// requestLog attaches a request-scoped logger carrying a request id and
// records one line plus metrics per request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = log.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)

		l := s.log.With().Str("request_id", id).Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		route := routeLabel(r.URL.Path)
		elapsed := time.Since(start)
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())

		ev := l.Info()
		if sw.status >= 500 {
			ev = l.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func routeLabel(path string) string {
	switch path {
	case api.PathHealth, api.PathRegister, api.PathLogin, api.PathLogout, api.PathMe,
		api.PathLicenseActive, api.PathLicenseStatus, api.PathTranscribe, api.PathMetrics:
		return path
	}
	return "other"
}

type userKey struct{}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// withUser resolves the bearer token and rejects the request with 401 when
// it is missing, unknown or expired.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "Not authenticated")
			return
		}
		user, err := s.store.UserByToken(r.Context(), token, s.now())
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "Invalid or expired token")
			return
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("resolve token")
			writeError(w, http.StatusInternalServerError, "", "Internal server error")
			return
		}
		l := zerolog.Ctx(r.Context()).With().Int64("user_id", user.ID).Logger()
		ctx := context.WithValue(l.WithContext(r.Context()), userKey{}, user)
		next(w, r.WithContext(ctx))
	}
}

func userFrom(r *http.Request) *store.User {
	u, _ := r.Context().Value(userKey{}).(*store.User)
	return u
}
