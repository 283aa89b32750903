// Package server is the HTTP front of the accounting service: accounts,
// licenses and metered transcription.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vox/api"
	"vox/store"
	"vox/transcriber"
	"vox/usage"
)

const (
	defaultMaxUpload = 25 << 20
	formMemory       = 8 << 20
	purgeInterval    = time.Hour
	shutdownTimeout  = 30 * time.Second
)

type Options struct {
	Store  *store.Store
	Usage  *usage.Service
	Engine transcriber.Engine
	Logger zerolog.Logger

	MaxUploadBytes int64
	TokenTTL       time.Duration
	Metrics        bool

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	store     *store.Store
	usage     *usage.Service
	engine    transcriber.Engine
	log       zerolog.Logger
	maxUpload int64
	tokenTTL  time.Duration
	metrics   bool
	cost      int
	now       func() time.Time
}

func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		usage:     opts.Usage,
		engine:    opts.Engine,
		log:       opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		tokenTTL:  opts.TokenTTL,
		metrics:   opts.Metrics,
		cost:      opts.BcryptCost,
		now:       opts.Now,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 30 * 24 * time.Hour
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed API wrapped in request logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, s.handleHealth)
	mux.HandleFunc("POST "+api.PathRegister, s.handleRegister)
	mux.HandleFunc("POST "+api.PathLogin, s.handleLogin)
	mux.HandleFunc("POST "+api.PathLogout, s.withUser(s.handleLogout))
	mux.HandleFunc("GET "+api.PathMe, s.withUser(s.handleMe))
	mux.HandleFunc("POST "+api.PathLicenseActive, s.withUser(s.handleActivate))
	mux.HandleFunc("GET "+api.PathLicenseStatus, s.withUser(s.handleLicenseStatus))
	mux.HandleFunc("POST "+api.PathTranscribe, s.withUser(s.handleTranscribe))
	if s.metrics {
		mux.Handle("GET "+api.PathMetrics, promhttp.Handler())
	}
	return s.requestLog(s.recoverer(mux))
}

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("engine", s.engine.Name()).Bool("metrics", s.metrics).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	go s.purgeTokens(ctx)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	s.log.Info().Msg("server exited")
	return nil
}

func (s *Server) purgeTokens(ctx context.Context) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.store.PurgeExpiredTokens(ctx, s.now())
			if err != nil {
				s.log.Warn().Err(err).Msg("purge expired tokens")
				continue
			}
			if n > 0 {
				s.log.Info().Int64("tokens", n).Msg("purged expired tokens")
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("database ping")
		writeJSON(w, http.StatusServiceUnavailable, api.Health{Status: "unavailable", Engine: s.engine.Name()})
		return
	}
	writeJSON(w, http.StatusOK, api.Health{Status: "ok", Engine: s.engine.Name()})
}
