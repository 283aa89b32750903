package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vox/config"
	"vox/log"
	"vox/server"
	"vox/shutdown"
	"vox/store"
	"vox/transcriber"
	"vox/usage"
)

func runServe(args []string) int {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fs := flag.NewFlagSet("vox serve", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.BoolVar(&cfg.LogPretty, "pretty", cfg.LogPretty, "human-readable logs")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	logger := log.NewServer(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
		return 1
	}
	defer st.Close()

	engine, err := transcriber.New(transcriber.Config{
		Engine:   cfg.Engine,
		APIKey:   cfg.EngineAPIKey,
		URL:      cfg.EngineURL,
		Model:    cfg.EngineModel,
		Language: cfg.EngineLanguage,
		Timeout:  cfg.EngineTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("configure engine")
		return 1
	}

	srv := server.New(server.Options{
		Store:          st,
		Usage:          usage.NewService(st, cfg.WeeklyWordLimit),
		Engine:         engine,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		TokenTTL:       cfg.TokenTTL,
		Metrics:        cfg.MetricsEnabled,
	})

	logger.Info().
		Str("version", version).
		Str("db", cfg.DatabasePath).
		Int("weekly_word_limit", cfg.WeeklyWordLimit).
		Msg("starting vox service")

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	if err := srv.Serve(ctx, cfg.Addr); err != nil {
		logger.Error().Err(err).Msg("server error")
		return 1
	}
	return 0
}
