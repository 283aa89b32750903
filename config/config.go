// Package config loads client and service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"vox/encoder"
	"vox/hotkey"
	"vox/inject"
)

// Client holds the desktop client's defaults. Command-line flags override
// every field.
type Client struct {
	ServerURL      string        `envconfig:"VOX_SERVER_URL" default:"http://127.0.0.1:8787"`
	RequestTimeout time.Duration `envconfig:"VOX_REQUEST_TIMEOUT" default:"60s"`
	Hotkey         string        `envconfig:"VOX_HOTKEY" default:"ctrl+shift+space"`
	Format         string        `envconfig:"VOX_FORMAT" default:"wav"`
	InjectMode     string        `envconfig:"VOX_INJECT_MODE" default:"type"`
	Device         string        `envconfig:"VOX_DEVICE" default:""`
	CredentialPath string        `envconfig:"VOX_CREDENTIAL_PATH" default:""`
	Beep           bool          `envconfig:"VOX_BEEP" default:"true"`
	Notify         bool          `envconfig:"VOX_NOTIFY" default:"true"`
	SpeechGate     bool          `envconfig:"VOX_SPEECH_GATE" default:"true"`
}

// Server holds the accounting service's settings.
type Server struct {
	Addr         string `envconfig:"VOX_ADDR" default:":8787"`
	DatabasePath string `envconfig:"VOX_DATABASE_PATH" default:"vox.db"`

	Engine         string        `envconfig:"VOX_ENGINE" default:"groq"` // groq, openai, deepgram, fake
	EngineAPIKey   string        `envconfig:"VOX_ENGINE_API_KEY"`
	EngineURL      string        `envconfig:"VOX_ENGINE_URL"`
	EngineModel    string        `envconfig:"VOX_ENGINE_MODEL"`
	EngineLanguage string        `envconfig:"VOX_ENGINE_LANGUAGE" default:"en"`
	EngineTimeout  time.Duration `envconfig:"VOX_ENGINE_TIMEOUT" default:"45s"`

	WeeklyWordLimit int           `envconfig:"VOX_WEEKLY_WORD_LIMIT" default:"3000"`
	TokenTTL        time.Duration `envconfig:"VOX_TOKEN_TTL" default:"720h"`
	MaxUploadMB     int64         `envconfig:"VOX_MAX_UPLOAD_MB" default:"25"`

	LogLevel       string `envconfig:"VOX_LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"VOX_LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"VOX_METRICS_ENABLED" default:"true"`
}

// LoadClient reads client defaults. A .env file in the working directory is
// applied first when present.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	var cfg Client
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that flags may also have set.
func (c *Client) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid server URL %q", c.ServerURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := hotkey.ParseChord(c.Hotkey); err != nil {
		return err
	}
	if _, err := encoder.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := inject.ParseMode(c.InjectMode); err != nil {
		return err
	}
	return nil
}

func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Server) Validate() error {
	switch s.Engine {
	case "fake":
	case "groq", "openai", "deepgram":
		if s.EngineAPIKey == "" {
			return fmt.Errorf("VOX_ENGINE_API_KEY is required for engine %q", s.Engine)
		}
	default:
		return fmt.Errorf("unknown engine %q", s.Engine)
	}
	if s.WeeklyWordLimit <= 0 {
		return fmt.Errorf("weekly word limit must be positive, got %d", s.WeeklyWordLimit)
	}
	if s.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", s.TokenTTL)
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload must be positive, got %d MB", s.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes is the request body cap for /transcribe.
func (s *Server) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}
