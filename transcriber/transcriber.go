// Package transcriber holds the speech-to-text engines the service forwards
// uploaded audio to.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"vox/trace"
)

type Result struct {
	Text       string
	Duration   float64 // seconds of audio, when the engine reports it
	Confidence float64
	Metrics    *trace.Metrics
	RateLimit  string
}

type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error)
}

// Config selects and parameterizes an engine. URL and Model override the
// engine's defaults when set.
type Config struct {
	Engine   string
	APIKey   string
	URL      string
	Model    string
	Language string
	Timeout  time.Duration
}

func New(cfg Config) (Engine, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch strings.ToLower(cfg.Engine) {
	case "groq":
		return newOpenAICompatible("groq", groqURL, groqModel, cfg)
	case "openai":
		return newOpenAICompatible("openai", openaiURL, openaiModel, cfg)
	case "deepgram":
		return NewDeepgram(cfg)
	case "fake":
		return NewFake("hello from the fake engine", nil), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want groq, openai, deepgram or fake)", cfg.Engine)
	}
}

// contentType guesses the upload MIME type from the artifact name.
func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// upstreamError carries a non-200 reply from the engine provider.
type upstreamError struct {
	engine string
	status int
	body   string
}

func (e *upstreamError) Error() string {
	body := e.body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s API error %d: %s", e.engine, e.status, body)
}
