// Package log writes the desktop client's diagnostics and transcript files
// and configures the service's structured logger.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscriptsFile = "transcribe_log.txt"
)

var (
	mu          sync.Mutex
	diag        zerolog.Logger
	diagFile    *os.File
	transcripts *os.File
	ready       bool
	pid         int
	dir         string
)

// ResolveDir picks the log directory: flag, then VOX_LOG_PATH, then the
// per-OS default. Relative paths are taken from the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("VOX_LOG_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}
	return defaultDir()
}

func SetDir(d string) { dir = d }

func Dir() string { return dir }

func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, DiagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	transcripts, err = os.OpenFile(filepath.Join(dir, TranscriptsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}

	diag = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()
	ready = true
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	ready = false
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcripts != nil {
		transcripts.Close()
		transcripts = nil
	}
}

func Info(msg string) {
	if ready {
		diag.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if ready {
		diag.Info().Msgf(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if ready {
		diag.Warn().Msgf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if ready {
		diag.Error().Msgf(format, args...)
	}
}

// Transition records a session state change.
func Transition(from, to string) {
	if ready {
		diag.Info().Str("from", from).Str("to", to).Msg("state")
	}
}

// Transcription records one completed request. remaining is -1 for
// unlimited accounts.
func Transcription(words, usedThisWeek, remaining int, audio time.Duration, network string) {
	if !ready {
		return
	}
	diag.Info().
		Int("words", words).
		Int("used_week", usedThisWeek).
		Int("remaining", remaining).
		Float64("audio_s", audio.Seconds()).
		Str("net", network).
		Msg("transcription")
}

// TranscriptionText appends text to the transcript file, one tab-separated
// line per utterance.
func TranscriptionText(text string) {
	mu.Lock()
	defer mu.Unlock()
	if !ready || transcripts == nil {
		return
	}
	fmt.Fprintf(transcripts, "%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
}

func SessionStart(device, format, server, hotkey string) {
	if !ready {
		return
	}
	diag.Info().
		Str("device", device).
		Str("format", format).
		Str("server", server).
		Str("hotkey", hotkey).
		Msg("session_start")
}

func SessionEnd(count int) {
	if ready {
		diag.Info().Int("transcriptions", count).Msg("session_end")
	}
}
