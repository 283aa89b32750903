package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vox/api"
	"vox/usage"
)

// isAudio accepts RIFF/WAVE and FLAC containers by their magic bytes.
func isAudio(data []byte) bool {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return true
	}
	return bytes.HasPrefix(data, []byte("fLaC"))
}

// handleTranscribe meters one utterance. The quota check runs against the
// counter as it stood before this request, so the engine is never invoked
// for an exhausted account; the request that crosses the limit still
// completes and is counted in full.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := zerolog.Ctx(ctx)
	user := userFrom(r)
	now := s.now()

	u, err := s.usage.GetOrCreateWeeklyUsage(ctx, user.ID, now)
	if err != nil {
		transcriptions.WithLabelValues("error").Inc()
		s.internalError(w, r, err, "weekly usage")
		return
	}
	if err := s.usage.CheckQuota(user, u); err != nil {
		transcriptions.WithLabelValues("quota").Inc()
		l.Info().Int("words_used", u.Words).Msg("quota exceeded")
		writeError(w, http.StatusForbidden, api.CodeQuotaExceeded,
			fmt.Sprintf("Weekly limit of %d words reached. Activate a license for unlimited dictation.", s.usage.Limit()))
		return
	}

	audio, filename, status, detail := s.readAudio(w, r)
	if status != 0 {
		transcriptions.WithLabelValues("bad_request").Inc()
		code := ""
		if status == http.StatusBadRequest {
			code = api.CodeBadAudio
		}
		writeError(w, status, code, detail)
		return
	}

	start := time.Now()
	res, err := s.engine.Transcribe(ctx, audio, filename)
	engineLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		transcriptions.WithLabelValues("engine_error").Inc()
		l.Error().Err(err).Str("engine", s.engine.Name()).Msg("engine failed")
		writeError(w, http.StatusBadGateway, "", "Transcription engine failed")
		return
	}

	text := strings.TrimSpace(res.Text)
	words := usage.CountWords(text)
	if err := s.usage.RecordUsage(ctx, u, words); err != nil {
		transcriptions.WithLabelValues("error").Inc()
		s.internalError(w, r, err, "record usage")
		return
	}
	dur := time.Duration(res.Duration * float64(time.Second))
	if err := s.store.LogTranscription(ctx, user.ID, words, dur, s.engine.Name(), now); err != nil {
		l.Warn().Err(err).Msg("log transcription")
	}

	transcriptions.WithLabelValues("ok").Inc()
	wordsTranscribed.Add(float64(words))
	l.Info().
		Int("words", words).
		Int("words_week", u.Words).
		Dur("engine", time.Since(start)).
		Msg("transcribed")

	writeJSON(w, http.StatusOK, api.TranscribeResponse{
		Text:              text,
		Words:             words,
		WordsUsedThisWeek: u.Words,
		WordsRemaining:    s.usage.Remaining(user, u),
		IsPro:             user.LicenseActive,
	})
}

// readAudio extracts the uploaded file. A non-zero status means the request
// was rejected with detail.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) (data []byte, filename string, status int, detail string) {
	if r.ContentLength > s.maxUpload {
		return nil, "", http.StatusRequestEntityTooLarge, "Audio file too large"
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, "Audio file too large"
		}
		return nil, "", http.StatusBadRequest, "Expected a multipart form with a file field"
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile(api.TranscribeFormFile)
	if err != nil {
		return nil, "", http.StatusBadRequest, "Missing file field"
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, "", http.StatusBadRequest, "Could not read audio file"
	}
	if !isAudio(data) {
		return nil, "", http.StatusBadRequest, "File is not WAV or FLAC audio"
	}
	return data, hdr.Filename, 0, ""
}
