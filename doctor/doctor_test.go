package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vox/api"
	"vox/audio"
	"vox/client"
	"vox/encoder"
	"vox/hotkey"
)

func TestRunReportsFailures(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{
		{Name: "good", Run: func(context.Context) (string, error) { return "fine", nil }},
		{Name: "bad", Run: func(context.Context) (string, error) { return "", errors.New("broken") }},
	})
	if code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
	s := out.String()
	for _, want := range []string{"[1/2] good", "PASS: fine", "[2/2] bad", "FAIL: broken", "1 of 2 checks failed"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{
		{Name: "one", Run: func(context.Context) (string, error) { return "ok", nil }},
	})
	if code != 0 || !strings.Contains(out.String(), "All checks passed!") {
		t.Errorf("code = %d output = %s", code, out.String())
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	checks := []Check{
		{Name: "first", Run: func(context.Context) (string, error) { ran++; cancel(); return "ok", nil }},
		{Name: "second", Run: func(context.Context) (string, error) { ran++; return "ok", nil }},
	}
	if code := Run(ctx, &bytes.Buffer{}, checks); code != 1 || ran != 1 {
		t.Errorf("code = %d ran = %d", code, ran)
	}
}

func TestCheckServerAndAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case api.PathHealth:
			json.NewEncoder(w).Encode(api.Health{Status: "ok", Engine: "fake"})
		case api.PathMe:
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(api.Error{Detail: "Invalid or expired token"})
				return
			}
			json.NewEncoder(w).Encode(api.User{Email: "a@example.com", WordsRemaining: 2900})
		}
	}))
	defer srv.Close()
	c := client.New(srv.URL, time.Second)
	ctx := context.Background()

	if detail, err := checkServer(ctx, c); err != nil || !strings.Contains(detail, "engine fake") {
		t.Errorf("checkServer = %q, %v", detail, err)
	}
	if detail, err := checkAccount(ctx, c, "good"); err != nil || detail != "a@example.com, 2900 words left this week" {
		t.Errorf("checkAccount = %q, %v", detail, err)
	}
	if _, err := checkAccount(ctx, c, "stale"); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("stale credential err = %v", err)
	}
	if _, err := checkAccount(ctx, c, ""); err == nil || !strings.Contains(err.Error(), "vox login") {
		t.Errorf("missing credential err = %v", err)
	}
}

func TestCheckServerDown(t *testing.T) {
	c := client.New("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := checkServer(context.Background(), c); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestCheckPress(t *testing.T) {
	hk := hotkey.NewFake()
	go func() {
		time.Sleep(10 * time.Millisecond)
		hk.Tap()
	}()
	if detail, err := checkPress(context.Background(), hk, "ctrl+shift+space", time.Second); err != nil || detail != "hotkey detected" {
		t.Errorf("checkPress = %q, %v", detail, err)
	}
	if _, err := checkPress(context.Background(), hotkey.NewFake(), "x", 20*time.Millisecond); err == nil {
		t.Error("expected timeout")
	}
}

// pcm pads samples to a full minimum FLAC block.
func pcm(samples ...int16) []byte {
	for len(samples) < 32 {
		samples = append(samples, 0)
	}
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestSampleMic(t *testing.T) {
	for _, format := range []encoder.Format{encoder.WAV, encoder.FLAC} {
		t.Run(string(format), func(t *testing.T) {
			rec := audio.NewRecorder(audio.NewFakeContextPCM(pcm(0, 100, -16384, 50)), nil, format)
			detail, err := sampleMic(context.Background(), rec, time.Millisecond)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(detail, "peak -6 dBFS") {
				t.Errorf("detail = %q", detail)
			}
		})
	}
}

func TestSampleMicSilence(t *testing.T) {
	rec := audio.NewRecorder(audio.NewFakeContextPCM(pcm(0)), nil, encoder.WAV)
	if _, err := sampleMic(context.Background(), rec, time.Millisecond); err == nil || !strings.Contains(err.Error(), "silence") {
		t.Errorf("err = %v", err)
	}
}

func TestSampleMicNothingCaptured(t *testing.T) {
	rec := audio.NewRecorder(audio.NewFakeContextPCM(nil), nil, encoder.WAV)
	if _, err := sampleMic(context.Background(), rec, time.Millisecond); !errors.Is(err, audio.ErrNoAudioCaptured) {
		t.Errorf("err = %v", err)
	}
}
