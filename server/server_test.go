package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vox/api"
	"vox/client"
	"vox/store"
	"vox/transcriber"
	"vox/usage"
)

var wavBytes = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	srv    *httptest.Server
	store  *store.Store
	usage  *usage.Service
	engine *transcriber.Fake
	client *client.Client
	clock  *clock
	dir    string
}

func newEnv(t *testing.T, tweak func(*Options)) *testEnv {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	e := &testEnv{
		store:  st,
		usage:  usage.NewService(st, usage.DefaultWeeklyLimit),
		engine: transcriber.NewFake("one two three", nil),
		clock:  &clock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)},
		dir:    t.TempDir(),
	}
	opts := Options{
		Store:      st,
		Usage:      e.usage,
		Engine:     e.engine,
		Logger:     zerolog.Nop(),
		TokenTTL:   24 * time.Hour,
		Metrics:    true,
		BcryptCost: bcrypt.MinCost,
		Now:        e.clock.Now,
	}
	if tweak != nil {
		tweak(&opts)
	}
	e.srv = httptest.NewServer(New(opts).Handler())
	t.Cleanup(e.srv.Close)
	e.client = client.New(e.srv.URL, 5*time.Second)
	return e
}

func (e *testEnv) register(t *testing.T, email string) (string, *store.User) {
	t.Helper()
	res, err := e.client.Register(context.Background(), email, "correct horse", "Test")
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	u, err := e.store.UserByID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	return res.Token, u
}

func (e *testEnv) artifact(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(e.dir, "clip-*.wav")
	if err != nil {
		t.Fatal(err)
	}
	f.Write(data)
	f.Close()
	return f.Name()
}

func (e *testEnv) transcribe(t *testing.T, token string) (*client.Transcript, error) {
	t.Helper()
	return e.client.Transcribe(context.Background(), e.artifact(t, wavBytes), token)
}

func (e *testEnv) seedWords(t *testing.T, user *store.User, words int) {
	t.Helper()
	ctx := context.Background()
	u, err := e.usage.GetOrCreateWeeklyUsage(ctx, user.ID, e.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.usage.RecordUsage(ctx, u, words); err != nil {
		t.Fatal(err)
	}
}

func upload(t *testing.T, url, token, field string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile(field, "clip.wav")
	part.Write(data)
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, url+api.PathTranscribe, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) api.Error {
	t.Helper()
	defer resp.Body.Close()
	var e api.Error
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	h, err := e.client.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.Engine != "fake" {
		t.Errorf("health = %+v", h)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.client.Register(ctx, "ana@example.com", "correct horse", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if res.Token == "" || res.User.Email != "ana@example.com" || res.User.WordsRemaining != 3000 {
		t.Errorf("register = %+v", res)
	}

	if _, err := e.client.Register(ctx, "ANA@example.com", "another pass", ""); !errors.Is(err, client.ErrEmailTaken) {
		t.Errorf("duplicate register err = %v", err)
	}
	if _, err := e.client.Login(ctx, "ana@example.com", "wrong password"); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("bad login err = %v", err)
	}
	if _, err := e.client.Login(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("unknown login err = %v", err)
	}

	login, err := e.client.Login(ctx, "ana@example.com", "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	me, err := e.client.Me(ctx, login.Token)
	if err != nil {
		t.Fatal(err)
	}
	if me.ID != res.User.ID || me.Name != "Ana" || me.LicenseActive || me.WeekStart != "2026-03-02" {
		t.Errorf("me = %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, tc := range []struct{ email, password string }{
		{"not-an-email", "correct horse"},
		{"Ana <ana@example.com>", "correct horse"},
		{"ana@example.com", "short"},
	} {
		_, err := e.client.Register(ctx, tc.email, tc.password, "")
		var se *client.ServerError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Errorf("Register(%q, %q) err = %v, want 400", tc.email, tc.password, err)
		}
	}
}

func TestTranscribeRequiresAuth(t *testing.T) {
	e := newEnv(t, nil)
	resp := upload(t, e.srv.URL, "", api.TranscribeFormFile, wavBytes)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	if _, err := e.transcribe(t, "bogus"); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("bogus token err = %v", err)
	}
	if e.engine.Calls() != 0 {
		t.Errorf("engine called %d times", e.engine.Calls())
	}
}

func TestTranscribeMetersWords(t *testing.T) {
	e := newEnv(t, nil)
	token, user := e.register(t, "a@example.com")

	tr, err := e.transcribe(t, token)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "one two three" || tr.Words != 3 || tr.WordsUsedThisWeek != 3 || tr.WordsRemaining != 2997 || tr.IsPro {
		t.Errorf("transcript = %+v", tr)
	}

	tr, err = e.transcribe(t, token)
	if err != nil {
		t.Fatal(err)
	}
	if tr.WordsUsedThisWeek != 6 || tr.WordsRemaining != 2994 {
		t.Errorf("second transcript = %+v", tr)
	}

	n, err := e.store.TranscriptionCount(context.Background(), user.ID)
	if err != nil || n != 2 {
		t.Errorf("TranscriptionCount = %d, %v", n, err)
	}
}

func TestQuotaBoundary(t *testing.T) {
	e := newEnv(t, nil)
	token, user := e.register(t, "a@example.com")
	e.seedWords(t, user, 2950)
	e.engine.Set(strings.TrimSpace(strings.Repeat("word ", 100)), nil)

	tr, err := e.transcribe(t, token)
	if err != nil {
		t.Fatalf("request below the limit failed: %v", err)
	}
	if tr.Words != 100 || tr.WordsUsedThisWeek != 3050 || tr.WordsRemaining != 0 {
		t.Errorf("transcript = %+v", tr)
	}

	_, err = e.transcribe(t, token)
	if !errors.Is(err, client.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
	if !strings.Contains(err.Error(), "3000") {
		t.Errorf("quota detail = %v", err)
	}
	if e.engine.Calls() != 1 {
		t.Errorf("engine called %d times, want 1", e.engine.Calls())
	}
}

func TestQuotaResetsNextWeek(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.TokenTTL = 30 * 24 * time.Hour })
	token, user := e.register(t, "a@example.com")
	e.seedWords(t, user, 3000)

	if _, err := e.transcribe(t, token); !errors.Is(err, client.ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
	e.clock.Advance(7 * 24 * time.Hour)
	tr, err := e.transcribe(t, token)
	if err != nil {
		t.Fatal(err)
	}
	if tr.WordsUsedThisWeek != 3 {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestEntitledUnlimited(t *testing.T) {
	e := newEnv(t, nil)
	token, user := e.register(t, "pro@example.com")
	e.seedWords(t, user, 5000)

	if _, err := e.client.ActivateLicense(context.Background(), token, usage.NewLicenseKey()); err != nil {
		t.Fatal(err)
	}
	tr, err := e.transcribe(t, token)
	if err != nil {
		t.Fatal(err)
	}
	if tr.WordsRemaining != -1 || !tr.Unlimited() || !tr.IsPro || tr.WordsUsedThisWeek != 5003 {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestTranscribeRejectsBadUploads(t *testing.T) {
	e := newEnv(t, nil)
	token, _ := e.register(t, "a@example.com")

	tests := []struct {
		name  string
		field string
		data  []byte
	}{
		{"not audio", api.TranscribeFormFile, []byte("hello there, not a wav")},
		{"wrong field", "audio", wavBytes},
		{"truncated riff", api.TranscribeFormFile, []byte("RIFF")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, e.srv.URL, token, tt.field, tt.data)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if got := decodeError(t, resp); got.Code != api.CodeBadAudio {
				t.Errorf("code = %q", got.Code)
			}
		})
	}

	resp := upload(t, e.srv.URL, token, api.TranscribeFormFile, []byte("fLaC\x00\x00\x00\x22"))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("flac upload status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if e.engine.Calls() != 1 {
		t.Errorf("engine called %d times, want 1", e.engine.Calls())
	}
}

func TestUploadTooLarge(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.MaxUploadBytes = 1024 })
	token, _ := e.register(t, "a@example.com")

	big := append(append([]byte{}, wavBytes...), make([]byte, 4096)...)
	resp := upload(t, e.srv.URL, token, api.TranscribeFormFile, big)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestEngineFailureNotMetered(t *testing.T) {
	e := newEnv(t, nil)
	token, user := e.register(t, "a@example.com")
	e.engine.Set("", errors.New("upstream 500"))

	_, err := e.transcribe(t, token)
	var se *client.ServerError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502", err)
	}
	u, err := e.usage.GetOrCreateWeeklyUsage(context.Background(), user.ID, e.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if u.Words != 0 {
		t.Errorf("words = %d after failed request", u.Words)
	}
}

func TestConcurrentTranscriptionsSum(t *testing.T) {
	e := newEnv(t, nil)
	token, user := e.register(t, "a@example.com")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		path := e.artifact(t, wavBytes)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.client.Transcribe(context.Background(), path, token); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	u, err := e.usage.GetOrCreateWeeklyUsage(context.Background(), user.ID, e.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if u.Words != 3*n {
		t.Errorf("words = %d, want %d", u.Words, 3*n)
	}
}

func TestActivateLicense(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	tokA, _ := e.register(t, "a@example.com")
	tokB, _ := e.register(t, "b@example.com")
	key := usage.NewLicenseKey()

	res, err := e.client.ActivateLicense(ctx, tokA, key)
	if err != nil || !res.LicenseActive || res.Message != "License activated" {
		t.Fatalf("activate = %+v, %v", res, err)
	}
	if _, err := e.client.ActivateLicense(ctx, tokB, key); !errors.Is(err, client.ErrKeyAlreadyUsed) {
		t.Errorf("second user err = %v", err)
	}
	res, err = e.client.ActivateLicense(ctx, tokA, key)
	if err != nil || res.Message != "License already active" {
		t.Errorf("repeat activate = %+v, %v", res, err)
	}
	if _, err := e.client.ActivateLicense(ctx, tokB, "K1"); !errors.Is(err, client.ErrInvalidKey) {
		t.Errorf("malformed key err = %v", err)
	}
	res, err = e.client.ActivateLicense(ctx, tokA, "K1")
	if err != nil || res.Message != "License already active" {
		t.Errorf("entitled user with malformed key = %+v, %v", res, err)
	}

	st, err := e.client.LicenseStatus(ctx, tokA)
	if err != nil || !st.LicenseActive || st.LicenseKey != key {
		t.Errorf("status A = %+v, %v", st, err)
	}
	st, err = e.client.LicenseStatus(ctx, tokB)
	if err != nil || st.LicenseActive || st.LicenseKey != "" {
		t.Errorf("status B = %+v, %v", st, err)
	}
}

func TestLogoutAndExpiry(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.TokenTTL = time.Hour })
	ctx := context.Background()
	tok1, _ := e.register(t, "a@example.com")
	login, err := e.client.Login(ctx, "a@example.com", "correct horse")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.client.Logout(ctx, tok1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.client.Me(ctx, tok1); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("after logout err = %v", err)
	}
	if _, err := e.client.Me(ctx, login.Token); err != nil {
		t.Errorf("other session affected: %v", err)
	}

	e.clock.Advance(2 * time.Hour)
	if _, err := e.client.Me(ctx, login.Token); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("expired token err = %v", err)
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	e := newEnv(t, nil)
	token, _ := e.register(t, "a@example.com")
	if _, err := e.transcribe(t, token); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(e.srv.URL + api.PathMetrics)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{"vox_transcriptions_total", "vox_http_requests_total", "vox_engine_latency_seconds"} {
		if !bytes.Contains(body, []byte(name)) {
			t.Errorf("metrics missing %s", name)
		}
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("no request id header")
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+api.PathHealth, nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.Metrics = false })
	resp, err := http.Get(e.srv.URL + api.PathMetrics)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestIsAudio(t *testing.T) {
	tests := []struct {
		data []byte
		want bool
	}{
		{wavBytes, true},
		{[]byte("fLaC"), true},
		{[]byte("RIFF\x00\x00\x00\x00AVI "), false},
		{[]byte("ID3\x03"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isAudio(tt.data); got != tt.want {
			t.Errorf("isAudio(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestServeShutsDown(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	s := New(Options{
		Store:  st,
		Usage:  usage.NewService(st, usage.DefaultWeeklyLimit),
		Engine: transcriber.NewFake("x", nil),
		Logger: zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
