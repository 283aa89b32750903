package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vox/api"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEdata"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func replyJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestTranscribeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != api.PathTranscribe {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "clip.wav" || string(data) != "RIFF....WAVEdata" {
			t.Errorf("upload = %q %q", hdr.Filename, data)
		}
		replyJSON(w, 200, api.TranscribeResponse{
			Text: "hello world", Words: 2, WordsUsedThisWeek: 12, WordsRemaining: 2988,
		})
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second).Transcribe(context.Background(), writeArtifact(t), "tok")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "hello world" || tr.Words != 2 || tr.WordsRemaining != 2988 || tr.Unlimited() {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestTranscribeUnlimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, 200, api.TranscribeResponse{Text: "a", Words: 1, WordsRemaining: -1, IsPro: true})
	}))
	defer srv.Close()

	tr, err := New(srv.URL, time.Second).Transcribe(context.Background(), writeArtifact(t), "tok")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Unlimited() || !tr.IsPro {
		t.Errorf("transcript = %+v, want unlimited", tr)
	}
}

func TestTranscribeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   api.Error
		check  func(error) bool
	}{
		{"401", 401, api.Error{Detail: "invalid token"}, func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{"403", 403, api.Error{Detail: "Weekly limit reached", Code: api.CodeQuotaExceeded}, func(err error) bool { return errors.Is(err, ErrQuotaExceeded) }},
		{"400", 400, api.Error{Detail: "not audio"}, func(err error) bool {
			var se *ServerError
			return errors.As(err, &se) && se.StatusCode == 400 && se.Detail == "not audio"
		}},
		{"500", 500, api.Error{Detail: "engine down"}, func(err error) bool {
			var se *ServerError
			return errors.As(err, &se) && se.StatusCode == 500
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				replyJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).Transcribe(context.Background(), writeArtifact(t), "tok")
			if !tt.check(err) {
				t.Errorf("err = %v (%T)", err, err)
			}
		})
	}
}

func TestTranscribeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Transcribe(context.Background(), writeArtifact(t), "tok")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v (%T), want *TransportError", err, err)
	}
}

func TestTranscribeMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, "<html>proxy error</html>")
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Transcribe(context.Background(), writeArtifact(t), "tok")
	var se *ServerError
	if !errors.As(err, &se) || se.StatusCode != http.StatusOK {
		t.Fatalf("err = %v (%T), want *ServerError with status 200", err, err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		t.Error("malformed body reported as a transport failure")
	}
}

func TestTranscribeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, 50*time.Millisecond).Transcribe(context.Background(), writeArtifact(t), "tok")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
}

func TestTranscribeWithoutCredential(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Transcribe(context.Background(), writeArtifact(t), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if hit {
		t.Error("request sent without a credential")
	}
}

func TestAuthEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.PathRegister:
			var in api.RegisterRequest
			json.NewDecoder(r.Body).Decode(&in)
			if in.Email == "taken@example.com" {
				replyJSON(w, 409, api.Error{Detail: "Email already registered", Code: api.CodeEmailTaken})
				return
			}
			replyJSON(w, 200, api.AuthResponse{Token: "t1", User: api.User{ID: 1, Email: in.Email}})
		case api.PathLogin:
			replyJSON(w, 401, api.Error{Detail: "Invalid email or password"})
		case api.PathLicenseActive:
			var in api.ActivateRequest
			json.NewDecoder(r.Body).Decode(&in)
			if in.LicenseKey == "VOX-USED-USED-USED" {
				replyJSON(w, 400, api.Error{Detail: "License key already in use", Code: api.CodeKeyAlreadyUsed})
				return
			}
			replyJSON(w, 200, api.ActivateResponse{Message: "License activated successfully", LicenseActive: true})
		case api.PathLicenseStatus:
			replyJSON(w, 200, api.LicenseStatus{LicenseActive: true, LicenseKey: "VOX-AAAA-BBBB-CCCC"})
		}
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)
	ctx := context.Background()

	auth, err := c.Register(ctx, "new@example.com", "pw", "New")
	if err != nil || auth.Token != "t1" {
		t.Fatalf("Register = %+v, %v", auth, err)
	}
	if _, err := c.Register(ctx, "taken@example.com", "pw", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate Register err = %v", err)
	}
	if _, err := c.Login(ctx, "a@b.c", "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login err = %v", err)
	}
	if _, err := c.ActivateLicense(ctx, "tok", "VOX-USED-USED-USED"); !errors.Is(err, ErrKeyAlreadyUsed) {
		t.Errorf("ActivateLicense err = %v", err)
	}
	res, err := c.ActivateLicense(ctx, "tok", "VOX-AAAA-BBBB-CCCC")
	if err != nil || !res.LicenseActive {
		t.Errorf("ActivateLicense = %+v, %v", res, err)
	}
	st, err := c.LicenseStatus(ctx, "tok")
	if err != nil || st.LicenseKey != "VOX-AAAA-BBBB-CCCC" {
		t.Errorf("LicenseStatus = %+v, %v", st, err)
	}
	if _, err := c.Me(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Me without credential err = %v", err)
	}
}
