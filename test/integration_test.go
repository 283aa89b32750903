//go:build integration

package test_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"vox/client"
	"vox/credential"
)

const fakeTranscript = "hello from the fake engine"

var (
	testBinary string
	toneWAV    string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("VOX_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "VOX_TEST_BIN not set; build with: go build -o /tmp/vox . && VOX_TEST_BIN=/tmp/vox go test -tags integration ./test")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "vox-integration")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	toneWAV = filepath.Join(dir, "tone.wav")
	if err := generateToneWAV(toneWAV, 16000, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// generateToneWAV writes a 440 Hz 16-bit mono tone.
func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0o644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

// startServer runs 'vox serve' with the fake engine and waits for /health.
func startServer(t *testing.T, env ...string) string {
	t.Helper()
	addr := freeAddr(t)
	cmd := exec.Command(testBinary, "serve", "-addr", addr, "-db", filepath.Join(t.TempDir(), "vox.db"))
	cmd.Env = append(os.Environ(), append([]string{"VOX_ENGINE=fake", "VOX_LOG_LEVEL=warn"}, env...)...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Signal(syscall.SIGTERM)
		cmd.Wait()
	})

	url := "http://" + addr
	c := client.New(url, time.Second)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if h, err := c.Health(context.Background()); err == nil && h.Status == "ok" {
			return url
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
	return ""
}

// signIn registers a fresh account and stores its credential in a file the
// client will read.
func signIn(t *testing.T, url string) string {
	t.Helper()
	c := client.New(url, 5*time.Second)
	res, err := c.Register(context.Background(), "dictation@example.com", "correct horse", "Tester")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	path := filepath.Join(t.TempDir(), "credential")
	st, err := credential.NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(res.Token); err != nil {
		t.Fatal(err)
	}
	return path
}

func runVox(t *testing.T, url, credPath, stdin string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmd := exec.Command(testBinary, "-logpath", logDir, "-server", url, "-test", toneWAV)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "VOX_CREDENTIAL_PATH="+credPath, "VOX_NOTIFY=false")

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("vox exited with error: %v\noutput: %s", err, b)
	}
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestDictationCycle(t *testing.T) {
	url := startServer(t)
	cred := signIn(t, url)

	out, logDir := runVox(t, url, cred, cmds("TRIGGER", "SLEEP 100", "TRIGGER", "WAIT", "QUIT"))
	for _, want := range []string{
		"STATE recording",
		"STATE processing",
		"STATE typing",
		"TYPED " + fakeTranscript,
		"STATUS ok 2995 words left this week",
		"DONE 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(readLog(t, logDir, "transcribe_log.txt"), fakeTranscript) {
		t.Error("transcript not written to transcribe_log.txt")
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "transcription", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestTwoCyclesAccumulateUsage(t *testing.T) {
	url := startServer(t)
	cred := signIn(t, url)

	out, _ := runVox(t, url, cred, cmds(
		"TRIGGER", "TRIGGER", "WAIT",
		"TRIGGER", "TRIGGER", "WAIT",
		"QUIT",
	))
	if !strings.Contains(out, "2990 words left this week") || !strings.Contains(out, "DONE 2") {
		t.Errorf("output:\n%s", out)
	}
}

func TestNotSignedIn(t *testing.T) {
	url := startServer(t)
	cred := filepath.Join(t.TempDir(), "missing")

	out, _ := runVox(t, url, cred, cmds("TRIGGER", "WAIT", "QUIT"))
	if !strings.Contains(out, "AUTH_REQUIRED") || !strings.Contains(out, "STATUS warning sign in to start dictating") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "STATE recording") {
		t.Error("recorded without a credential")
	}
}

func TestQuotaExhausted(t *testing.T) {
	url := startServer(t, "VOX_WEEKLY_WORD_LIMIT=5")
	cred := signIn(t, url)

	out, _ := runVox(t, url, cred, cmds(
		"TRIGGER", "TRIGGER", "WAIT",
		"TRIGGER", "TRIGGER", "WAIT",
		"QUIT",
	))
	if !strings.Contains(out, "STATUS ok 0 words left this week") {
		t.Errorf("first cycle should use the whole allowance:\n%s", out)
	}
	if !strings.Contains(out, "STATUS warning weekly limit") {
		t.Errorf("second cycle should hit the limit:\n%s", out)
	}
	if strings.Count(out, "TYPED ") != 1 {
		t.Errorf("expected exactly one typed transcript:\n%s", out)
	}
}

func TestRevokedCredentialIsCleared(t *testing.T) {
	url := startServer(t)
	cred := signIn(t, url)
	st, _ := credential.NewStore(cred)
	tok, _ := st.Load()
	if err := client.New(url, time.Second).Logout(context.Background(), tok); err != nil {
		t.Fatal(err)
	}

	out, _ := runVox(t, url, cred, cmds("TRIGGER", "TRIGGER", "WAIT", "QUIT"))
	if !strings.Contains(out, "session expired, sign in again") {
		t.Errorf("output:\n%s", out)
	}
	if tok, _ := st.Load(); tok != "" {
		t.Error("credential file not cleared after 401")
	}
}
