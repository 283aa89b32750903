package credential

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "credential"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	tok, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		t.Errorf("Load = %q, want empty", tok)
	}
}

func TestSaveLoadClear(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save("tok-123"); err != nil {
		t.Fatal(err)
	}
	tok, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-123" {
		t.Errorf("Load = %q", tok)
	}

	if err := s.Save("tok-456"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Load(); tok != "tok-456" {
		t.Errorf("after overwrite Load = %q", tok)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Load(); tok != "" {
		t.Errorf("after Clear Load = %q", tok)
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	s := newTestStore(t)
	if err := s.Save("secret"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

func TestSaveEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save("  "); err == nil {
		t.Error("expected error saving empty credential")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	p, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p, filepath.Join("vox", "credential")) {
		t.Errorf("DefaultPath = %q", p)
	}
}
