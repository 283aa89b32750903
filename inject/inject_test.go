package inject

import (
	"errors"
	"testing"
)

type tap struct {
	code  int
	shift bool
}

type recordingKeyboard struct {
	taps    []tap
	pastes  int
	failAt  int
	tapsErr error
}

func (k *recordingKeyboard) lookup(r rune) (int, bool, bool) { return evdevLookup(r) }

func (k *recordingKeyboard) tap(code int, shift bool) error {
	if k.tapsErr != nil && len(k.taps) == k.failAt {
		return k.tapsErr
	}
	k.taps = append(k.taps, tap{code, shift})
	return nil
}

func (k *recordingKeyboard) paste() error {
	k.pastes++
	return nil
}

func TestTypeTextSkipsUnsupported(t *testing.T) {
	kb := &recordingKeyboard{}
	skipped, err := typeText("Hi, café!", kb)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	want := []tap{
		{35, true},  // H
		{23, false}, // i
		{51, false}, // ,
		{57, false}, // space
		{46, false}, {30, false}, {33, false},
		{2, true}, // !
	}
	if len(kb.taps) != len(want) {
		t.Fatalf("taps = %v, want %v", kb.taps, want)
	}
	for i := range want {
		if kb.taps[i] != want[i] {
			t.Errorf("tap %d = %v, want %v", i, kb.taps[i], want[i])
		}
	}
}

func TestTypeTextStopsOnError(t *testing.T) {
	boom := errors.New("device gone")
	kb := &recordingKeyboard{tapsErr: boom, failAt: 2}
	_, err := typeText("abcdef", kb)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(kb.taps) != 2 {
		t.Errorf("typed %d keys before failure, want 2", len(kb.taps))
	}
}

func TestKeystrokesEmpty(t *testing.T) {
	kb := &recordingKeyboard{}
	if err := (&keystrokes{kb: kb}).Type(""); err != nil {
		t.Fatal(err)
	}
	if len(kb.taps) != 0 {
		t.Error("empty text produced keystrokes")
	}
}

type memClipboard struct {
	content string
	readErr error
	writes  []string
}

func (m *memClipboard) Read() (string, error) { return m.content, m.readErr }
func (m *memClipboard) Write(s string) error {
	m.content = s
	m.writes = append(m.writes, s)
	return nil
}

func TestPasteRestoresClipboard(t *testing.T) {
	clip := &memClipboard{content: "before"}
	var pastedWith string
	p := NewPaste(clip, func() error {
		pastedWith = clip.content
		return nil
	})
	p.Settle = 0

	if err := p.Type("héllo wörld"); err != nil {
		t.Fatal(err)
	}
	if pastedWith != "héllo wörld" {
		t.Errorf("clipboard at paste = %q", pastedWith)
	}
	if clip.content != "before" {
		t.Errorf("clipboard not restored: %q", clip.content)
	}
}

func TestPasteUnreadableClipboard(t *testing.T) {
	clip := &memClipboard{readErr: errors.New("no clipboard")}
	p := NewPaste(clip, func() error { return nil })
	p.Settle = 0
	if err := p.Type("x"); err != nil {
		t.Fatal(err)
	}
	if len(clip.writes) != 1 {
		t.Errorf("writes = %v, want only the pasted text", clip.writes)
	}
}

func TestPasteEmpty(t *testing.T) {
	clip := &memClipboard{content: "keep"}
	called := false
	p := NewPaste(clip, func() error { called = true; return nil })
	if err := p.Type(""); err != nil {
		t.Fatal(err)
	}
	if called || len(clip.writes) != 0 {
		t.Error("empty text touched the clipboard")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeType, "type": ModeType, "Paste": ModePaste} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("xdotool"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
