// Package inject delivers transcribed text into the focused application,
// either as synthesized keystrokes or through the clipboard.
package inject

import (
	"fmt"
	"strings"
)

type Injector interface {
	Type(text string) error
}

type Mode string

const (
	ModeType  Mode = "type"
	ModePaste Mode = "paste"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeType:
		return ModeType, nil
	case ModePaste:
		return m, nil
	default:
		return "", fmt.Errorf("unknown inject mode %q (want type or paste)", s)
	}
}

// New opens the platform injector for mode.
func New(mode Mode) (Injector, error) {
	kb, err := openKeyboard()
	if err != nil {
		return nil, err
	}
	if mode == ModePaste {
		return NewPaste(SystemClipboard{}, kb.paste), nil
	}
	return &keystrokes{kb: kb}, nil
}

// keyboard is the platform key synthesizer.
type keyboard interface {
	lookup(r rune) (code int, shift bool, ok bool)
	tap(code int, shift bool) error
	paste() error
}

type keystrokes struct {
	kb keyboard
}

// Type taps each character. Characters with no key on a US layout are
// skipped; use paste mode for arbitrary Unicode.
func (k *keystrokes) Type(text string) error {
	_, err := typeText(text, k.kb)
	return err
}

func typeText(text string, kb keyboard) (skipped int, err error) {
	for _, r := range text {
		code, shift, ok := kb.lookup(r)
		if !ok {
			skipped++
			continue
		}
		if err := kb.tap(code, shift); err != nil {
			return skipped, fmt.Errorf("type %q: %w", r, err)
		}
	}
	return skipped, nil
}
