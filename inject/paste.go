package inject

import (
	"time"

	"github.com/atotto/clipboard"
)

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error)   { return clipboard.ReadAll() }
func (SystemClipboard) Write(text string) error { return clipboard.WriteAll(text) }

// Paster places text on the clipboard, sends the paste chord and then puts
// back whatever the clipboard held before.
type Paster struct {
	clip  Clipboard
	chord func() error
	// Settle is how long the target application gets to read the clipboard
	// before it is restored.
	Settle time.Duration
}

func NewPaste(clip Clipboard, chord func() error) *Paster {
	return &Paster{clip: clip, chord: chord, Settle: 150 * time.Millisecond}
}

func (p *Paster) Type(text string) error {
	if text == "" {
		return nil
	}
	prev, readErr := p.clip.Read()
	if err := p.clip.Write(text); err != nil {
		return err
	}
	if err := p.chord(); err != nil {
		return err
	}
	time.Sleep(p.Settle)
	if readErr == nil {
		return p.clip.Write(prev)
	}
	return nil
}

// CopyText puts text on the system clipboard without pasting.
func CopyText(text string) error { return clipboard.WriteAll(text) }
