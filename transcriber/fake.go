package transcriber

import (
	"context"
	"sync"
)

// Fake returns a fixed transcript and counts calls.
type Fake struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  []byte
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(_ context.Context, audio []byte, _ string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = audio
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Text: f.text, Duration: 1}, nil
}

func (f *Fake) Set(text string, err error) {
	f.mu.Lock()
	f.text, f.err = text, err
	f.mu.Unlock()
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
