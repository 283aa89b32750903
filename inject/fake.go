package inject

import "sync"

// Fake records every Type call.
type Fake struct {
	mu    sync.Mutex
	typed []string
	Err   error
}

func (f *Fake) Type(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *Fake) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}
