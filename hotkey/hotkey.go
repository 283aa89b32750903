package hotkey

import "sync"

// Hotkey delivers one Keydown per chord activation and one Keyup when the
// activation ends. Backends suppress auto-repeat.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Listen calls onTrigger on its own goroutine once per activation until the
// returned stop func is called. onTrigger must not block.
func Listen(hk Hotkey, onTrigger func()) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-hk.Keydown():
				onTrigger()
			case <-hk.Keyup():
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

// notify performs a non-blocking send; a pending event already covers this one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
