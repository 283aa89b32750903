// Package notify surfaces warnings and errors as desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"

	"vox/log"
	"vox/session"
)

const (
	title   = "vox"
	backlog = 4
)

// Notifier is a session.Sink that only reacts to warnings and errors.
// Delivery happens on its own goroutine since beeep may shell out.
type Notifier struct {
	send  func(title, message string) error
	queue chan string
}

func New() *Notifier {
	return newNotifier(func(t, m string) error { return beeep.Notify(t, m, "") })
}

func newNotifier(send func(title, message string) error) *Notifier {
	n := &Notifier{send: send, queue: make(chan string, backlog)}
	go n.loop()
	return n
}

func (n *Notifier) loop() {
	for msg := range n.queue {
		if err := n.send(title, msg); err != nil {
			log.Warnf("desktop notification: %v", err)
		}
	}
}

func (n *Notifier) State(session.State) {}

// Status queues the notification and returns at once. A full backlog drops
// it.
func (n *Notifier) Status(s session.Status) {
	if s.Level != session.LevelWarning && s.Level != session.LevelError {
		return
	}
	select {
	case n.queue <- s.Text:
	default:
		log.Warnf("desktop notification dropped: %s", s.Text)
	}
}
