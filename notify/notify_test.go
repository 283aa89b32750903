package notify

import (
	"errors"
	"testing"
	"time"

	"vox/session"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
		return ""
	}
}

func TestOnlyWarningsAndErrors(t *testing.T) {
	got := make(chan string, 8)
	n := newNotifier(func(_, m string) error {
		got <- m
		return nil
	})
	n.State(session.Recording)
	n.Status(session.Status{Level: session.LevelInfo, Text: "info"})
	n.Status(session.Status{Level: session.LevelSuccess, Text: "ok"})
	n.Status(session.Status{Level: session.LevelWarning, Text: "quota"})
	n.Status(session.Status{Level: session.LevelError, Text: "down"})

	if m := receive(t, got); m != "quota" {
		t.Errorf("first = %q", m)
	}
	if m := receive(t, got); m != "down" {
		t.Errorf("second = %q", m)
	}
	select {
	case m := <-got:
		t.Errorf("unexpected notification %q", m)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStatusDoesNotBlockOnSlowSend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	n := newNotifier(func(string, string) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3*backlog; i++ {
			n.Status(session.Status{Level: session.LevelError, Text: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Status blocked behind a slow notification")
	}
}

func TestSendFailureIgnored(t *testing.T) {
	sent := make(chan string, 1)
	n := newNotifier(func(_, m string) error {
		sent <- m
		return errors.New("no dbus")
	})
	n.Status(session.Status{Level: session.LevelError, Text: "x"})
	receive(t, sent)
}
