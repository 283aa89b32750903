package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"vox/audio"
	"vox/beep"
	"vox/client"
	"vox/credential"
	"vox/encoder"
	"vox/inject"
	"vox/log"
	"vox/session"
	"vox/usage"
)

var levelNames = map[session.Level]string{
	session.LevelInfo:    "info",
	session.LevelSuccess: "ok",
	session.LevelWarning: "warning",
	session.LevelError:   "error",
}

// testSink prints controller output in a line format the integration test
// parses, and hands each status to WAIT.
type testSink struct {
	mu       sync.Mutex
	out      io.Writer
	statuses chan session.Status
}

func (s *testSink) State(st session.State) {
	s.mu.Lock()
	fmt.Fprintf(s.out, "STATE %s\n", st)
	s.mu.Unlock()
}

func (s *testSink) Status(st session.Status) {
	s.mu.Lock()
	fmt.Fprintf(s.out, "STATUS %s %s\n", levelNames[st.Level], st.Text)
	s.mu.Unlock()
	select {
	case s.statuses <- st:
	default:
	}
}

func (s *testSink) AuthRequired() {
	s.mu.Lock()
	fmt.Fprintln(s.out, "AUTH_REQUIRED")
	s.mu.Unlock()
}

// testInjector records like inject.Fake and echoes what it would type.
type testInjector struct {
	inject.Fake
	sink *testSink
}

func (t *testInjector) Type(text string) error {
	if err := t.Fake.Type(text); err != nil {
		return err
	}
	t.sink.mu.Lock()
	fmt.Fprintf(t.sink.out, "TYPED %s\n", text)
	t.sink.mu.Unlock()
	return nil
}

// runTestMode replays wavPath as the microphone and reads commands from
// stdin: TRIGGER, WAIT (next status), SLEEP <ms>, QUIT.
func runTestMode(ctx context.Context, wavPath string, c *client.Client, creds *credential.Store, format encoder.Format) int {
	beep.Disable()

	fake, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	rec := audio.NewRecorder(fake, nil, format)
	log.SessionStart(rec.DeviceName(), string(format), c.BaseURL(), "stdin")

	sink := &testSink{out: os.Stdout, statuses: make(chan session.Status, 16)}
	ctrl, err := session.New(session.Config{
		Recorder:     rec,
		Client:       c,
		Injector:     &testInjector{sink: sink},
		Credentials:  creds,
		Sink:         session.MultiSink{session.LogSink{}, sink},
		AuthRequired: sink.AuthRequired,
		Cue:          func(beep.Cue) {},
		WeeklyLimit:  usage.DefaultWeeklyLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch {
			case cmd == "TRIGGER":
				ctrl.Trigger()
			case cmd == "WAIT":
				select {
				case <-sink.statuses:
				case <-ctx.Done():
					return
				}
			case cmd == "QUIT":
				return
			case strings.HasPrefix(cmd, "SLEEP "):
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
	}()

	ctrl.Run(ctx)
	log.SessionEnd(ctrl.Count())
	fmt.Fprintf(os.Stdout, "DONE %d\n", ctrl.Count())
	return 0
}
