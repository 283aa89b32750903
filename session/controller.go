// Package session drives one dictation cycle per hotkey press: record,
// upload, type the transcript back.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vox/audio"
	"vox/beep"
	"vox/client"
	"vox/encoder"
	"vox/inject"
	"vox/log"
)

type Recorder interface {
	Start() error
	Stop(dst string) (*audio.Artifact, error)
	Format() encoder.Format
}

type Transcriber interface {
	Transcribe(ctx context.Context, path, credential string) (*client.Transcript, error)
}

type Credentials interface {
	Load() (string, error)
	Clear() error
}

type Config struct {
	Recorder    Recorder
	Client      Transcriber
	Injector    inject.Injector
	Credentials Credentials
	Sink        Sink

	// AuthRequired runs on the controller goroutine when a trigger arrives
	// without a credential or after the server rejects it.
	AuthRequired func()

	// Cue plays audible feedback. Defaults to beep.Play.
	Cue func(beep.Cue)

	// TempDir holds recording artifacts. Defaults to os.TempDir().
	TempDir string

	// WeeklyLimit is only used in the quota message.
	WeeklyLimit int
}

type (
	triggerEvent    struct{}
	credentialEvent struct{ token string }
	uploaded        struct {
		tr    *client.Transcript
		audio time.Duration
		err   error
	}
	typed struct {
		tr  *client.Transcript
		err error
	}
)

// Controller owns the session state. Run is its only writer; every other
// method is safe from any goroutine.
type Controller struct {
	cfg    Config
	events chan any
	worker *Worker
	done   chan struct{}

	state      State
	credential string

	current    atomic.Int32
	last       atomic.Pointer[string]
	count      atomic.Int64
	ignored    atomic.Int64
	runOnce    sync.Once
	recordedAt time.Time
}

func New(cfg Config) (*Controller, error) {
	if cfg.Recorder == nil || cfg.Client == nil || cfg.Injector == nil || cfg.Credentials == nil {
		return nil, errors.New("session: recorder, client, injector and credentials are required")
	}
	if cfg.Sink == nil {
		cfg.Sink = LogSink{}
	}
	if cfg.Cue == nil {
		cfg.Cue = beep.Play
	}
	if cfg.AuthRequired == nil {
		cfg.AuthRequired = func() {}
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	tok, err := cfg.Credentials.Load()
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:        cfg,
		events:     make(chan any, 16),
		worker:     NewWorker(),
		done:       make(chan struct{}),
		credential: tok,
	}, nil
}

// Trigger enqueues a hotkey press. A full mailbox drops the press.
func (c *Controller) Trigger() {
	select {
	case c.events <- triggerEvent{}:
	default:
		log.Warnf("trigger dropped: mailbox full")
	}
}

// SetCredential installs a token obtained by a login flow. It is dropped
// once Run has returned.
func (c *Controller) SetCredential(token string) {
	select {
	case c.events <- credentialEvent{token: token}:
	case <-c.done:
	}
}

func (c *Controller) State() State { return State(c.current.Load()) }

// LastTranscript is the most recent non-empty transcript, or "".
func (c *Controller) LastTranscript() string {
	if p := c.last.Load(); p != nil {
		return *p
	}
	return ""
}

// Count is the number of completed transcriptions.
func (c *Controller) Count() int { return int(c.count.Load()) }

// Ignored is the number of triggers dropped while busy.
func (c *Controller) Ignored() int { return int(c.ignored.Load()) }

// Run processes events until ctx is done. It may be called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("session: Run called twice")
	}
	defer close(c.done)
	defer c.shutdown()

	c.cfg.Sink.State(Idle)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		case res := <-c.worker.Results():
			c.worker.Done()
			c.handleResult(res)
		}
	}
}

func (c *Controller) shutdown() {
	if c.state == Recording {
		if art, err := c.cfg.Recorder.Stop(c.artifactPath()); err == nil {
			art.Remove()
		}
	}
	c.worker.Close()
	select {
	case res := <-c.worker.Results():
		if r, ok := res.(uploaded); ok && r.err == nil {
			log.Warnf("discarding transcript received during shutdown")
		}
	default:
	}
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	log.Transition(c.state.String(), s.String())
	c.state = s
	c.current.Store(int32(s))
	c.cfg.Sink.State(s)
}

func (c *Controller) status(level Level, format string, args ...any) {
	c.cfg.Sink.Status(Status{Level: level, Text: fmt.Sprintf(format, args...)})
}

func (c *Controller) handle(ev any) {
	switch ev := ev.(type) {
	case triggerEvent:
		c.onTrigger()
	case credentialEvent:
		c.credential = ev.token
		c.status(LevelInfo, "signed in")
	}
}

func (c *Controller) onTrigger() {
	switch c.state {
	case Idle:
		c.startRecording()
	case Recording:
		c.stopRecording()
	default:
		c.ignored.Add(1)
		log.Infof("trigger ignored while %s", c.state)
	}
}

func (c *Controller) startRecording() {
	if c.credential == "" {
		c.status(LevelWarning, "sign in to start dictating")
		c.cfg.AuthRequired()
		return
	}
	if err := c.cfg.Recorder.Start(); err != nil {
		c.cfg.Cue(beep.CueError)
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			c.status(LevelError, "microphone unavailable")
		} else {
			c.status(LevelError, "could not start recording")
		}
		log.Errorf("recorder start: %v", err)
		return
	}
	c.recordedAt = time.Now()
	c.cfg.Cue(beep.CueStart)
	c.setState(Recording)
}

func (c *Controller) artifactPath() string {
	return filepath.Join(c.cfg.TempDir, "vox-"+uuid.NewString()+c.cfg.Recorder.Format().Ext())
}

func (c *Controller) stopRecording() {
	c.cfg.Cue(beep.CueStop)
	art, err := c.cfg.Recorder.Stop(c.artifactPath())
	if err != nil {
		c.setState(Idle)
		if errors.Is(err, audio.ErrNoAudioCaptured) {
			c.status(LevelWarning, "no speech detected")
			return
		}
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "recording failed")
		log.Errorf("recorder stop: %v", err)
		return
	}
	log.Infof("recorded %s (%s) in %s", art.Duration, art.Format, time.Since(c.recordedAt).Round(time.Millisecond))
	if art.Silent {
		if err := art.Remove(); err != nil {
			log.Warnf("remove artifact: %v", err)
		}
		c.setState(Idle)
		c.status(LevelWarning, "no speech detected")
		return
	}

	tok := c.credential
	job := func() any {
		defer func() {
			if err := art.Remove(); err != nil {
				log.Warnf("remove artifact: %v", err)
			}
		}()
		tr, err := c.cfg.Client.Transcribe(context.Background(), art.Path, tok)
		return uploaded{tr: tr, audio: art.Duration, err: err}
	}
	if !c.worker.Submit(job) {
		art.Remove()
		c.setState(Idle)
		c.status(LevelError, "busy, try again")
		return
	}
	c.setState(Processing)
}

func (c *Controller) handleResult(res any) {
	switch r := res.(type) {
	case uploaded:
		c.onUploaded(r)
	case typed:
		c.onTyped(r)
	case *PanicError:
		c.setState(Idle)
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "transcription failed")
	}
}

func (c *Controller) onUploaded(r uploaded) {
	if r.err != nil {
		c.setState(Idle)
		c.onUploadError(r.err)
		return
	}
	if strings.TrimSpace(r.tr.Text) == "" {
		c.setState(Idle)
		c.status(LevelWarning, "no speech detected")
		return
	}

	c.count.Add(1)
	text := r.tr.Text
	c.last.Store(&text)
	log.TranscriptionText(text)
	log.Transcription(r.tr.Words, r.tr.WordsUsedThisWeek, r.tr.WordsRemaining, r.audio, metricsString(r.tr))

	tr := r.tr
	job := func() any {
		return typed{tr: tr, err: c.cfg.Injector.Type(tr.Text)}
	}
	if !c.worker.Submit(job) {
		c.setState(Idle)
		c.status(LevelError, "could not type text")
		return
	}
	c.setState(Typing)
}

func (c *Controller) onUploadError(err error) {
	var te *client.TransportError
	var se *client.ServerError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		c.credential = ""
		if cerr := c.cfg.Credentials.Clear(); cerr != nil {
			log.Errorf("clear credential: %v", cerr)
		}
		c.status(LevelWarning, "session expired, sign in again")
		c.cfg.AuthRequired()
	case errors.Is(err, client.ErrQuotaExceeded):
		c.status(LevelWarning, "%s", quotaMessage(c.cfg.WeeklyLimit))
	case errors.As(err, &te):
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "server unreachable")
	case errors.As(err, &se):
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "transcription failed (%d)", se.StatusCode)
	default:
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "transcription failed")
	}
	log.Errorf("transcribe: %v", err)
}

func (c *Controller) onTyped(r typed) {
	c.setState(Idle)
	if r.err != nil {
		c.cfg.Cue(beep.CueError)
		c.status(LevelError, "could not type text, press ctrl+l to copy it")
		log.Errorf("inject: %v", r.err)
		return
	}
	st := Status{
		Level:      LevelSuccess,
		Transcript: r.tr.Text,
		Words:      r.tr.Words,
		Remaining:  r.tr.WordsRemaining,
		Unlimited:  r.tr.Unlimited(),
	}
	if st.Unlimited {
		st.Text = "unlimited"
	} else {
		st.Text = fmt.Sprintf("%d words left this week", r.tr.WordsRemaining)
	}
	c.cfg.Sink.Status(st)
}

func quotaMessage(limit int) string {
	if limit > 0 {
		return fmt.Sprintf("weekly limit of %d words reached, activate a license to keep dictating", limit)
	}
	return "weekly word limit reached, activate a license to keep dictating"
}

func metricsString(tr *client.Transcript) string {
	if tr.Metrics == nil {
		return ""
	}
	return tr.Metrics.String()
}
