package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"vox/encoder"
)

// Artifact is a finalized recording on disk. The caller owns the file.
type Artifact struct {
	Path     string
	Format   encoder.Format
	Frames   uint64
	Duration time.Duration

	// Silent is set when a voice detector was attached and heard no speech.
	Silent bool
}

func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Recorder captures one utterance at a time. It is owned by a single
// goroutine; only the driver callback runs elsewhere, and it touches nothing
// but the chunk queue.
type Recorder struct {
	ctx    Context
	device *DeviceInfo
	format encoder.Format
	voice  *VoiceDetector

	mu      sync.Mutex
	capture CaptureDevice
	queue   ChunkQueue
	started time.Time

	last    *Artifact
	lastErr error
}

func NewRecorder(ctx Context, device *DeviceInfo, format encoder.Format) *Recorder {
	if format == "" {
		format = encoder.WAV
	}
	return &Recorder{ctx: ctx, device: device, format: format, lastErr: ErrNotRecording}
}

func (r *Recorder) Format() encoder.Format { return r.format }

// DetectVoice makes Stop classify each artifact with d.
func (r *Recorder) DetectVoice(d *VoiceDetector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voice = d
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

func (r *Recorder) DeviceName() string {
	if r.device != nil {
		return r.device.Name
	}
	return "system default"
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture != nil {
		return nil
	}

	r.queue.Drain()
	capture, err := r.ctx.NewCapture(r.device, DefaultConfig())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	capture.SetCallback(func(data []byte, _ uint32) {
		r.queue.Push(data)
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return wrapUnavailable(err)
	}
	r.capture = capture
	r.started = time.Now()
	return nil
}

// Stop ends the stream and writes every chunk received, in arrival order,
// to dst. Calling Stop while idle returns the previous result.
func (r *Recorder) Stop(dst string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture == nil {
		return r.last, r.lastErr
	}

	r.capture.Stop()
	r.capture.ClearCallback()
	r.capture.Close()
	r.capture = nil

	r.last, r.lastErr = r.finish(dst)
	return r.last, r.lastErr
}

func (r *Recorder) finish(dst string) (*Artifact, error) {
	chunks := r.queue.Drain()
	if len(chunks) == 0 {
		return nil, ErrNoAudioCaptured
	}
	pcm := Concat(chunks)
	samples := PCM16ToSamples(pcm)

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	enc, err := encoder.New(r.format, f)
	if err != nil {
		f.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := enc.Write(samples); err != nil {
		f.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("close artifact: %w", err)
	}

	frames := enc.TotalFrames()
	art := &Artifact{
		Path:     dst,
		Format:   r.format,
		Frames:   frames,
		Duration: time.Duration(frames) * time.Second / SampleRate,
	}
	if r.voice != nil {
		r.voice.Reset()
		r.voice.Process(pcm)
		art.Silent = !r.voice.Voiced()
	}
	return art, nil
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
