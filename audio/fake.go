package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const fakeFrameSize = 1024

// FakeContext replays fixed PCM through every capture it creates. It backs
// the -test mode and package tests.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	startErr error
	last     *FakeCapture
}

// NewFakeContext loads a 16 kHz mono 16-bit WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a wav file", wavPath)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", wavPath, err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return &FakeContext{pcm: samplesToPCM(samples), realtime: realtime}, nil
}

// NewFakeContextPCM replays raw little-endian int16 PCM. Empty pcm yields
// captures that never deliver a chunk.
func NewFakeContextPCM(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

// FailStart makes subsequent captures fail to start with err.
func (f *FakeContext) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// Last returns the most recently created capture.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &FakeCapture{pcm: f.pcm, realtime: f.realtime, startErr: f.startErr}
	f.last = c
	return c, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool
	startErr error

	mu      sync.Mutex
	cb      DataCallback
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Emit delivers one chunk as the driver would.
func (f *FakeCapture) Emit(data []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/BytesPerSample))
	}
}

func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Start feeds the whole clip synchronously unless realtime is set, in which
// case chunks are paced at the capture sample rate.
func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * BytesPerSample
	if !f.realtime {
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.Emit(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
		}
		return nil
	}

	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})
	interval := time.Duration(fakeFrameSize) * time.Second / SampleRate
	go func() {
		defer close(f.done)
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.Emit(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
		<-f.done
		f.stopCh = nil
	}
}

func (f *FakeCapture) Close() {}

func samplesToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}
