package audio

import "errors"

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

var (
	// ErrDeviceUnavailable is returned when no input stream could be opened.
	// Retrying Start is allowed.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrNoAudioCaptured is returned by Stop when the stream produced no chunks.
	ErrNoAudioCaptured = errors.New("no audio captured")
	ErrNotRecording    = errors.New("not recording")
)

// DataCallback receives little-endian int16 mono PCM. It runs on the driver's
// real-time thread and must not block.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultConfig is the fixed capture format every artifact is written in.
func DefaultConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
