package audio

import (
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadDebounce   = 3                                  // consecutive speech frames to confirm voice
)

// VoiceDetector reports whether a stream of 16 kHz PCM16 contains speech.
// It is not safe for concurrent use.
type VoiceDetector struct {
	vad *webrtcvad.VAD

	buf          []byte
	speechRun    int
	voiced       bool
	totalFrames  int
	speechFrames int
}

func NewVoiceDetector() (*VoiceDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &VoiceDetector{vad: v}, nil
}

// Process consumes data in 20ms frames and keeps any remainder for the next
// call.
func (d *VoiceDetector) Process(data []byte) {
	d.buf = append(d.buf, data...)
	for len(d.buf) >= vadFrameBytes {
		frame := d.buf[:vadFrameBytes]
		d.buf = d.buf[vadFrameBytes:]

		active, err := d.vad.Process(SampleRate, frame)
		if err != nil {
			continue
		}
		d.totalFrames++
		if !active {
			d.speechRun = 0
			continue
		}
		d.speechFrames++
		d.speechRun++
		if d.speechRun >= vadDebounce {
			d.voiced = true
		}
	}
}

func (d *VoiceDetector) Voiced() bool { return d.voiced }

func (d *VoiceDetector) Stats() (total, speech int) { return d.totalFrames, d.speechFrames }

func (d *VoiceDetector) Reset() {
	d.buf = d.buf[:0]
	d.speechRun = 0
	d.voiced = false
	d.totalFrames = 0
	d.speechFrames = 0
}
