package encoder

import (
	"fmt"
	"io"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Format string

const (
	WAV  Format = "wav"
	FLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case WAV, FLAC:
		return f, nil
	case "":
		return WAV, nil
	default:
		return "", fmt.Errorf("unknown audio format %q (want wav or flac)", s)
	}
}

func (f Format) Ext() string { return "." + string(f) }

func (f Format) ContentType() string {
	if f == FLAC {
		return "audio/flac"
	}
	return "audio/wav"
}

// Encoder turns 16 kHz mono int16 samples into a container written to the
// underlying stream. Close must be called to finalize headers.
type Encoder interface {
	Write(samples []int16) error
	Close() error
	TotalFrames() uint64
}

func New(format Format, w io.WriteSeeker) (Encoder, error) {
	switch format {
	case WAV, "":
		return NewWav(w), nil
	case FLAC:
		return NewFlac(w)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
