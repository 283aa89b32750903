package encoder

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type WavEncoder struct {
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
}

func NewWav(w io.WriteSeeker) *WavEncoder {
	return &WavEncoder{
		enc:    wav.NewEncoder(w, SampleRate, BitsPerSample, Channels, 1),
		format: &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
	}
}

func (e *WavEncoder) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(samples))
	return nil
}

func (e *WavEncoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }
