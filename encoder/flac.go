package encoder

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder buffers samples into fixed BlockSize frames. A short final
// frame is flushed on Close.
type FlacEncoder struct {
	enc         *flac.Encoder
	pending     []int32
	totalFrames uint64
}

func NewFlac(w io.Writer) (*FlacEncoder, error) {
	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(noClose(w), info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacEncoder{enc: enc, pending: make([]int32, 0, BlockSize)}, nil
}

func (e *FlacEncoder) Write(samples []int16) error {
	for _, s := range samples {
		e.pending = append(e.pending, int32(s))
		if len(e.pending) == BlockSize {
			if err := e.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *FlacEncoder) flush() error {
	if len(e.pending) == 0 {
		return nil
	}
	block := make([]int32, len(e.pending))
	copy(block, e.pending)
	e.pending = e.pending[:0]

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   block,
			NSamples:  len(block),
		}},
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	if err := e.flush(); err != nil {
		return err
	}
	return e.enc.Close()
}

func (e *FlacEncoder) TotalFrames() uint64 { return e.totalFrames }

// noClose hides Close from the flac encoder, which would otherwise close the
// caller's file. Seek stays visible so StreamInfo is rewritten on Close.
func noClose(w io.Writer) io.Writer {
	if ws, ok := w.(io.WriteSeeker); ok {
		return struct{ io.WriteSeeker }{ws}
	}
	return struct{ io.Writer }{w}
}
