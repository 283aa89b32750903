package doctor

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"vox/audio"
	"vox/encoder"
)

// peakLevel decodes art and returns its peak in dBFS, -Inf for silence.
func peakLevel(art *audio.Artifact) (float64, error) {
	var peak int
	switch art.Format {
	case encoder.FLAC:
		stream, err := flac.ParseFile(art.Path)
		if err != nil {
			return 0, fmt.Errorf("decode artifact: %w", err)
		}
		defer stream.Close()
		for {
			frame, err := stream.ParseNext()
			if err != nil {
				break
			}
			for _, sf := range frame.Subframes {
				for _, s := range sf.Samples {
					peak = max(peak, abs(int(s)))
				}
			}
		}
	default:
		f, err := os.Open(art.Path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		buf, err := wav.NewDecoder(f).FullPCMBuffer()
		if err != nil {
			return 0, fmt.Errorf("decode artifact: %w", err)
		}
		for _, s := range buf.Data {
			peak = max(peak, abs(s))
		}
	}
	if peak == 0 {
		return math.Inf(-1), nil
	}
	return 20 * math.Log10(float64(peak)/math.MaxInt16), nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
