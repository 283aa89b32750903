// Package beep plays short audible cues for recording start, stop and errors.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueStop:
		return "stop"
	case CueError:
		return "error"
	}
	return "unknown"
}

type tone struct {
	freq   float64
	volume float64
	decay  float64
	dur    float64
	repeat int
	gap    float64
}

var tones = map[Cue]tone{
	CueStart: {freq: 1200, volume: 0.5, decay: 60, dur: 0.12, repeat: 1},
	CueStop:  {freq: 900, volume: 0.5, decay: 40, dur: 0.15, repeat: 1},
	CueError: {freq: 350, volume: 0.6, decay: 30, dur: 0.08, repeat: 2, gap: 0.05},
}

var (
	disabled atomic.Bool
	cacheMu  sync.Mutex
	cache    = map[Cue][]int16{}
)

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// Play starts c in the background. It never blocks the caller.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	samples := Samples(c)
	if len(samples) == 0 {
		return
	}
	go play(samples)
}

// Samples returns the mono 16-bit PCM for c at 44.1kHz.
func Samples(c Cue) []int16 {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if s, ok := cache[c]; ok {
		return s
	}
	t, ok := tones[c]
	if !ok {
		return nil
	}
	s := synth(t)
	cache[c] = s
	return s
}

func synth(t tone) []int16 {
	n := int(sampleRate * t.dur)
	gap := int(sampleRate * t.gap)
	out := make([]int16, 0, t.repeat*n+(t.repeat-1)*gap)
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap)...)
		}
		for i := 0; i < n; i++ {
			x := float64(i) / sampleRate
			env := math.Exp(-x * t.decay)
			out = append(out, int16(math.Sin(2*math.Pi*t.freq*x)*math.MaxInt16*t.volume*env))
		}
	}
	return out
}
