//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var playMu sync.Mutex

func play(samples []int16) {
	playMu.Lock()
	defer playMu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	var mu sync.Mutex
	pos := 0
	onData := func(out, _ []byte, _ uint32) {
		mu.Lock()
		defer mu.Unlock()
		n := copy(out, pcm[pos:])
		pos += n
		clear(out[n:])
	}
	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return
	}
	defer dev.Uninit()
	if err := dev.Start(); err != nil {
		return
	}
	// Let the last buffer drain before tearing the device down.
	time.Sleep(time.Duration(len(samples))*time.Second/sampleRate + 80*time.Millisecond)
	_ = dev.Stop()
}
