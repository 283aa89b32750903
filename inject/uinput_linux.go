//go:build linux

package inject

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// linux/uinput.h
const (
	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

const (
	evSyn  = 0x00
	evKey  = 0x01
	busUSB = 0x03
)

const deviceName = "vox-keyboard"

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

type uinputKeyboard struct {
	mu    sync.Mutex
	f     *os.File
	delay time.Duration
}

func openKeyboard() (keyboard, error) {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	ioctl := func(req, arg uintptr) error {
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
			return errno
		}
		return nil
	}
	setup := func() error {
		if err := ioctl(uiSetEvbit, evKey); err != nil {
			return err
		}
		if err := ioctl(uiSetEvbit, evSyn); err != nil {
			return err
		}
		// a full key bitmap makes udev classify the device as a keyboard
		for i := uintptr(0); i < 256; i++ {
			if err := ioctl(uiSetKeybit, i); err != nil {
				return err
			}
		}
		dev := uinputUserDev{}
		copy(dev.Name[:], deviceName)
		dev.ID = inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5679, Version: 1}
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			return err
		}
		return ioctl(uiDevCreate, 0)
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput setup: %w", err)
	}

	// compositors ignore events from a device they have not enumerated yet
	time.Sleep(200 * time.Millisecond)
	return &uinputKeyboard{f: f, delay: 2 * time.Millisecond}, nil
}

func (k *uinputKeyboard) write(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	if err := binary.Write(k.f, binary.LittleEndian, &ev); err != nil {
		return err
	}
	return binary.Write(k.f, binary.LittleEndian, &inputEvent{Type: evSyn})
}

func (k *uinputKeyboard) lookup(r rune) (int, bool, bool) { return evdevLookup(r) }

func (k *uinputKeyboard) tap(code int, shift bool) error {
	if shift {
		return k.chord(evdevShift, code)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.write(evKey, uint16(code), 1); err != nil {
		return err
	}
	time.Sleep(k.delay)
	return k.write(evKey, uint16(code), 0)
}

func (k *uinputKeyboard) chord(mod, code int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	steps := []struct {
		code  int
		value int32
	}{{mod, 1}, {code, 1}, {code, 0}, {mod, 0}}
	for _, s := range steps {
		if err := k.write(evKey, uint16(s.code), s.value); err != nil {
			return err
		}
		time.Sleep(k.delay)
	}
	return nil
}

func (k *uinputKeyboard) paste() error { return k.chord(evdevCtrl, evdevV) }

// Verify creates the virtual keyboard, sends Ctrl+V and reads it back from
// the kernel input layer.
func Verify() (string, error) {
	kb, err := openKeyboard()
	if err != nil {
		return "", err
	}
	uk := kb.(*uinputKeyboard)
	defer func() {
		syscall.Syscall(syscall.SYS_IOCTL, uk.f.Fd(), uiDevDestroy, 0)
		uk.f.Close()
	}()

	evdevPath, err := findDevice(deviceName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := uk.paste(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type result struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 24*32)
		var r result
		n, err := evdev.Read(buf)
		if err != nil {
			r.err = err
			ch <- r
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			switch binary.LittleEndian.Uint16(buf[i+18:]) {
			case evdevCtrl:
				r.ctrl = true
			case evdevV:
				r.v = true
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.ctrl || !r.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.ctrl, r.v)
		}
		return fmt.Sprintf("keystrokes verified via %s", evdevPath), nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}

func findDevice(name string) (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err == nil && strings.TrimSpace(string(data)) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("%s evdev device not found", name)
}
