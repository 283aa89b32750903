//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var xKeys = map[Key]hotkey.Key{
	KeySpace: hotkey.KeySpace,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
}

type xHotkey struct {
	keys    []Key
	keydown chan struct{}
	keyup   chan struct{}

	hk   *hotkey.Hotkey
	stop chan struct{}
	once sync.Once
}

func New(keys []Key) Hotkey {
	return &xHotkey{
		keys:    keys,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func toX(keys []Key) ([]hotkey.Modifier, hotkey.Key, error) {
	var mods []hotkey.Modifier
	var main hotkey.Key
	found := false
	for _, k := range keys {
		if k.IsModifier() {
			m, ok := modifiers[k]
			if !ok {
				return nil, 0, fmt.Errorf("modifier %q not supported on this platform", k)
			}
			mods = append(mods, m)
			continue
		}
		xk, ok := xKeys[k]
		if !ok {
			return nil, 0, fmt.Errorf("key %q not supported on this platform", k)
		}
		main, found = xk, true
	}
	if !found {
		return nil, 0, fmt.Errorf("hotkey %q needs a non-modifier key", FormatChord(keys))
	}
	return mods, main, nil
}

func (h *xHotkey) Register() error {
	mods, key, err := toX(h.keys)
	if err != nil {
		return err
	}
	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", FormatChord(h.keys), err)
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				notify(h.keydown)
			case <-h.hk.Keyup():
				notify(h.keyup)
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		if h.hk != nil {
			h.hk.Unregister()
		}
	})
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *xHotkey) Keyup() <-chan struct{}   { return h.keyup }

func Diagnose(keys []Key) (string, error) {
	if _, _, err := toX(keys); err != nil {
		return "", err
	}
	return fmt.Sprintf("hotkey support available (%s)", FormatChord(keys)), nil
}
