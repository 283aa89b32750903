package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

type Key string

const (
	KeyCtrl  Key = "ctrl"
	KeyShift Key = "shift"
	KeyAlt   Key = "alt"
	KeySuper Key = "super"
	KeySpace Key = "space"
)

var DefaultChord = []Key{KeyCtrl, KeyShift, KeySpace}

var keyAliases = map[string]Key{
	"control": KeyCtrl,
	"option":  KeyAlt,
	"opt":     KeyAlt,
	"cmd":     KeySuper,
	"command": KeySuper,
	"win":     KeySuper,
	"meta":    KeySuper,
}

func (k Key) IsModifier() bool {
	switch k {
	case KeyCtrl, KeyShift, KeyAlt, KeySuper:
		return true
	}
	return false
}

func validKey(k Key) bool {
	if k.IsModifier() || k == KeySpace {
		return true
	}
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	return false
}

// ParseChord parses "ctrl+shift+space" style specs. Exactly one non-modifier
// key is required and it is placed last.
func ParseChord(s string) ([]Key, error) {
	if strings.TrimSpace(s) == "" {
		return slices.Clone(DefaultChord), nil
	}
	var mods []Key
	var main Key
	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		k := Key(name)
		if alias, ok := keyAliases[name]; ok {
			k = alias
		}
		if !validKey(k) {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", part, s)
		}
		if k.IsModifier() {
			if !slices.Contains(mods, k) {
				mods = append(mods, k)
			}
			continue
		}
		if main != "" {
			return nil, fmt.Errorf("hotkey %q has more than one non-modifier key", s)
		}
		main = k
	}
	if main == "" {
		return nil, fmt.Errorf("hotkey %q needs a non-modifier key", s)
	}
	return append(mods, main), nil
}

func FormatChord(keys []Key) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

// Chord tracks which keys are held and reports activations. An activation
// fires once when the last chord key goes down; it re-arms only after one
// of the chord keys is released, so key-repeat never re-triggers.
type Chord struct {
	keys  []Key
	held  map[Key]bool
	armed bool
}

func NewChord(keys []Key) *Chord {
	return &Chord{keys: keys, held: make(map[Key]bool), armed: true}
}

func (c *Chord) Keys() []Key { return c.keys }

// Press records k as held and reports whether this press completed the chord.
func (c *Chord) Press(k Key) bool {
	c.held[k] = true
	if !c.armed {
		return false
	}
	for _, want := range c.keys {
		if !c.held[want] {
			return false
		}
	}
	c.armed = false
	return true
}

// Release records k as up and reports whether it ended an activation.
func (c *Chord) Release(k Key) bool {
	delete(c.held, k)
	if c.armed || !slices.Contains(c.keys, k) {
		return false
	}
	c.armed = true
	return true
}
