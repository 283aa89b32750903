package hotkey

import "golang.design/x/hotkey"

var modifiers = map[Key]hotkey.Modifier{
	KeyCtrl:  hotkey.ModCtrl,
	KeyShift: hotkey.ModShift,
	KeyAlt:   hotkey.ModAlt,
	KeySuper: hotkey.ModWin,
}
