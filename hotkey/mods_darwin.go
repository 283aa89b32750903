package hotkey

import "golang.design/x/hotkey"

var modifiers = map[Key]hotkey.Modifier{
	KeyCtrl:  hotkey.ModCtrl,
	KeyShift: hotkey.ModShift,
	KeyAlt:   hotkey.ModOption,
	KeySuper: hotkey.ModCmd,
}
