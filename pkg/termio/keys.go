// Package termio supplies the concrete External Collaborators named in
// spec.md section 4.F: a gocui-backed UI/Mode-hooks implementation and a
// raw, timeout-bounded input source built on gocui's Editor hook, grounded
// on lazydocker's pkg/gui (gui.go's g.SetManager/layout/refresh plumbing)
// and jesseduffield/gocui's own confirmation-panel editors
// (confirmation_panel.go), which are the one place lazydocker captures
// raw keystrokes instead of letting gocui's keybinding table dispatch
// them.
package termio

import "github.com/jesseduffield/gocui"

// functionalBase is the start of the Unicode Private Use Area, chosen so
// K(c) can never collide with a printable or even most non-printable
// BMP codepoints (spec.md section 6: "a tagging transform K(c) that
// guarantees no collision with printable Unicode").
const functionalBase = 0xE000

// K tags a functional key code (arrow, F-key, resize notifier) so it can
// travel through the same rune-based buffer the Key Engine dispatches
// against, without being mistaken for literal input.
func K(c rune) rune {
	return functionalBase + c
}

// IsFunctional reports whether r was produced by K.
func IsFunctional(r rune) bool {
	return r >= functionalBase && r < functionalBase+0x1000
}

// Functional key codes, tagged via K and registered as builtin/selector
// chunks the same way arrow keys are bound in vifm's own key tables.
var (
	KeyUp    = K(1)
	KeyDown  = K(2)
	KeyLeft  = K(3)
	KeyRight = K(4)
	KeyHome  = K(5)
	KeyEnd   = K(6)
	KeyPgUp  = K(7)
	KeyPgDn  = K(8)
	KeyDel   = K(9)
	KeyBS    = K(10)
	keyResizeTag = K(11)
)

// gocuiKeyToRune maps the subset of gocui's named keys vifm-core's key
// trees care about onto the tagged functional code space; everything else
// (plain printable runes, which gocui's Editor hands through as ch) needs
// no translation.
func gocuiKeyToRune(key gocui.Key) (rune, bool) {
	switch key {
	case gocui.KeyArrowUp:
		return KeyUp, true
	case gocui.KeyArrowDown:
		return KeyDown, true
	case gocui.KeyArrowLeft:
		return KeyLeft, true
	case gocui.KeyArrowRight:
		return KeyRight, true
	case gocui.KeyHome:
		return KeyHome, true
	case gocui.KeyEnd:
		return KeyEnd, true
	case gocui.KeyPgup:
		return KeyPgUp, true
	case gocui.KeyPgdn:
		return KeyPgDn, true
	case gocui.KeyDelete:
		return KeyDel, true
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		return KeyBS, true
	case gocui.KeyEnter:
		return '\r', true
	case gocui.KeyEsc:
		return '\x1b', true
	case gocui.KeyTab:
		return '\t', true
	case gocui.KeyCtrlZ:
		return '\x1a', true
	}
	return 0, false
}
