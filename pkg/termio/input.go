package termio

import (
	"time"

	"github.com/jesseduffield/gocui"

	"github.com/xaizek/vifm-core/pkg/eventloop"
)

// Input implements eventloop.InputSource on top of a gocui.Gui: it installs
// itself as the Editor of a single always-focused, invisible view so every
// keystroke reaches Edit() instead of being swallowed by gocui's normal
// keybinding table, the same raw-capture trick lazydocker's
// confirmation_panel.go uses for its text prompt.
type Input struct {
	g *gocui.Gui

	events chan rune

	lastW, lastH int
}

// NewInput wires a raw-capture editor onto viewName, which the caller must
// have already created full-screen and given permanent focus.
func NewInput(g *gocui.Gui, viewName string) (*Input, error) {
	in := &Input{g: g, events: make(chan rune, 256)}

	v, err := g.View(viewName)
	if err != nil {
		return nil, err
	}
	v.Editable = true
	v.Editor = gocui.EditorFunc(in.onEdit)

	w, h := g.Size()
	in.lastW, in.lastH = w, h

	return in, nil
}

func (in *Input) onEdit(_ *gocui.View, key gocui.Key, ch rune, _ gocui.Modifier) {
	if r, ok := gocuiKeyToRune(key); ok {
		in.events <- r
		return
	}
	if ch != 0 {
		in.events <- ch
	}
}

// TryGetWChar implements eventloop.InputSource: it waits at most timeout
// for either a captured keystroke or a terminal-size change, returning
// eventloop.NoInput if neither happens.
func (in *Input) TryGetWChar(timeout time.Duration) (rune, eventloop.InputKind) {
	if w, h := in.g.Size(); w != in.lastW || h != in.lastH {
		in.lastW, in.lastH = w, h
		return keyResizeTag, eventloop.Resize
	}

	select {
	case r := <-in.events:
		return r, eventloop.Char
	case <-time.After(timeout):
		return 0, eventloop.NoInput
	}
}
