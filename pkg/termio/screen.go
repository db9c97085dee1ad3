package termio

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jesseduffield/gocui"
	"github.com/mattn/go-runewidth"

	"github.com/xaizek/vifm-core/pkg/keys"
)

// errorStyle colors diagnostics handed up from Unknown/error results,
// mirroring the teacher's own use of fatih/color for its status text
// (see pkg/gui/app_status_manager.go).
var errorStyle = color.New(color.FgRed)

const (
	inputViewName       = "input"
	statusViewName      = "status"
	suggestionsViewName = "suggestions"
)

// Screen implements eventloop.UI on top of a gocui.Gui, grounded on
// lazydocker's pkg/gui layout/refresh plumbing (gui.go's g.SetManager,
// throttled gui.refresh) generalized from a Docker dashboard to vifm-core's
// status line and completion popup.
type Screen struct {
	g *gocui.Gui

	silent        bool
	statusLines   int
	suggestionsUp bool
}

// NewScreen wraps an already-initialized gocui.Gui. The caller is
// responsible for creating the status/suggestions/input views in its
// layout manager; Screen only ever writes into views that already exist.
func NewScreen(g *gocui.Gui) *Screen {
	return &Screen{g: g}
}

// Redraw schedules a gocui render pass the same way lazydocker's
// throttle.ThrottleFunc-wrapped gui.refresh does.
func (s *Screen) Redraw() {
	s.g.Update(func(*gocui.Gui) error { return nil })
}

// SetSilent mutes status-bar updates, e.g. while a handler is itself
// driving a nested prompt loop.
func (s *Screen) SetSilent(silent bool) {
	s.silent = silent
}

// RefreshCursor repositions the hardware cursor into the input view,
// mirroring gocui's own SetCurrentView/SetCursor pairing; mode is unused
// here but kept so callers needing mode-dependent cursor shapes (block vs
// bar, say) have a hook to extend without changing the interface.
func (s *Screen) RefreshCursor(_ int) {
	v, err := s.g.View(inputViewName)
	if err != nil {
		return
	}
	cx, cy := v.Cursor()
	_ = v.SetCursor(cx, cy)
}

// ShowSuggestions renders the completion popup, columns aligned the way
// lazydocker's utils.RenderTable pads table cells.
func (s *Screen) ShowSuggestions(items []keys.Suggestion) {
	v, err := s.g.View(suggestionsViewName)
	if err != nil {
		return
	}
	v.Clear()

	lhsWidth := 0
	for _, it := range items {
		if w := runewidth.StringWidth(it.LHS); w > lhsWidth {
			lhsWidth = w
		}
	}

	var b strings.Builder
	for _, it := range items {
		pad := lhsWidth - runewidth.StringWidth(it.LHS)
		b.WriteString(it.LHS)
		b.WriteString(strings.Repeat(" ", pad+2))
		if it.RHS != "" {
			fmt.Fprintf(&b, "-> %s", it.RHS)
		} else {
			b.WriteString(it.Description)
		}
		b.WriteString("\n")
	}

	fmt.Fprint(v, b.String())
	s.suggestionsUp = true
}

// ClearSuggestions hides the completion popup.
func (s *Screen) ClearSuggestions() {
	if !s.suggestionsUp {
		return
	}
	if v, err := s.g.View(suggestionsViewName); err == nil {
		v.Clear()
	}
	s.suggestionsUp = false
}

// StatusMultiline reports whether the last message written to the status
// view spans more than one line, forcing the event loop's "wait for
// Enter" gate.
func (s *Screen) StatusMultiline() bool {
	return s.statusLines > 1
}

// SetStatus writes msg into the status view, tracking its line count for
// StatusMultiline.
func (s *Screen) SetStatus(msg string) {
	if s.silent {
		return
	}
	s.statusLines = strings.Count(msg, "\n") + 1
	if v, err := s.g.View(statusViewName); err == nil {
		v.Clear()
		fmt.Fprint(v, msg)
	}
}

// SetError writes an error diagnostic into the status view in red,
// mirroring the teacher's own error-coloring convention.
func (s *Screen) SetError(msg string) {
	s.SetStatus(errorStyle.Sprint(msg))
}
