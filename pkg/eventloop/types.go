// Package eventloop implements the cooperative, single-threaded master
// loop of spec.md section 4.E: it turns a real-time stream of input and
// external events into serialized calls into the Key Engine while keeping
// the UI responsive, exactly mirroring original_source/src/event_loop.c's
// event_loop()/get_char_async_loop().
package eventloop

import (
	"time"

	"github.com/xaizek/vifm-core/pkg/keys"
)

// InputKind classifies what TryGetWChar returned.
type InputKind int

const (
	// NoInput means the timeout elapsed with nothing to report.
	NoInput InputKind = iota
	// Char is an ordinary (possibly K()-tagged functional) wide character.
	Char
	// Resize is the terminal-resize notification, tagged via K() like any
	// other functional key but handled specially by the loop (spec.md
	// section 4.E step 2: "If terminal resize is received, redraw and
	// restart the wait").
	Resize
)

// InputSource is the raw-input collaborator named in spec.md section 4.F:
// try_get_wchar(timeout_ms) -> {Char, Function, None}. It must not block
// longer than timeout.
type InputSource interface {
	TryGetWChar(timeout time.Duration) (r rune, kind InputKind)
}

// UI is the display collaborator named in spec.md section 4.F.
type UI interface {
	Redraw()
	SetSilent(bool)
	RefreshCursor(mode int)
	ShowSuggestions(items []keys.Suggestion)
	ClearSuggestions()
	// StatusMultiline reports whether the status bar currently spans more
	// than one line, which forces the "wait for Enter" gate (spec.md
	// section 4.E step 7).
	StatusMultiline() bool
}

// ModeHooks are the per-mode lifecycle callbacks named in spec.md section
// 4.F.
type ModeHooks interface {
	Pre()
	Periodic()
	Post()
	Redraw()
}

// IPCChecker is the non-blocking IPC collaborator (spec.md section 4.F):
// Check may return key sequences to inject via FeedKeys.
type IPCChecker interface {
	Check() []string
}

// BackgroundJobs is the non-blocking background-job collaborator (spec.md
// section 4.F): Check reports whether something finished and a redraw
// should be scheduled.
type BackgroundJobs interface {
	Check() bool
}

// Registers is the register-suggestion collaborator: named even though
// register storage itself is out of scope (spec.md section 4.F, and the
// SF_REGISTERS supplemented feature in SPEC_FULL.md section 4).
type Registers interface {
	SuggestRegisters(cb func(name rune, description string), maxFiles int)
}
