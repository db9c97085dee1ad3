package eventloop

import (
	"time"

	throttle "github.com/boz/go-throttle"
	"github.com/samber/lo"
	"github.com/sasha-s/go-deadlock"

	"github.com/xaizek/vifm-core/pkg/keys"
)

// maxInputBuf mirrors event_loop.c's "wchar_t input_buf[128]" and the
// overflow-recovery path of spec.md section 7.
const maxInputBuf = 128

// maxFeedQueue bounds the synthesized input queue (event_loop.c's
// "wchar_t input_queue[128]"); feeding past capacity drops the overflow,
// best-effort, exactly like the source's feed_keys.
const maxFeedQueue = 128

// Config carries the timing knobs spec.md section 4.E and the original
// cfg.timeout_len/cfg.min_timeout_len/cfg.sug settings supply.
type Config struct {
	TimeoutLen    time.Duration
	MinTimeoutLen time.Duration

	SuggestionDelay  time.Duration
	ShowSuggestNormal bool
	ShowSuggestVisual bool
	ShowSuggestView   bool
	SuggestKeys       bool
	SuggestFoldSubkeys bool
	SuggestRegisters   bool
	MaxRegFiles        int
}

// Loop is the cooperative single-threaded master loop. It owns no thread
// of its own: Run (or repeated Step calls) must be driven by the goroutine
// that also owns the Engine, per spec.md section 5's scheduling model.
type Loop struct {
	Engine *keys.Engine
	Input  InputSource
	UI     UI
	Modes  ModeHooks
	IPC    IPCChecker
	Jobs   BackgroundJobs
	Regs   Registers
	Config Config

	// NormalMode/VisualMode/ViewMode identify which Mode ids correspond to
	// the suggestion-eligible modes named in should_display_suggestion_box.
	NormalMode, VisualMode, ViewMode int

	// OnSuspend is the process-control collaborator Ctrl-Z is delegated to
	// (spec.md section 4.F, section 5 "Cancellation"). May be nil, in which
	// case Ctrl-Z is silently swallowed.
	OnSuspend func()

	mu deadlock.Mutex

	feedQueue []rune

	inputBuf    []rune
	lastResult  keys.Result
	timeout     time.Duration
	waitForEnter      bool
	waitForSuggestion bool
	suggestionsVisible bool

	refreshThrottle throttle.ThrottleDriver
}

// New builds a Loop around engine, driven by the given collaborators.
func New(engine *keys.Engine, input InputSource, ui UI, modes ModeHooks, ipc IPCChecker, jobs BackgroundJobs, regs Registers, cfg Config) *Loop {
	l := &Loop{
		Engine: engine,
		Input:  input,
		UI:     ui,
		Modes:  modes,
		IPC:    ipc,
		Jobs:   jobs,
		Regs:   regs,
		Config: cfg,
		timeout: cfg.TimeoutLen,
	}
	l.refreshThrottle = throttle.ThrottleFunc(50*time.Millisecond, true, func() {
		ui.Redraw()
	})
	return l
}

// Close stops the refresh throttle's background goroutine.
func (l *Loop) Close() {
	l.refreshThrottle.Stop()
}

// FeedKeys appends synthesized input to the priority input queue
// (event_loop.c's feed_keys): best-effort, dropping whatever doesn't fit.
func (l *Loop) FeedKeys(input string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room := maxFeedQueue - len(l.feedQueue)
	if room <= 0 {
		return
	}
	runes := []rune(input)
	if len(runes) > room {
		runes = runes[:room]
	}
	l.feedQueue = append(l.feedQueue, runes...)
}

func (l *Loop) popFeedKey() (rune, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.feedQueue) == 0 {
		return 0, false
	}
	r := l.feedQueue[0]
	l.feedQueue = l.feedQueue[1:]
	return r, true
}

// Run drives the loop until quit is closed, exactly mirroring event_loop()'s
// `while(!*quit)` shape.
func (l *Loop) Run(quit <-chan struct{}) error {
	for {
		select {
		case <-quit:
			return nil
		default:
		}
		if err := l.Step(); err != nil {
			return err
		}
	}
}

// RunNested runs a re-entrant inner loop, e.g. for a prompt invoked from a
// handler. It saves and restores the outer loop's buffer state exactly as
// event_loop()'s local prev_input_buf/prev_input_buf_pos do, so the outer
// dispatch's partial input survives the nested loop.
func (l *Loop) RunNested(quit <-chan struct{}) error {
	savedBuf := l.inputBuf
	savedResult := l.lastResult
	savedTimeout := l.timeout
	l.inputBuf = nil
	l.lastResult = keys.Unknown
	l.timeout = l.Config.TimeoutLen

	err := l.Run(quit)

	l.inputBuf = savedBuf
	l.lastResult = savedResult
	l.timeout = savedTimeout
	return err
}

// Step runs one iteration of spec.md section 4.E.
func (l *Loop) Step() error {
	l.Modes.Pre()

	r, gotInput := l.waitForChar()

	if gotInput && l.waitForEnter {
		l.waitForEnter = false
		l.UI.ClearSuggestions()
		if r == '\r' {
			return nil
		}
	}

	if gotInput && r == ctrlZ {
		// Ctrl-Z: delegated entirely to the process-control collaborator;
		// the engine never sees it.
		if l.OnSuspend != nil {
			l.OnSuspend()
		}
		return nil
	}

	if gotInput {
		l.inputBuf = append(l.inputBuf, r)
		if len(l.inputBuf) > maxInputBuf-2 {
			// Buffer overflow: reset, no data integrity hazard since all
			// affected input is user-visible partial command (spec.md
			// section 7).
			l.inputBuf = nil
			return nil
		}
	}

	suggestionsWereVisible := l.suggestionsVisible
	l.suggestionsVisible = false

	counterBefore := l.Engine.Counter()

	if !gotInput && l.lastResult == keys.WaitShort {
		if suggestionsWereVisible {
			l.UI.ClearSuggestions()
		}
		l.lastResult = l.Engine.ExecuteTimedOut(string(l.inputBuf))
		l.consumeMatched(counterBefore)
		return nil
	}

	if suggestionsWereVisible && (l.lastResult == keys.Wait || l.lastResult == keys.WaitShort) {
		l.UI.ClearSuggestions()
	}

	l.lastResult = l.Engine.Execute(string(l.inputBuf))
	consumed := l.consumeMatched(counterBefore)

	if l.lastResult == keys.Wait || l.lastResult == keys.WaitShort {
		if l.shouldDisplaySuggestionBox() {
			l.waitForSuggestion = true
		}
		if l.lastResult == keys.WaitShort && string(l.inputBuf) == "\x1b" {
			l.timeout = time.Millisecond
		}
		if consumed > 0 {
			l.UI.ClearSuggestions()
		}
		return nil
	}

	l.timeout = l.Config.TimeoutLen
	l.flushScheduledUpdates()

	l.inputBuf = nil
	l.UI.ClearSuggestions()

	if l.UI.StatusMultiline() {
		l.waitForEnter = true
		l.UI.Redraw()
		return nil
	}

	l.Modes.Post()
	return nil
}

// consumeMatched drops the prefix of inputBuf the engine just consumed,
// tracked via the counter delta the way event_loop.c recomputes
// `vle_keys_counter() - counter`. It returns the number of runes consumed.
func (l *Loop) consumeMatched(counterBefore uint64) int {
	consumed := int(l.Engine.Counter() - counterBefore)
	if consumed <= 0 {
		return 0
	}
	if consumed > len(l.inputBuf) {
		consumed = len(l.inputBuf)
	}
	l.inputBuf = lo.Drop(l.inputBuf, consumed)
	return consumed
}

const ctrlZ = '\x1a'

// waitForChar is the async input sub-loop of spec.md section 4.E step 2,
// grounded on get_char_async_loop(): slices the timeout into small
// intervals so IPC and background-job checks, and the suggestion-box
// delay, can be served while "waiting" for a key.
func (l *Loop) waitForChar() (rune, bool) {
	if r, ok := l.popFeedKey(); ok {
		return r, true
	}

	remaining := l.timeout
	if l.waitForSuggestion && l.Config.SuggestionDelay < remaining {
		remaining = l.Config.SuggestionDelay
	}

	for {
		slice := l.Config.MinTimeoutLen
		if remaining < slice || slice <= 0 {
			slice = remaining
		}
		if slice <= 0 {
			break
		}

		if msgs := l.IPC.Check(); len(msgs) > 0 {
			for _, m := range msgs {
				l.FeedKeys(m)
			}
			if r, ok := l.popFeedKey(); ok {
				return r, true
			}
		}

		if l.Jobs.Check() {
			l.flushScheduledUpdates()
		}

		l.UI.RefreshCursor(int(l.Engine.Modes().Get()))

		r, kind := l.Input.TryGetWChar(slice)
		switch kind {
		case Resize:
			l.Modes.Redraw()
			remaining = l.timeout
			continue
		case Char:
			return r, true
		}

		remaining -= slice
		if remaining <= 0 {
			if l.waitForSuggestion {
				l.waitForSuggestion = false
				l.displaySuggestionBox()
				remaining = l.timeout - l.Config.SuggestionDelay
				if remaining > 0 {
					continue
				}
			}
			break
		}
	}

	return 0, false
}

// flushScheduledUpdates triggers the throttled redraw, mirroring
// process_scheduled_updates()'s own redraw coalescing.
func (l *Loop) flushScheduledUpdates() {
	l.refreshThrottle.Trigger()
}

func (l *Loop) shouldDisplaySuggestionBox() bool {
	mode := l.Engine.Modes().Get()
	switch {
	case l.Config.ShowSuggestNormal && int(mode) == l.NormalMode:
		return true
	case l.Config.ShowSuggestVisual && int(mode) == l.VisualMode:
		return true
	case l.Config.ShowSuggestView && int(mode) == l.ViewMode:
		return true
	}
	return false
}

// displaySuggestionBox enumerates continuations of the current buffer and
// hands them to the UI, mirroring display_suggestion_box(): ESC alone must
// never trigger suggestions since it's a legal prefix of many sequences.
func (l *Loop) displaySuggestionBox() {
	prefix := string(l.inputBuf)
	if !l.shouldDisplaySuggestionBox() || prefix == "\x1b" {
		return
	}

	var items []keys.Suggestion
	l.Engine.Suggest(prefix, func(s keys.Suggestion) {
		items = append(items, s)
	}, !l.Config.SuggestKeys, l.Config.SuggestFoldSubkeys)

	if l.Config.SuggestRegisters && l.Regs != nil {
		isDigitsThenQuote := false
		i := 0
		for i < len(prefix) && prefix[i] >= '0' && prefix[i] <= '9' {
			i++
		}
		if i < len(prefix) && prefix[i] == '"' && i == len(prefix)-1 {
			isDigitsThenQuote = true
		}
		if isDigitsThenQuote {
			l.Regs.SuggestRegisters(func(name rune, description string) {
				items = append(items, keys.Suggestion{LHS: string(name), Description: description})
			}, l.Config.MaxRegFiles)
		}
	}

	if len(items) == 0 {
		return
	}
	l.UI.ShowSuggestions(items)
	l.suggestionsVisible = true
}
