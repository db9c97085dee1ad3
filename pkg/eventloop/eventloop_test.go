package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaizek/vifm-core/pkg/keys"
	"github.com/xaizek/vifm-core/pkg/keys/trie"
)

const testMode = 0

type fakeInput struct {
	queue []rune
}

func (f *fakeInput) push(r rune) { f.queue = append(f.queue, r) }

func (f *fakeInput) TryGetWChar(timeout time.Duration) (rune, InputKind) {
	if len(f.queue) == 0 {
		return 0, NoInput
	}
	r := f.queue[0]
	f.queue = f.queue[1:]
	return r, Char
}

type fakeUI struct {
	redraws        int
	suggestions    []keys.Suggestion
	suggestCleared int
	multiline      bool
}

func (u *fakeUI) Redraw()              { u.redraws++ }
func (u *fakeUI) SetSilent(bool)       {}
func (u *fakeUI) RefreshCursor(int)    {}
func (u *fakeUI) StatusMultiline() bool { return u.multiline }

func (u *fakeUI) ShowSuggestions(items []keys.Suggestion) {
	u.suggestions = items
}

func (u *fakeUI) ClearSuggestions() {
	u.suggestCleared++
	u.suggestions = nil
}

type fakeModes struct {
	pres, periodics, posts, redraws int
}

func (m *fakeModes) Pre()      { m.pres++ }
func (m *fakeModes) Periodic() { m.periodics++ }
func (m *fakeModes) Post()     { m.posts++ }
func (m *fakeModes) Redraw()   { m.redraws++ }

type fakeIPC struct{ msgs []string }

func (f *fakeIPC) Check() []string {
	msgs := f.msgs
	f.msgs = nil
	return msgs
}

type fakeJobs struct{ done bool }

func (f *fakeJobs) Check() bool { return f.done }

func newLoop(e *keys.Engine) (*Loop, *fakeInput, *fakeUI, *fakeModes) {
	in := &fakeInput{}
	ui := &fakeUI{}
	modes := &fakeModes{}
	l := New(e, in, ui, modes, &fakeIPC{}, &fakeJobs{}, nil, Config{
		TimeoutLen:    5 * time.Millisecond,
		MinTimeoutLen: 1 * time.Millisecond,
	})
	return l, in, ui, modes
}

// S1: builtin "gg" fires as soon as fed through FeedKeys, with no waiting
// on the fake input source at all.
func TestStepDispatchesFedKeys(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	calls := 0
	require.NoError(t, e.AddBuiltin(testMode, "gg", trie.FollowedByNone, keys.Config{
		Handler: func(_, _ interface{}) int { calls++; return int(keys.Ok) },
	}))

	l, _, _, modes := newLoop(e)
	defer l.Close()

	l.FeedKeys("g")
	require.NoError(t, l.Step())
	assert.Equal(t, 0, calls)
	assert.Equal(t, keys.Wait, l.lastResult)

	l.FeedKeys("g")
	require.NoError(t, l.Step())
	assert.Equal(t, 1, calls)
	assert.Equal(t, keys.Ok, l.lastResult)
	assert.Equal(t, 1, modes.posts)
}

// After a WaitShort with nothing further arriving within the timeout, the
// next Step must re-dispatch via ExecuteTimedOut rather than waiting
// forever.
func TestStepFiresTimedOutAfterWaitShort(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	var downFired, escFired int
	require.NoError(t, e.AddBuiltin(testMode, "j", trie.FollowedByNone, keys.Config{
		Handler: func(_, _ interface{}) int { downFired++; return int(keys.Ok) },
	}))
	require.NoError(t, e.AddUser(testMode, "jk", "\x1b", keys.AddInfo{}))
	require.NoError(t, e.AddBuiltin(testMode, "\x1b", trie.FollowedByNone, keys.Config{
		Handler: func(_, _ interface{}) int { escFired++; return int(keys.Ok) },
	}))

	l, _, _, _ := newLoop(e)
	defer l.Close()

	l.FeedKeys("j")
	require.NoError(t, l.Step())
	assert.Equal(t, keys.WaitShort, l.lastResult)
	assert.Equal(t, 0, downFired)
	assert.Equal(t, 0, escFired)

	l.FeedKeys("k")
	require.NoError(t, l.Step())
	assert.Equal(t, keys.WaitShort, l.lastResult)
	assert.Equal(t, 0, downFired)
	assert.Equal(t, 0, escFired)

	// No more input queued: waitForChar exhausts the timeout and Step must
	// resolve the pending "jk" via the timed-out entry point, firing the
	// mapping instead of the bare "j" builtin.
	require.NoError(t, l.Step())
	assert.Equal(t, 1, escFired)
	assert.Equal(t, 0, downFired)
}

// Once a terminal result is reached, the input buffer is cleared and any
// visible suggestion box is dismissed.
func TestStepClearsBufferAndSuggestionsOnTerminalResult(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	require.NoError(t, e.AddBuiltin(testMode, "x", trie.FollowedByNone, keys.Config{
		Handler: func(_, _ interface{}) int { return int(keys.Ok) },
	}))

	l, _, ui, _ := newLoop(e)
	defer l.Close()

	l.FeedKeys("x")
	require.NoError(t, l.Step())

	assert.Equal(t, keys.Ok, l.lastResult)
	assert.Empty(t, l.inputBuf)
	assert.True(t, ui.suggestCleared > 0)
}

// A multi-line status bar forces the next Step to swallow one keystroke
// as the "press Enter to continue" gate before resuming normal dispatch.
func TestStepWaitsForEnterOnMultilineStatus(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	require.NoError(t, e.AddBuiltin(testMode, "x", trie.FollowedByNone, keys.Config{
		Handler: func(_, _ interface{}) int { return int(keys.Ok) },
	}))

	l, in, ui, modes := newLoop(e)
	defer l.Close()
	ui.multiline = true

	l.FeedKeys("x")
	require.NoError(t, l.Step())
	assert.True(t, l.waitForEnter)
	assert.Equal(t, 0, modes.posts)

	in.push('\r')
	require.NoError(t, l.Step())
	assert.False(t, l.waitForEnter)
}

// FeedKeys is best-effort: it silently truncates once the queue is full
// rather than blocking or erroring.
func TestFeedKeysDropsOverflow(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	l, _, _, _ := newLoop(e)
	defer l.Close()

	huge := make([]rune, maxFeedQueue+10)
	for i := range huge {
		huge[i] = 'a'
	}
	l.FeedKeys(string(huge))
	assert.Len(t, l.feedQueue, maxFeedQueue)
}

// RunNested must restore the outer buffer/result/timeout state once the
// inner loop exits, so a handler that opens a nested prompt doesn't lose
// the outer dispatch's partial input.
func TestRunNestedRestoresOuterState(t *testing.T) {
	e := keys.NewEngine(1, []keys.ModeFlags{0}, nil)
	l, _, _, _ := newLoop(e)
	defer l.Close()

	l.inputBuf = []rune("g")
	l.lastResult = keys.WaitShort
	l.timeout = 42 * time.Millisecond

	quit := make(chan struct{})
	close(quit)
	require.NoError(t, l.RunNested(quit))

	assert.Equal(t, []rune("g"), l.inputBuf)
	assert.Equal(t, keys.WaitShort, l.lastResult)
	assert.Equal(t, 42*time.Millisecond, l.timeout)
}
