// Package app bootstraps vifm-core: it builds the Mode Registry, Key
// Engine, and Event Loop described by spec.md, wires them to a gocui-backed
// terminal, and registers the small set of builtin/selector bindings this
// repository ships as a demonstration of the dispatcher (the file-listing,
// preview, and command-line subsystems that would normally supply a much
// larger binding set are out of scope per spec.md section 1).
//
// Grounded on lazydocker's pkg/app.App: same NewApp/Run/Close/KnownError
// shape, generalized from "bootstrap docker + gui" to "bootstrap key engine
// + event loop + gocui".
package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/xaizek/vifm-core/pkg/eventloop"
	"github.com/xaizek/vifm-core/pkg/ipc"
	"github.com/xaizek/vifm-core/pkg/keys"
	"github.com/xaizek/vifm-core/pkg/keys/trie"
	"github.com/xaizek/vifm-core/pkg/procctl"
	"github.com/xaizek/vifm-core/pkg/tasks"
	"github.com/xaizek/vifm-core/pkg/termio"
	"github.com/xaizek/vifm-core/pkg/utils"
	"github.com/xaizek/vifm-core/pkg/vconfig"
	"github.com/xaizek/vifm-core/pkg/vdiag"
	"github.com/xaizek/vifm-core/pkg/vlog"
)

// Mode identifies one of the fixed set of Mode Registry ids this binary
// registers trees for. Real vifm has many more secondary modes (menus,
// dialogs, ...); this repository's core only needs enough distinct modes to
// exercise every mode-flag combination spec.md section 6 names.
const (
	Normal  = 0
	Visual  = 1
	Cmdline = 2
	View    = 3
	Menu    = 4

	numModes = 5
)

// modeOrder fixes the id<->name correspondence used to read vconfig.UserConfig.Modes,
// since Go map iteration order is not stable.
var modeOrder = [numModes]string{
	Normal:  "normal",
	Visual:  "visual",
	Cmdline: "cmdline",
	View:    "view",
	Menu:    "menu",
}

// App owns every collaborator named in spec.md section 4.F plus the ambient
// stack (config, logging, diagnostics) this expansion adds.
type App struct {
	Config *vconfig.AppConfig
	Log    *logrus.Entry
	Tr     vdiag.Messages

	Engine *keys.Engine
	Jobs   *tasks.Manager
	Proc   *procctl.Controller
	IPC    ipc.Checker

	screen *termio.Screen
	gui    *gocui.Gui
	quit   chan struct{}

	cursorLine int
}

// NewApp bootstraps the engine and every collaborator that doesn't need a
// live terminal: the Mode Registry, Key Engine with its builtin/selector/user
// trees populated from config, background-job manager, process controller,
// and (best-effort) IPC listener. Run starts the terminal-facing half.
func NewApp(config *vconfig.AppConfig) (*App, error) {
	app := &App{
		Config: config,
		Log:    vlog.New(config),
		Tr:     vdiag.New("auto"),
		Jobs:   tasks.NewManager(),
		Proc:   procctl.New(),
	}

	modeFlags := app.resolveModeFlags()
	app.Engine = keys.NewEngine(numModes, modeFlags, func(silent bool) {
		if app.screen != nil {
			app.screen.SetSilent(silent)
		}
	})
	app.Engine.SetReplaceLogger(app.Log)

	if err := app.registerBuiltins(); err != nil {
		return app, errors.Wrap(err, 0)
	}
	if err := app.registerUserMappings(); err != nil {
		return app, errors.Wrap(err, 0)
	}

	sockPath := config.ConfigFilename() + ".ipc"
	if sock, err := ipc.Listen(sockPath); err == nil {
		app.IPC = sock
	} else {
		app.Log.Debugf("ipc disabled: %v", err)
		app.IPC = ipc.Noop{}
	}

	return app, nil
}

func (app *App) resolveModeFlags() []keys.ModeFlags {
	flags := make([]keys.ModeFlags, numModes)
	for id, name := range modeOrder {
		mc := app.Config.UserConfig.Modes[name]
		var f keys.ModeFlags
		if mc.UsesCount {
			f |= keys.UsesCount
		}
		if mc.UsesRegs {
			f |= keys.UsesRegs
		}
		if mc.UsesInput {
			f |= keys.UsesInput
		}
		flags[id] = f
	}
	return flags
}

// registerBuiltins installs the demonstration bindings this repository ships:
// motions as selectors (j/k, gg), a selector-taking command (d), a
// directly-dispatched NIM command (g<count>j, mirroring spec.md's S4), and
// the two vifm quit sequences. Every handler only updates in-process state
// and the status line; the filesystem/viewer subsystems they would drive in
// the full application are out of scope (spec.md section 1).
func (app *App) registerBuiltins() error {
	adds := []struct {
		mode     int
		lhs      string
		followed trie.Followed
		conf     keys.Config
	}{
		{Normal, "j", trie.FollowedByNone, keys.Config{Description: "move down", Handler: app.moveHandler(1)}},
		{Normal, "k", trie.FollowedByNone, keys.Config{Description: "move up", Handler: app.moveHandler(-1)}},
		{Normal, "gg", trie.FollowedByNone, keys.Config{Description: "go to top", Handler: app.gotoHandler(0)}},
		{Normal, "G", trie.FollowedByNone, keys.Config{Description: "go to bottom/line", Handler: app.gotoLastHandler()}},
		{Normal, "gj", trie.FollowedByNone, keys.Config{NIM: true, Description: "go to line (NIM)", Handler: app.gotoNIMHandler()}},
		{Normal, "d", trie.FollowedBySelector, keys.Config{Description: "delete", Handler: app.deleteHandler()}},
		{Normal, "ZQ", trie.FollowedByNone, keys.Config{Description: "quit without saving", Handler: app.quitHandler()}},
		{Normal, "ZZ", trie.FollowedByNone, keys.Config{Description: "save and quit", Handler: app.quitHandler()}},
	}
	for _, a := range adds {
		if err := app.Engine.AddBuiltin(a.mode, a.lhs, a.followed, a.conf); err != nil {
			return err
		}
	}

	selectors := []struct {
		mode int
		lhs  string
		conf keys.Config
	}{
		{Normal, "j", keys.Config{Description: "down"}},
		{Normal, "k", keys.Config{Description: "up"}},
		{Normal, "gg", keys.Config{Description: "top"}},
	}
	for _, s := range selectors {
		if err := app.Engine.AddSelector(s.mode, s.lhs, s.conf); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) registerUserMappings() error {
	for id, name := range modeOrder {
		for lhs, rhs := range app.Config.UserConfig.Modes[name].Mappings {
			if err := app.Engine.AddUser(id, lhs, rhs, keys.AddInfo{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (app *App) moveHandler(delta int) keys.Handler {
	return func(ki, _ interface{}) int {
		info := ki.(keys.Info)
		n := 1
		if info.Count != keys.NoCountGiven {
			n = info.Count
		}
		app.cursorLine += delta * n
		app.setStatus(fmt.Sprintf("line %d", app.cursorLine))
		return int(keys.Ok)
	}
}

func (app *App) gotoHandler(line int) keys.Handler {
	return func(_, _ interface{}) int {
		app.cursorLine = line
		app.setStatus(fmt.Sprintf("line %d", app.cursorLine))
		return int(keys.Ok)
	}
}

func (app *App) gotoLastHandler() keys.Handler {
	return func(ki, _ interface{}) int {
		info := ki.(keys.Info)
		if info.Count != keys.NoCountGiven {
			app.cursorLine = info.Count
		}
		app.setStatus(fmt.Sprintf("line %d", app.cursorLine))
		return int(keys.Ok)
	}
}

func (app *App) gotoNIMHandler() keys.Handler {
	return func(ki, _ interface{}) int {
		info := ki.(keys.Info)
		if info.Count != keys.NoCountGiven {
			app.cursorLine = info.Count
		}
		app.setStatus(fmt.Sprintf("line %d", app.cursorLine))
		return int(keys.Ok)
	}
}

func (app *App) deleteHandler() keys.Handler {
	return func(ki, _ interface{}) int {
		info := ki.(keys.Info)
		n := 1
		if info.Count != keys.NoCountGiven {
			n = info.Count
		}
		app.setStatus(fmt.Sprintf("deleted %d line(s) from %d", n, app.cursorLine))
		return int(keys.Ok)
	}
}

func (app *App) quitHandler() keys.Handler {
	return func(_, _ interface{}) int {
		app.requestQuit()
		return int(keys.Ok)
	}
}

func (app *App) requestQuit() {
	if app.quit != nil {
		select {
		case <-app.quit:
		default:
			close(app.quit)
		}
	}
}

func (app *App) setStatus(msg string) {
	if app.screen != nil {
		app.screen.SetStatus(msg)
	}
}

const (
	inputViewName       = "input"
	statusViewName      = "status"
	suggestionsViewName = "suggestions"
)

// Run creates the terminal (gocui), wires the remaining spec.md section 4.F
// collaborators around the already-built engine, and drives the Event Loop
// until a quit sequence (ZQ/ZZ) fires or the terminal goes away.
func (app *App) Run() error {
	if err := waitForTerminalSpace(); err != nil {
		return err
	}

	g, err := gocui.NewGui(gocui.OutputTrue, false, gocui.NORMAL, false, map[rune]string{})
	if err != nil {
		return errors.Wrap(err, 0)
	}
	app.gui = g
	defer g.Close()

	deadlock.Opts.Disable = !app.Config.Debug
	deadlock.Opts.DeadlockTimeout = 10 * time.Second
	// If the deadlock detector wants to report a deadlock among the
	// engine/event-loop mutexes, the terminal must be closed first so the
	// report is actually readable.
	deadlock.Opts.LogBuf = vlog.DeadlockSink(func() { g.Close() })

	g.SetManager(gocui.ManagerFunc(app.layout))
	if err := app.createViews(g); err != nil {
		return errors.Wrap(err, 0)
	}

	app.screen = termio.NewScreen(g)
	input, err := termio.NewInput(g, inputViewName)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if v, err := g.View(inputViewName); err == nil {
		if _, err := g.SetCurrentView(v.Name()); err != nil {
			return errors.Wrap(err, 0)
		}
	}

	cfg := app.loopConfig()
	loop := eventloop.New(app.Engine, input, app.screen, noopModeHooks{redraw: app.screen.Redraw}, app.IPC, app.Jobs, noopRegisters{}, cfg)
	defer loop.Close()
	loop.NormalMode, loop.VisualMode, loop.ViewMode = Normal, Visual, View
	loop.OnSuspend = func() {
		if err := app.Proc.Stop(); err != nil {
			app.Log.Warnf("suspend failed: %v", err)
		}
	}

	for mode := 0; mode < numModes; mode++ {
		mode := mode
		app.Engine.SetDefaultHandler(mode, func(c rune) keys.Result {
			app.screen.SetError(app.Tr.UnknownCommand)
			return keys.Ok
		})
	}

	app.quit = make(chan struct{})

	guiErrCh := make(chan error, 1)
	go func() {
		guiErrCh <- g.MainLoop()
	}()

	runErr := loop.Run(app.quit)
	if runErr == nil {
		select {
		case guiErr := <-guiErrCh:
			if guiErr != nil && guiErr != gocui.ErrQuit {
				runErr = guiErr
			}
		default:
		}
	}
	return runErr
}

func (app *App) loopConfig() eventloop.Config {
	uc := app.Config.UserConfig
	return eventloop.Config{
		TimeoutLen:         time.Duration(uc.Engine.TimeoutLenMS) * time.Millisecond,
		MinTimeoutLen:      time.Duration(uc.Engine.MinTimeoutLenMS) * time.Millisecond,
		SuggestionDelay:    time.Duration(uc.Suggestion.DelayMS) * time.Millisecond,
		ShowSuggestNormal:  uc.Suggestion.Normal,
		ShowSuggestVisual:  uc.Suggestion.Visual,
		ShowSuggestView:    uc.Suggestion.View,
		SuggestKeys:        uc.Suggestion.Keys,
		SuggestFoldSubkeys: uc.Suggestion.FoldSubkeys,
		SuggestRegisters:   uc.Suggestion.Registers,
		MaxRegFiles:        uc.Suggestion.MaxRegFiles,
	}
}

func (app *App) createViews(g *gocui.Gui) error {
	width, height := g.Size()
	if _, err := g.SetView(statusViewName, 0, height-2, width-1, height, 0); err != nil && err.Error() != "unknown view" {
		return err
	}
	if _, err := g.SetView(suggestionsViewName, 0, 0, width-1, height-3, 0); err != nil && err.Error() != "unknown view" {
		return err
	}
	v, err := g.SetView(inputViewName, 0, height-1, width-1, height+1, 0)
	if err != nil && err.Error() != "unknown view" {
		return err
	}
	if v != nil {
		v.Editable = true
		v.Frame = false
	}
	return nil
}

// layout re-lays the three views out on every gocui layout pass (resize
// included) by calling createViews, which creates any view that does not
// exist yet and repositions the rest.
func (app *App) layout(g *gocui.Gui) error {
	return app.createViews(g)
}

// noopModeHooks stands in for the Mode Pre/Periodic/Post lifecycle named in
// spec.md section 4.F: the modes that would drive them (normal/visual
// cursor bookkeeping, preview refresh, ...) are out of scope, so only the
// redraw hook does anything real.
type noopModeHooks struct {
	redraw func()
}

func (noopModeHooks) Pre()      {}
func (noopModeHooks) Periodic() {}
func (noopModeHooks) Post()     {}
func (h noopModeHooks) Redraw() {
	if h.redraw != nil {
		h.redraw()
	}
}

// noopRegisters stands in for the Registers collaborator: register storage
// is out of scope (spec.md section 1), so no register is ever suggested.
type noopRegisters struct{}

func (noopRegisters) SuggestRegisters(func(name rune, description string), int) {}

func waitForTerminalSpace() error {
	width, height, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	if width > 0 && height > 0 {
		return nil
	}
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	select {
	case <-winch:
		return nil
	case <-time.After(time.Second):
		return errors.New("there is no available terminal space")
	}
}

// Close tears down every resource App owns: the background-job manager and
// the IPC listener (the gocui terminal is closed by Run itself via defer).
func (app *App) Close() error {
	closers := []io.Closer{jobsCloser{app.Jobs}}
	if app.IPC != nil {
		closers = append(closers, app.IPC)
	}
	return utils.CloseMany(closers)
}

// jobsCloser adapts tasks.Manager's void Close to io.Closer.
type jobsCloser struct{ m *tasks.Manager }

func (j jobsCloser) Close() error { j.m.Close(); return nil }

// KnownError takes an error and tells us whether it's an error we know
// about and can print a short, friendly message for rather than a stack
// trace, the same table-driven approach as lazydocker's own App.KnownError.
func (app *App) KnownError(err error) (string, bool) {
	msg := err.Error()

	mappings := []struct {
		contains string
		message  string
	}{
		{"there is no available terminal space", "Your terminal window is too small for vifm-core; resize it and try again."},
		{"listening on ipc socket", "Could not start the IPC listener; another instance may already be running."},
	}

	for _, m := range mappings {
		if strings.Contains(msg, m.contains) {
			return m.message, true
		}
	}
	return "", false
}
