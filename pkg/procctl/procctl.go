// Package procctl implements the process-level collaborators spec.md keeps
// outside the engine proper: the Ctrl-Z "process stop" handler (section
// 4.F, section 5 "Cancellation") and a long-handler cancellation facility
// (section 5: "long handlers cancel themselves via a separate cancellation
// facility owned by external collaborators (hook + requested flag),
// independent of the engine").
//
// Grounded on lazydocker's pkg/commands/os.go, which uses the same
// jesseduffield/kill package to manage subprocess process groups.
package procctl

import (
	"os/exec"
	"sync"
	"syscall"

	"github.com/jesseduffield/kill"
	"golang.org/x/xerrors"
)

// Controller tracks at most one foreground subprocess (e.g. a ":shell"
// escape) so that Ctrl-Z has something concrete to stop; with nothing
// tracked it suspends vifm-core's own process group instead.
type Controller struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// New returns an idle Controller.
func New() *Controller {
	return &Controller{}
}

// PrepareForChildren sets Setpgid on cmd so its whole process group can be
// killed as one unit, mirroring OSCommand.PrepareForChildren.
func (c *Controller) PrepareForChildren(cmd *exec.Cmd) {
	kill.PrepareForChildren(cmd)
}

// Track registers cmd as the current foreground subprocess.
func (c *Controller) Track(cmd *exec.Cmd) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = cmd
}

// Untrack clears the tracked subprocess once it has exited.
func (c *Controller) Untrack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = nil
}

// Stop implements the event loop's Ctrl-Z handling: kill the tracked
// subprocess's process group if there is one, otherwise suspend our own
// process group so the shell takes over, exactly like vifm's own Ctrl-Z.
func (c *Controller) Stop() error {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd != nil {
		if err := kill.Kill(cmd); err != nil {
			return xerrors.Errorf("killing subprocess group: %w", err)
		}
		return nil
	}
	if err := syscall.Kill(0, syscall.SIGTSTP); err != nil {
		return xerrors.Errorf("suspending process group: %w", err)
	}
	return nil
}

// Canceller is the "hook + requested flag" cancellation facility spec.md's
// design notes call for: independent of the Key Engine, so a long-running
// handler can poll Requested() and a caller (e.g. a prompt) can arm Hook to
// be notified the moment cancellation is requested.
type Canceller struct {
	mu        sync.Mutex
	requested bool
	hook      func()
}

// Request marks cancellation as pending and fires the hook, if any.
func (c *Canceller) Request() {
	c.mu.Lock()
	c.requested = true
	hook := c.hook
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Requested reports whether Request has been called since the last Reset.
func (c *Canceller) Requested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

// Reset clears the pending flag, e.g. when a new long-running handler
// starts.
func (c *Canceller) Reset() {
	c.mu.Lock()
	c.requested = false
	c.mu.Unlock()
}

// SetHook installs the function called synchronously from Request.
func (c *Canceller) SetHook(hook func()) {
	c.mu.Lock()
	c.hook = hook
	c.mu.Unlock()
}
