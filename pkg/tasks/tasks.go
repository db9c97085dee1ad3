// Package tasks implements the BackgroundJobs collaborator named in
// spec.md section 4.F: a non-blocking Check() the event loop polls between
// input waits, backed by the same single-active-task stop/notify pattern
// as lazydocker's own pkg/tasks.TaskManager (a new background job replaces
// whatever is currently running, stopping it first).
package tasks

import "sync"

// Manager runs at most one background job at a time and reports
// completion to the Event Loop via Check.
type Manager struct {
	mu          sync.Mutex
	current     *Task
	anyFinished bool
}

// Task is one unit of background work, e.g. a directory-size scan or a
// long file operation running behind the key-dispatch loop.
type Task struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

// NewManager returns an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start stops whatever job is currently running and launches f in its
// place. f must select on stop and return promptly once it fires.
func (m *Manager) Start(f func(stop <-chan struct{})) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.stoprequest()
	}

	stop := make(chan struct{}, 1)
	notifyStopped := make(chan struct{})
	t := &Task{stop: stop, notifyStopped: notifyStopped}
	m.current = t

	go func() {
		f(stop)
		close(notifyStopped)

		m.mu.Lock()
		if m.current == t {
			m.current = nil
		}
		m.anyFinished = true
		m.mu.Unlock()
	}()
}

func (t *Task) stoprequest() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
	<-t.notifyStopped
}

// Check implements eventloop.BackgroundJobs: non-blocking, reports and
// clears whether any job has finished since the last call.
func (m *Manager) Check() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.anyFinished
	m.anyFinished = false
	return finished
}

// Close stops any running job and waits for it to return, e.g. during
// App.Close teardown.
func (m *Manager) Close() {
	m.mu.Lock()
	t := m.current
	m.current = nil
	m.mu.Unlock()

	if t != nil {
		t.stoprequest()
	}
}
