package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsCompletionOnce(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Check())

	done := make(chan struct{})
	m.Start(func(stop <-chan struct{}) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	require.Eventually(t, m.Check, time.Second, time.Millisecond)
	assert.False(t, m.Check(), "Check must clear the finished flag")
}

func TestStartStopsThePreviousTask(t *testing.T) {
	m := NewManager()

	firstStopped := make(chan struct{})
	m.Start(func(stop <-chan struct{}) {
		<-stop
		close(firstStopped)
	})

	secondRan := make(chan struct{})
	m.Start(func(stop <-chan struct{}) {
		close(secondRan)
	})

	select {
	case <-firstStopped:
	case <-time.After(time.Second):
		t.Fatal("starting a new task must stop the previous one")
	}
	select {
	case <-secondRan:
	case <-time.After(time.Second):
		t.Fatal("second task never ran")
	}
}

func TestCloseStopsRunningTask(t *testing.T) {
	m := NewManager()

	stopped := make(chan struct{})
	m.Start(func(stop <-chan struct{}) {
		<-stop
		close(stopped)
	})

	m.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Close must stop the running task")
	}
}
