package process

import (
	"io"
	"os/exec"
	"sync"
	"time"
)

// killGrace bounds the wait for reaping after a forced kill.
const killGrace = 200 * time.Millisecond

// signal senders, replaceable in tests
var (
	sendTerm = terminateGroup
	sendKill = killGroup
)

// Handle is a running monitor process started by Spawn. The process is
// reaped by a single goroutine started at spawn time; everything else waits
// on Done.
type Handle struct {
	name    string
	cmd     *exec.Cmd
	started time.Time

	waitDone chan struct{} // closed once cmd.Wait returns
	mu       sync.Mutex
	exitErr  error
	closers  []io.Closer

	terminateOnce sync.Once
	terminateErr  error
}

func newHandle(name string, cmd *exec.Cmd, closers []io.Closer) *Handle {
	h := &Handle{
		name:     name,
		cmd:      cmd,
		started:  time.Now(),
		waitDone: make(chan struct{}),
		closers:  closers,
	}
	go h.wait()
	return h
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	close(h.waitDone)
}

// Name returns the spec name.
func (h *Handle) Name() string { return h.name }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// StartedAt returns when the process was started.
func (h *Handle) StartedAt() time.Time { return h.started }

// Done is closed when the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.waitDone }

// Alive reports whether the process has not exited yet.
func (h *Handle) Alive() bool {
	select {
	case <-h.waitDone:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from Wait, or nil while running or after a clean exit.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Terminate asks the process (group) to stop, waits up to timeout, then
// kills it. Only the first call touches the process; later calls return the
// first result. Terminating an already-exited process is a no-op.
func (h *Handle) Terminate(timeout time.Duration) error {
	h.terminateOnce.Do(func() {
		h.terminateErr = h.terminate(timeout)
	})
	return h.terminateErr
}

func (h *Handle) terminate(timeout time.Duration) error {
	if !h.Alive() {
		return nil
	}
	pid := h.PID()
	if err := sendTerm(pid); err != nil && h.Alive() {
		// Could not signal; go straight to kill.
		_ = sendKill(pid)
	}
	select {
	case <-h.waitDone:
		return nil
	case <-time.After(timeout):
	}
	_ = sendKill(pid)
	select {
	case <-h.waitDone:
		return nil
	case <-time.After(killGrace):
		return errKillTimeout(pid)
	}
}
