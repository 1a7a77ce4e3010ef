package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/loykin/reflexive/internal/metrics"
)

var (
	// ErrSpawn wraps every reason a monitor could not be started.
	ErrSpawn = errors.New("monitor spawn failed")
	// ErrNotFound is reported when the executable cannot be located.
	ErrNotFound = errors.New("monitor executable not found")
	// ErrExitedEarly is reported when the process dies within the grace period.
	ErrExitedEarly = errors.New("monitor exited during grace period")
)

func errKillTimeout(pid int) error {
	return fmt.Errorf("process %d not reaped after kill", pid)
}

// Spawn starts the monitor described by spec, inheriting stdout/stderr, and
// waits spec.GracePeriod before checking that it is still alive. Any failure
// returns a nil handle and an error wrapping ErrSpawn; callers are expected to
// carry on without a monitor.
func Spawn(ctx context.Context, spec Spec, log *slog.Logger) (*Handle, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		metrics.IncSpawn("error")
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}
	if _, err := exec.LookPath(spec.Command[0]); err != nil {
		metrics.IncSpawn("not_found")
		return nil, fmt.Errorf("%w: %w: %s", ErrSpawn, ErrNotFound, spec.Command[0])
	}

	cmd := spec.BuildCommand()
	stdout, stderr, closers := outputs(spec, log)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		closeAll(closers)
		metrics.IncSpawn("error")
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %v", ErrSpawn, ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	h := newHandle(spec.Name, cmd, closers)
	log.Debug("Monitor process started", "name", spec.Name, "pid", h.PID(), "args", cmd.Args)

	if spec.GracePeriod > 0 {
		timer := time.NewTimer(spec.GracePeriod)
		defer timer.Stop()
		select {
		case <-h.Done():
			metrics.IncSpawn("exited")
			return nil, fmt.Errorf("%w: %w: %v", ErrSpawn, ErrExitedEarly, h.ExitErr())
		case <-ctx.Done():
			_ = h.Terminate(killGrace)
			metrics.IncSpawn("error")
			return nil, fmt.Errorf("%w: %v", ErrSpawn, ctx.Err())
		case <-timer.C:
		}
	}
	if !h.Alive() {
		metrics.IncSpawn("exited")
		return nil, fmt.Errorf("%w: %w: %v", ErrSpawn, ErrExitedEarly, h.ExitErr())
	}
	metrics.IncSpawn("ok")
	return h, nil
}

// outputs wires the inherited streams, tee'd into rotated files when configured.
func outputs(spec Spec, log *slog.Logger) (io.Writer, io.Writer, []io.Closer) {
	var stdout io.Writer = os.Stdout
	var stderr io.Writer = os.Stderr
	if spec.Stdout != nil {
		stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		stderr = spec.Stderr
	}
	outW, errW, err := spec.Log.ProcessWriters(spec.Name)
	if err != nil {
		log.Warn("Monitor log files disabled", "error", err)
		return stdout, stderr, nil
	}
	var closers []io.Closer
	if outW != nil {
		stdout = io.MultiWriter(stdout, outW)
		closers = append(closers, outW)
	}
	if errW != nil {
		stderr = io.MultiWriter(stderr, errW)
		closers = append(closers, errW)
	}
	return stdout, stderr, closers
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
