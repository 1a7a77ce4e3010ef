package reflexive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/loykin/reflexive/internal/bridge"
	"github.com/loykin/reflexive/internal/capture"
	"github.com/loykin/reflexive/internal/config"
	"github.com/loykin/reflexive/internal/env"
	"github.com/loykin/reflexive/internal/logger"
	"github.com/loykin/reflexive/internal/logstore"
	"github.com/loykin/reflexive/internal/metrics"
	"github.com/loykin/reflexive/internal/mode"
	"github.com/loykin/reflexive/internal/process"
	"github.com/loykin/reflexive/internal/state"
	"github.com/loykin/reflexive/internal/status"
)

// standaloneChat is returned by Chat when no monitor is connected.
const standaloneChat = "Error: chat requires a monitor; start the application under reflexive or enable spawn"

// Option customizes New.
type Option func(*options)

type options struct {
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// WithLogger replaces the diagnostic logger built from Config.Log.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithOutput sets the streams the spawned monitor and the capture writers
// pass text through to. Defaults are os.Stdout and os.Stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) { o.stdout, o.stderr = stdout, stderr }
}

// Instance is the per-process introspection agent. Create exactly one with
// New and release it with Close. All methods are safe for concurrent use.
type Instance struct {
	cfg       Config
	log       *slog.Logger
	logCloser io.Closer

	logs    *logstore.Store
	state   *state.Store
	status  *status.Collector
	bridge  *bridge.Client
	monitor *process.Handle

	mode        mode.Mode
	monitorPort int

	stdout io.Writer
	stderr io.Writer
	stdio  *capture.Stdio

	mu          sync.Mutex
	lifecycle   State
	closeOnce   sync.Once
	closeErr    error
	stopSignals func()
}

// New validates cfg, resolves the mode and, when spawning is requested,
// starts the monitor. A configuration error is the only failure; a monitor
// that cannot be started leaves the instance in standalone mode.
// ctx bounds the spawn grace period only.
func New(ctx context.Context, cfg Config, opts ...Option) (*Instance, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	i := &Instance{
		cfg:       cfg,
		logs:      logstore.New(cfg.MaxLogs),
		state:     state.New(),
		status:    status.NewCollector(),
		stdout:    o.stdout,
		stderr:    o.stderr,
		lifecycle: StateCreated,
		logCloser: nopCloser{},
	}
	if o.logger != nil {
		i.log = o.logger
	} else {
		l, closer, err := logger.New(cfg.Log, o.stderr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		i.log, i.logCloser = l, closer
	}

	d := mode.Resolve(cfg)
	i.mode, i.monitorPort = d.Mode, d.Port
	i.setState(StateModeResolved)
	i.log.Debug("Mode resolved", "mode", d.Mode)

	switch d.Mode {
	case mode.Child:
		i.connect(d.Host, d.Port)
		i.setState(StateChildReady)
		i.log.Info("Connected to monitor", "host", d.Host, "port", d.Port)
	case mode.ParentSpawned:
		i.setState(StateSpawnPending)
		if err := i.spawn(ctx, d); err != nil {
			i.log.Warn("Failed to start monitor, continuing standalone", "error", err)
			sd := d.Standalone()
			i.mode, i.monitorPort = sd.Mode, sd.Port
			i.setState(StateSpawnFailed)
			i.setState(StateStandaloneReady)
		} else {
			i.setState(StateSpawnedReady)
		}
	default:
		i.setState(StateStandaloneReady)
	}

	if i.mode.IsParent() && cfg.Capture.Enabled {
		i.installCapture()
	}
	return i, nil
}

func (i *Instance) connect(host string, port int) {
	o := bridge.OptionsFrom(i.cfg.Bridge, host, port)
	o.Logger = i.log
	i.bridge = bridge.New(o)
}

func (i *Instance) spawn(ctx context.Context, d mode.Decision) error {
	e := env.New()
	e.FromOS()
	spec := process.Spec{
		Name:        "reflexive-monitor",
		Command:     i.cfg.Spawn.Command,
		Entry:       i.cfg.Spawn.Entry,
		Write:       i.cfg.Spawn.Write,
		Debug:       i.cfg.Spawn.Debug,
		Shell:       i.cfg.Spawn.Shell,
		Port:        d.Port,
		Env:         e.Merge(i.cfg.Spawn.Env),
		Stdout:      i.stdout,
		Stderr:      i.stderr,
		Log:         i.cfg.Spawn.Log,
		GracePeriod: i.cfg.Spawn.GracePeriod,
	}
	h, err := process.Spawn(ctx, spec, i.log)
	if err != nil {
		return err
	}
	i.monitor = h
	metrics.SetMonitorRunning(true)
	go func() {
		<-h.Done()
		metrics.SetMonitorRunning(false)
		i.log.Info("Monitor process exited", "name", h.Name(), "pid", h.PID(),
			"uptime", time.Since(h.StartedAt()).Round(time.Millisecond), "error", h.ExitErr())
	}()

	i.connect(d.Host, d.Port)
	i.log.Info("Reflexive dashboard", "url", dashboardURL(d.Host, d.Port), "pid", h.PID())
	if i.cfg.Spawn.HandleSignals {
		i.stopSignals = i.handleSignals()
	}
	return nil
}

func dashboardURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/reflexive"
}

func (i *Instance) installCapture() {
	origErr := os.Stderr
	stdio, err := capture.InstallStdio(i.logs)
	if err != nil {
		i.log.Warn("Output capture disabled", "error", err)
	}
	i.stdio = stdio
	if i.cfg.Capture.SlogDefault {
		level, _ := logger.ParseLevel(i.cfg.Log.Level)
		next := slog.NewTextHandler(origErr, &slog.HandlerOptions{Level: level})
		capture.InstallSlogDefault(next, i.logs)
	}
}

// Mode returns the mode chosen at construction.
func (i *Instance) Mode() Mode { return i.mode }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lifecycle
}

// MonitorPort returns the port of the connected monitor, or 0.
func (i *Instance) MonitorPort() int { return i.monitorPort }

// Logger returns the instance's diagnostic logger.
func (i *Instance) Logger() *slog.Logger { return i.log }

// Log appends an entry. Labels that are not a known kind are stored as
// KindCustom with the label under meta["kind"]; "warning" is read as warn.
func (i *Instance) Log(kind Kind, message string) { i.LogMeta(kind, message, nil) }

// LogMeta is Log with structured metadata attached to the entry.
func (i *Instance) LogMeta(kind Kind, message string, meta map[string]any) {
	if k, ok := logstore.ParseKind(string(kind)); ok {
		kind = k
	}
	i.logs.Append(kind, message, meta)
}

// GetLogs returns up to count of the most recent entries, oldest first,
// optionally restricted to kind. count <= 0 returns all retained entries.
func (i *Instance) GetLogs(count int, kind Kind) []LogEntry {
	if k, ok := logstore.ParseKind(string(kind)); ok {
		kind = k
	}
	return i.logs.Query(count, kind)
}

// SearchLogs returns the entries whose message matches the regular
// expression pattern. An invalid pattern wraps ErrInvalidPattern.
func (i *Instance) SearchLogs(pattern string) ([]LogEntry, error) {
	return i.logs.Search(pattern)
}

// SetState stores value under key. In child mode the update is also queued
// for the monitor; that delivery never blocks and never fails the call.
func (i *Instance) SetState(key string, value any) {
	i.state.Set(key, value)
	if i.mode == mode.Child {
		i.bridge.Sync(key, value)
	}
}

// GetState returns the value stored under key and whether it exists.
func (i *Instance) GetState(key string) (any, bool) { return i.state.Get(key) }

// GetStateAll returns a copy of every stored key.
func (i *Instance) GetStateAll() map[string]any { return i.state.All() }

// Status returns a fresh snapshot of the process.
func (i *Instance) Status() Status {
	return i.status.Snapshot(status.Input{
		State:       i.state.All(),
		Mode:        string(i.mode),
		MonitorPort: i.monitorPort,
		LogCount:    i.logs.Len(),
	})
}

// Chat sends message to the monitor and returns its answer. It never fails:
// errors, timeouts and the absence of a monitor come back as a string that
// starts with "Error: ".
func (i *Instance) Chat(ctx context.Context, message string) string {
	out, err := i.ChatErr(ctx, message)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return standaloneChat
		}
		return "Error: " + err.Error()
	}
	return out
}

// ChatErr is Chat with the typed error: ErrDisabled without a monitor,
// otherwise ErrTimeout or ErrNetwork.
func (i *Instance) ChatErr(ctx context.Context, message string) (string, error) {
	if i.mode == mode.ParentStandalone {
		metrics.IncChat("disabled")
		return "", ErrDisabled
	}
	return i.bridge.Chat(ctx, message)
}

// Stdout returns a writer that passes text to the instance's stdout and
// records non-blank writes as stdout entries.
func (i *Instance) Stdout() io.Writer { return capture.NewWriter(i.stdout, KindStdout, i.logs) }

// Stderr is Stdout for the error stream.
func (i *Instance) Stderr() io.Writer { return capture.NewWriter(i.stderr, KindStderr, i.logs) }

// SlogHandler wraps next so that records are also kept as log entries.
func (i *Instance) SlogHandler(next slog.Handler) slog.Handler {
	return capture.NewHandler(next, i.logs)
}

// Close releases the instance: pending state syncs are flushed within the
// sync timeout, an owned monitor is terminated, escalating to a kill after
// the stop timeout, and redirected stdio is drained and put back. Only the
// first call has an effect.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.setState(StateTerminating)
		if i.stopSignals != nil {
			i.stopSignals()
		}
		i.bridge.Close()
		if i.monitor != nil {
			i.log.Info("Stopping monitor", "pid", i.monitor.PID())
			if err := i.monitor.Terminate(i.cfg.Spawn.StopTimeout); err != nil {
				i.closeErr = err
				i.log.Warn("Monitor did not stop cleanly", "error", err)
			}
			metrics.SetMonitorRunning(false)
		}
		i.stdio.Restore()
		i.setState(StateTerminated)
		i.log.Debug("Instance closed", "logs", i.logs.Len(), "state_keys", i.state.Len())
		_ = i.logCloser.Close()
	})
	return i.closeErr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
