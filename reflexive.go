// Package reflexive embeds an introspection agent in a running application.
// An Instance keeps a bounded log buffer and a key/value state map, and
// either spawns a monitor process, talks to the monitor that launched it, or
// runs standalone.
package reflexive

import (
	"net/http"
	"time"

	"github.com/loykin/reflexive/internal/bridge"
	"github.com/loykin/reflexive/internal/config"
	"github.com/loykin/reflexive/internal/logstore"
	"github.com/loykin/reflexive/internal/metrics"
	"github.com/loykin/reflexive/internal/mode"
	"github.com/loykin/reflexive/internal/process"
	iapi "github.com/loykin/reflexive/internal/server"
	"github.com/loykin/reflexive/internal/status"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type MonitorConfig = config.MonitorConfig

type SpawnConfig = config.SpawnConfig

type BridgeConfig = config.BridgeConfig

type CaptureConfig = config.CaptureConfig

type APIConfig = config.APIConfig

type LogEntry = logstore.Entry

type Kind = logstore.Kind

type Status = status.Snapshot

type Mode = mode.Mode

const (
	KindInfo   = logstore.KindInfo
	KindWarn   = logstore.KindWarn
	KindError  = logstore.KindError
	KindDebug  = logstore.KindDebug
	KindStdout = logstore.KindStdout
	KindStderr = logstore.KindStderr
	KindSystem = logstore.KindSystem
	KindCustom = logstore.KindCustom
)

const (
	ModeChild            = mode.Child
	ModeParentSpawned    = mode.ParentSpawned
	ModeParentStandalone = mode.ParentStandalone
)

var (
	ErrInvalidConfig  = config.ErrInvalidConfig
	ErrInvalidPattern = logstore.ErrInvalidPattern
	ErrSpawn          = process.ErrSpawn
	ErrExitedEarly    = process.ErrExitedEarly
	ErrNetwork        = bridge.ErrNetwork
	ErrTimeout        = bridge.ErrTimeout
	ErrDisabled       = bridge.ErrDisabled
)

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads an optional TOML file and the REFLEXIVE_* environment.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// NewHTTPServer starts an HTTP server exposing the introspection API of inst.
func NewHTTPServer(addr, basePath string, inst *Instance) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, inst)
}

// Handler returns the introspection API of inst for mounting in another server.
func Handler(basePath string, inst *Instance) http.Handler {
	return iapi.NewRouter(inst, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
