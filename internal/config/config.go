package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/loykin/reflexive/internal/logger"
)

// Defaults applied by Default and by ApplyDefaults for zero-valued fields.
const (
	DefaultMaxLogs     = 500
	DefaultHost        = "localhost"
	DefaultPort        = 3099
	DefaultGracePeriod = 2 * time.Second
	DefaultStopTimeout = 5 * time.Second
	DefaultChatTimeout = 60 * time.Second
	DefaultSyncTimeout = 1 * time.Second
	DefaultSyncQueue   = 64
	DefaultSyncWorkers = 2
	DefaultAPIBasePath = "/reflexive/api"
)

// Environment variables set by a monitor when it launches the application.
const (
	EnvCLIMode = "REFLEXIVE_CLI_MODE"
	EnvCLIPort = "REFLEXIVE_CLI_PORT"
	EnvCLIHost = "REFLEXIVE_CLI_HOST"
	envPrefix  = "REFLEXIVE"
)

// ErrInvalidConfig marks every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultMonitorCommand is the executable (and fixed args) used to spawn a monitor.
func DefaultMonitorCommand() []string { return []string{"npx", "reflexive"} }

// Config is the resolved configuration of an instance. It is built once at
// startup (Default, Load or by hand) and passed to the instance constructor.
type Config struct {
	MaxLogs int           `toml:"max_logs" mapstructure:"max_logs"`
	Monitor MonitorConfig `toml:"monitor" mapstructure:"monitor"`
	Spawn   SpawnConfig   `toml:"spawn" mapstructure:"spawn"`
	Bridge  BridgeConfig  `toml:"bridge" mapstructure:"bridge"`
	Capture CaptureConfig `toml:"capture" mapstructure:"capture"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
	API     APIConfig     `toml:"api" mapstructure:"api"`
}

// MonitorConfig describes an already-running monitor. CLIMode and Port are
// normally set by the monitor itself when it launches the application.
type MonitorConfig struct {
	CLIMode bool   `toml:"cli_mode" mapstructure:"cli_mode"`
	Port    int    `toml:"port" mapstructure:"port"`
	Host    string `toml:"host" mapstructure:"host"`
}

// SpawnConfig controls launching a monitor subprocess from a parent instance.
type SpawnConfig struct {
	Enabled       bool          `toml:"enabled" mapstructure:"enabled"`
	Command       []string      `toml:"command" mapstructure:"command"` // executable followed by fixed args
	Entry         string        `toml:"entry" mapstructure:"entry"`     // entry point passed positionally
	Write         bool          `toml:"write" mapstructure:"write"`
	Debug         bool          `toml:"debug" mapstructure:"debug"`
	Shell         bool          `toml:"shell" mapstructure:"shell"`
	Port          int           `toml:"port" mapstructure:"port"`
	Env           []string      `toml:"env" mapstructure:"env"` // extra KEY=VALUE pairs on top of the inherited env
	GracePeriod   time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	StopTimeout   time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	HandleSignals bool          `toml:"handle_signals" mapstructure:"handle_signals"`

	// Log tees monitor stdout/stderr into rotating files in addition to the terminal.
	Log logger.FileConfig `toml:"log" mapstructure:"log"`
}

// BridgeConfig tunes the HTTP bridge to the monitor.
type BridgeConfig struct {
	ChatTimeout time.Duration `toml:"chat_timeout" mapstructure:"chat_timeout"`
	SyncTimeout time.Duration `toml:"sync_timeout" mapstructure:"sync_timeout"`
	SyncQueue   int           `toml:"sync_queue" mapstructure:"sync_queue"`
	SyncWorkers int           `toml:"sync_workers" mapstructure:"sync_workers"`
}

// CaptureConfig controls output interception in parent modes. Redirecting
// os.Stdout and os.Stderr is opt-in and lasts until the instance is closed.
type CaptureConfig struct {
	Enabled     bool `toml:"enabled" mapstructure:"enabled"`
	SlogDefault bool `toml:"slog_default" mapstructure:"slog_default"` // also wrap slog.Default()
}

// APIConfig enables the HTTP introspection API when Listen is non-empty.
type APIConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	entry := ""
	if len(os.Args) > 0 {
		entry = os.Args[0]
	}
	return Config{
		MaxLogs: DefaultMaxLogs,
		Monitor: MonitorConfig{Host: DefaultHost},
		Spawn: SpawnConfig{
			Command:       DefaultMonitorCommand(),
			Entry:         entry,
			Write:         true,
			Port:          DefaultPort,
			GracePeriod:   DefaultGracePeriod,
			StopTimeout:   DefaultStopTimeout,
			HandleSignals: true,
		},
		Bridge: BridgeConfig{
			ChatTimeout: DefaultChatTimeout,
			SyncTimeout: DefaultSyncTimeout,
			SyncQueue:   DefaultSyncQueue,
			SyncWorkers: DefaultSyncWorkers,
		},
		Capture: CaptureConfig{},
		Log:     logger.Config{Level: "info", Format: "text"},
		API:     APIConfig{BasePath: DefaultAPIBasePath},
	}
}

// ApplyDefaults fills zero-valued numeric, duration and string fields.
// Booleans are left as they are.
func (c *Config) ApplyDefaults() {
	if c.MaxLogs == 0 {
		c.MaxLogs = DefaultMaxLogs
	}
	if c.Monitor.Host == "" {
		c.Monitor.Host = DefaultHost
	}
	if len(c.Spawn.Command) == 0 {
		c.Spawn.Command = DefaultMonitorCommand()
	}
	if c.Spawn.Port == 0 {
		c.Spawn.Port = DefaultPort
	}
	if c.Spawn.GracePeriod == 0 {
		c.Spawn.GracePeriod = DefaultGracePeriod
	}
	if c.Spawn.StopTimeout == 0 {
		c.Spawn.StopTimeout = DefaultStopTimeout
	}
	if c.Bridge.ChatTimeout == 0 {
		c.Bridge.ChatTimeout = DefaultChatTimeout
	}
	if c.Bridge.SyncTimeout == 0 {
		c.Bridge.SyncTimeout = DefaultSyncTimeout
	}
	if c.Bridge.SyncQueue == 0 {
		c.Bridge.SyncQueue = DefaultSyncQueue
	}
	if c.Bridge.SyncWorkers == 0 {
		c.Bridge.SyncWorkers = DefaultSyncWorkers
	}
	if c.API.BasePath == "" {
		c.API.BasePath = DefaultAPIBasePath
	}
}

// Validate reports every problem found, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}
	if c.MaxLogs < 0 {
		bad("max_logs must be >= 0, got %d", c.MaxLogs)
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		bad("monitor.port out of range: %d", c.Monitor.Port)
	}
	if c.Spawn.Enabled {
		if len(c.Spawn.Command) == 0 || c.Spawn.Command[0] == "" {
			bad("spawn.command is required when spawn is enabled")
		}
		if !validPort(c.Spawn.Port) {
			bad("spawn.port out of range: %d", c.Spawn.Port)
		}
		if c.Spawn.GracePeriod < 0 {
			bad("spawn.grace_period cannot be negative")
		}
		if c.Spawn.StopTimeout <= 0 {
			bad("spawn.stop_timeout must be positive")
		}
	}
	if c.Bridge.ChatTimeout <= 0 {
		bad("bridge.chat_timeout must be positive")
	}
	if c.Bridge.SyncTimeout <= 0 {
		bad("bridge.sync_timeout must be positive")
	}
	if c.Bridge.SyncQueue < 0 {
		bad("bridge.sync_queue must be >= 0")
	}
	if c.Bridge.SyncWorkers <= 0 {
		bad("bridge.sync_workers must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		bad("log: %v", err)
	}
	return errors.Join(errs...)
}

// ChildMode reports whether the configuration describes an instance launched
// by a monitor: the CLI mode flag is set and a port is known.
func (c Config) ChildMode() bool {
	return c.Monitor.CLIMode && c.Monitor.Port > 0
}

func validPort(p int) bool { return p > 0 && p <= 65535 }
