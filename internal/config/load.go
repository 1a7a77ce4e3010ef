package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from defaults, an optional TOML file and the process
// environment, in increasing precedence. path may be empty.
//
// The monitor contract variables REFLEXIVE_CLI_MODE, REFLEXIVE_CLI_PORT and
// REFLEXIVE_CLI_HOST map to the monitor section. Every other key can be
// overridden as REFLEXIVE_<SECTION>_<KEY>, e.g. REFLEXIVE_SPAWN_ENABLED.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("monitor.cli_mode", EnvCLIMode)
	_ = v.BindEnv("monitor.port", EnvCLIPort)
	_ = v.BindEnv("monitor.host", EnvCLIHost)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// setDefaults registers every key so that AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("max_logs", d.MaxLogs)

	v.SetDefault("monitor.cli_mode", d.Monitor.CLIMode)
	v.SetDefault("monitor.port", d.Monitor.Port)
	v.SetDefault("monitor.host", d.Monitor.Host)

	v.SetDefault("spawn.enabled", d.Spawn.Enabled)
	v.SetDefault("spawn.command", d.Spawn.Command)
	v.SetDefault("spawn.entry", d.Spawn.Entry)
	v.SetDefault("spawn.write", d.Spawn.Write)
	v.SetDefault("spawn.debug", d.Spawn.Debug)
	v.SetDefault("spawn.shell", d.Spawn.Shell)
	v.SetDefault("spawn.port", d.Spawn.Port)
	v.SetDefault("spawn.env", d.Spawn.Env)
	v.SetDefault("spawn.grace_period", d.Spawn.GracePeriod)
	v.SetDefault("spawn.stop_timeout", d.Spawn.StopTimeout)
	v.SetDefault("spawn.handle_signals", d.Spawn.HandleSignals)
	v.SetDefault("spawn.log.dir", d.Spawn.Log.Dir)
	v.SetDefault("spawn.log.stdout", d.Spawn.Log.StdoutPath)
	v.SetDefault("spawn.log.stderr", d.Spawn.Log.StderrPath)

	v.SetDefault("bridge.chat_timeout", d.Bridge.ChatTimeout)
	v.SetDefault("bridge.sync_timeout", d.Bridge.SyncTimeout)
	v.SetDefault("bridge.sync_queue", d.Bridge.SyncQueue)
	v.SetDefault("bridge.sync_workers", d.Bridge.SyncWorkers)

	v.SetDefault("capture.enabled", d.Capture.Enabled)
	v.SetDefault("capture.slog_default", d.Capture.SlogDefault)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.color", d.Log.Color)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", d.Log.File.Compress)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.base_path", d.API.BasePath)
}
