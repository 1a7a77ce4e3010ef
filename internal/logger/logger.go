package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the SDK's own diagnostic logger.
type Config struct {
	Level  string     `toml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string     `toml:"format" mapstructure:"format"` // text or json
	Color  bool       `toml:"color" mapstructure:"color"`   // colored level prefix (text only)
	File   FileConfig `toml:"file" mapstructure:"file"`
}

// FileConfig describes rotated log files. Path is used for a single log
// stream; Dir/StdoutPath/StderrPath are used for a process's two output
// streams, where empty explicit paths fall back to Dir/<name>.stdout.log and
// Dir/<name>.stderr.log. Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	Dir        string `toml:"dir" mapstructure:"dir"`
	StdoutPath string `toml:"stdout" mapstructure:"stdout"`
	StderrPath string `toml:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Validate checks level and format names.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// ParseLevel maps a level name to slog.Level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger that writes to console, and additionally to
// c.File.Path when set. The returned closer releases the file, if any.
func New(c Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	w := console
	var closer io.Closer = nopCloser{}
	if fw := c.File.Writer(); fw != nil {
		if w != nil {
			w = io.MultiWriter(console, fw)
		} else {
			w = fw
		}
		closer = fw
	}
	if w == nil {
		w = io.Discard
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch {
	case strings.EqualFold(c.Format, "json"):
		h = slog.NewJSONHandler(w, opts)
	case c.Color:
		h = NewColorTextHandler(w, opts, true)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("component", "reflexive"), closer, nil
}

// Writer returns a rotating writer for Path, or nil when Path is empty.
func (c FileConfig) Writer() io.WriteCloser {
	if c.Path == "" {
		return nil
	}
	return c.rotating(c.Path)
}

// ProcessWriters returns io.WriteClosers for stdout and stderr for the given
// process name. Either may be nil when neither an explicit path nor Dir is set.
func (c FileConfig) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	if name == "" && c.Dir != "" && (c.StdoutPath == "" || c.StderrPath == "") {
		return nil, nil, fmt.Errorf("process name required to derive log file names")
	}
	stdout := c.StdoutPath
	stderr := c.StderrPath
	if stdout == "" && c.Dir != "" {
		stdout = filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.Dir != "" {
		stderr = filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = c.rotating(stdout)
	}
	if stderr != "" {
		errW = c.rotating(stderr)
	}
	return outW, errW, nil
}

func (c FileConfig) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
