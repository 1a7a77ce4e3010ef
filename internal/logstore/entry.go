package logstore

import "time"

// Kind tags a log entry with its origin.
type Kind string

const (
	KindInfo   Kind = "info"
	KindWarn   Kind = "warn"
	KindError  Kind = "error"
	KindDebug  Kind = "debug"
	KindStdout Kind = "stdout"
	KindStderr Kind = "stderr"
	KindSystem Kind = "system"
	KindCustom Kind = "custom"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindWarn, KindError, KindDebug, KindStdout, KindStderr, KindSystem, KindCustom:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

// ParseKind maps a free-form label to a Kind. "warning" is accepted as warn.
// The second return value is false when the label is not a known kind.
func ParseKind(s string) (Kind, bool) {
	if s == "warning" {
		return KindWarn, true
	}
	k := Kind(s)
	return k, k.Valid()
}

// Entry is a single captured log line. Entries are never modified after Append.
type Entry struct {
	Kind      Kind           `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta"`
}
