// Package mode classifies an instance as a monitor child or a parent.
package mode

import "github.com/loykin/reflexive/internal/config"

// Mode is fixed for the lifetime of an instance.
type Mode string

const (
	Child            Mode = "child"
	ParentSpawned    Mode = "parent_spawned"
	ParentStandalone Mode = "parent_standalone"
)

func (m Mode) String() string { return string(m) }

// IsParent reports whether the instance is the outermost process.
func (m Mode) IsParent() bool { return m == ParentSpawned || m == ParentStandalone }

// Decision is the result of Resolve. For ParentSpawned it is a request: the
// caller still has to start the monitor and may fall back to Standalone.
type Decision struct {
	Mode Mode
	Host string
	Port int
}

// Resolve applies, in order: monitor child environment, spawn request,
// standalone. It reads only c.
func Resolve(c config.Config) Decision {
	if c.ChildMode() {
		return Decision{Mode: Child, Host: c.Monitor.Host, Port: c.Monitor.Port}
	}
	if c.Spawn.Enabled {
		return Decision{Mode: ParentSpawned, Host: c.Monitor.Host, Port: c.Spawn.Port}
	}
	return Decision{Mode: ParentStandalone}
}

// Standalone returns the fallback decision used when a spawn fails.
func (d Decision) Standalone() Decision { return Decision{Mode: ParentStandalone} }
