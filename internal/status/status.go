package status

import (
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Memory is the resident and virtual size of the process in bytes.
type Memory struct {
	RSS uint64 `json:"rss"`
	VMS uint64 `json:"vms"`
}

// Snapshot is a point-in-time view of the host process. It is derived on
// demand and never cached.
type Snapshot struct {
	PID         int            `json:"pid"`
	Uptime      float64        `json:"uptime"`    // seconds
	StartTime   float64        `json:"startTime"` // unix seconds
	Memory      Memory         `json:"memory"`
	CustomState map[string]any `json:"customState"`
	Mode        string         `json:"mode"`
	MonitorPort int            `json:"monitorPort,omitempty"`
	LogCount    int            `json:"logCount"`
}

// Collector produces snapshots for a single process.
type Collector struct {
	pid     int
	started time.Time
	now     func() time.Time
	memory  func(pid int) (Memory, error)
}

// NewCollector records the current pid and time as the process start.
func NewCollector() *Collector {
	return &Collector{
		pid:     os.Getpid(),
		started: time.Now(),
		now:     time.Now,
		memory:  readMemory,
	}
}

// PID returns the observed process id.
func (c *Collector) PID() int { return c.pid }

// StartedAt returns the instant the collector was created.
func (c *Collector) StartedAt() time.Time { return c.started }

// Input carries the parts of a snapshot owned by the caller.
type Input struct {
	State       map[string]any
	Mode        string
	MonitorPort int
	LogCount    int
}

// Snapshot builds a fresh Snapshot. Memory figures are zero when the
// platform cannot report them.
func (c *Collector) Snapshot(in Input) Snapshot {
	mem, err := c.memory(c.pid)
	if err != nil {
		slog.Debug("Failed to read memory info", "pid", c.pid, "error", err)
		mem = Memory{}
	}
	state := in.State
	if state == nil {
		state = map[string]any{}
	}
	return Snapshot{
		PID:         c.pid,
		Uptime:      c.now().Sub(c.started).Seconds(),
		StartTime:   float64(c.started.UnixNano()) / 1e9,
		Memory:      mem,
		CustomState: state,
		Mode:        in.Mode,
		MonitorPort: in.MonitorPort,
		LogCount:    in.LogCount,
	}
}

func readMemory(pid int) (Memory, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return Memory{}, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return Memory{}, err
	}
	return Memory{RSS: info.RSS, VMS: info.VMS}, nil
}
