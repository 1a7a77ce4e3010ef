package status

import (
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDerivesUptimeAndState(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := &Collector{
		pid:     42,
		started: start,
		now:     func() time.Time { return start.Add(90 * time.Second) },
		memory:  func(int) (Memory, error) { return Memory{RSS: 10, VMS: 20}, nil },
	}
	snap := c.Snapshot(Input{State: map[string]any{"a": 1}, Mode: "child", MonitorPort: 3099, LogCount: 4})

	assert.Equal(t, 42, snap.PID)
	assert.InDelta(t, 90.0, snap.Uptime, 1e-9)
	assert.InDelta(t, 1_700_000_000.0, snap.StartTime, 1e-6)
	assert.Equal(t, Memory{RSS: 10, VMS: 20}, snap.Memory)
	assert.Equal(t, map[string]any{"a": 1}, snap.CustomState)
	assert.Equal(t, "child", snap.Mode)
	assert.Equal(t, 3099, snap.MonitorPort)
	assert.Equal(t, 4, snap.LogCount)
}

func TestSnapshotMemoryFailureIsZero(t *testing.T) {
	c := &Collector{
		pid:     1,
		started: time.Now(),
		now:     time.Now,
		memory:  func(int) (Memory, error) { return Memory{}, errors.New("unsupported") },
	}
	snap := c.Snapshot(Input{})
	assert.Equal(t, Memory{}, snap.Memory)
	assert.NotNil(t, snap.CustomState)
}

func TestNewCollectorReadsOwnProcess(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("memory info verified on linux/darwin only")
	}
	c := NewCollector()
	require.Equal(t, os.Getpid(), c.PID())
	snap := c.Snapshot(Input{Mode: "parent_standalone"})
	assert.Greater(t, snap.Memory.RSS, uint64(0))
	assert.GreaterOrEqual(t, snap.Uptime, 0.0)
}
