package reflexive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const captureChildEnv = "REFLEXIVE_TEST_CAPTURE_CHILD"

// joinMessages flattens entries of one kind so that chunked pipe reads compare
// the same as line-by-line writes.
func joinMessages(inst *Instance, kind Kind) string {
	var b strings.Builder
	for _, e := range inst.GetLogs(0, kind) {
		b.WriteString(strings.ReplaceAll(e.Message, "\n", ","))
		b.WriteString(",")
	}
	return b.String()
}

// TestCaptureChildProcess is the body run by TestStdioCaptureSurvivesExit in
// a fresh process, since it redirects the real os.Stdout and os.Stderr.
func TestCaptureChildProcess(t *testing.T) {
	if os.Getenv(captureChildEnv) != "1" {
		t.Skip("runs only as a child of TestStdioCaptureSurvivesExit")
	}
	cfg := DefaultConfig()
	cfg.Capture.Enabled = true
	cfg.Spawn.HandleSignals = false
	inst, err := New(context.Background(), cfg, quietLogger())
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "new:", err)
		os.Exit(2)
	}
	for i := 0; i < 5; i++ {
		fmt.Printf("line-%d\n", i)
	}
	_, _ = fmt.Fprintln(os.Stderr, "err-line")
	_ = inst.Close()

	// os.Stdout is the original file again
	fmt.Printf("stored-stdout=%s\n", joinMessages(inst, KindStdout))
	fmt.Printf("stored-stderr=%s\n", joinMessages(inst, KindStderr))
	os.Exit(0)
}

func TestStdioCaptureSurvivesExit(t *testing.T) {
	requireUnix(t)
	for run := 0; run < 5; run++ {
		cmd := exec.Command(os.Args[0], "-test.run=^TestCaptureChildProcess$")
		cmd.Env = append(os.Environ(), captureChildEnv+"=1")
		var stdout, stderr bytes.Buffer
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
		require.NoError(t, cmd.Run(), "child stderr: %s", stderr.String())

		out := stdout.String()
		for i := 0; i < 5; i++ {
			assert.Contains(t, out, fmt.Sprintf("line-%d\n", i), "run %d", run)
		}
		assert.Contains(t, stderr.String(), "err-line\n", "run %d", run)

		assert.Contains(t, out, "stored-stdout=line-0,line-1,line-2,line-3,line-4,\n", "run %d", run)
		assert.Contains(t, out, "stored-stderr=err-line,\n", "run %d", run)
	}
}

func TestCaptureIsOptIn(t *testing.T) {
	assert.False(t, DefaultConfig().Capture.Enabled)
	before := os.Stdout
	inst := newInstance(t, DefaultConfig())
	assert.Same(t, before, os.Stdout)
	_ = inst.Close()
}
