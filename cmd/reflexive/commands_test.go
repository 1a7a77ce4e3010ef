package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loykin/reflexive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func quietConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "reflexive.toml")
	require.NoError(t, os.WriteFile(p, []byte("[capture]\nenabled = false\n[log]\nlevel = \"error\"\n"), 0o600))
	return p
}

func newInspectTarget(t *testing.T) (*reflexive.Instance, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := reflexive.DefaultConfig()
	cfg.Capture.Enabled = false
	inst, err := reflexive.New(context.Background(), cfg,
		reflexive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	srv := httptest.NewServer(reflexive.Handler("/reflexive/api", inst))
	t.Cleanup(srv.Close)
	return inst, srv.URL + "/reflexive/api"
}

func TestHelpMentionsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "reflexive")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "inspect")
}

func TestRunFixedIterations(t *testing.T) {
	out, err := execute(t, "run", "--config", quietConfig(t), "--iterations", "3", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "reflexive demo (parent_standalone)")
	assert.Contains(t, out, "Iteration 3: counter = 3")
	assert.Contains(t, out, "Final counter: 3")
	assert.Contains(t, out, "Error: ", "standalone chat answers with an error string")
}

func TestRunBadConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, reflexive.ErrInvalidConfig)
}

func TestInspectStatusAndState(t *testing.T) {
	inst, url := newInspectTarget(t)
	inst.SetState("counter", 7)

	out, err := execute(t, "inspect", "status", "--api-url", url)
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "parent_standalone", st["mode"])

	out, err = execute(t, "inspect", "state", "counter", "--api-url", url)
	require.NoError(t, err)
	assert.Equal(t, "7", strings.TrimSpace(out))

	out, err = execute(t, "inspect", "state", "--api-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, `"counter": 7`)

	_, err = execute(t, "inspect", "state", "missing", "--api-url", url)
	require.Error(t, err)
}

func TestInspectLogsAndSearch(t *testing.T) {
	inst, url := newInspectTarget(t)
	inst.Log(reflexive.KindInfo, "boot complete")
	inst.Log(reflexive.KindError, "upstream timeout after 30s")

	out, err := execute(t, "inspect", "logs", "--type", "error", "--api-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "[error] upstream timeout after 30s")
	assert.NotContains(t, out, "boot complete")

	out, err = execute(t, "inspect", "search", `boot|timeout`, "--api-url", url)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	_, err = execute(t, "inspect", "search", "(", "--api-url", url)
	require.Error(t, err)
}

func TestInspectChatStandalone(t *testing.T) {
	_, url := newInspectTarget(t)
	_, err := execute(t, "inspect", "chat", "hello", "there", "--api-url", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no monitor connected")
}
