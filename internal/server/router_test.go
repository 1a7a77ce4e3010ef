package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/reflexive/internal/bridge"
	"github.com/loykin/reflexive/internal/logstore"
	"github.com/loykin/reflexive/internal/state"
	"github.com/loykin/reflexive/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInstance wires the real stores behind the Introspector interface.
type fakeInstance struct {
	logs    *logstore.Store
	state   *state.Store
	chat    func(string) (string, error)
	lastMsg string
}

func newFake() *fakeInstance {
	return &fakeInstance{logs: logstore.New(10), state: state.New()}
}

func (f *fakeInstance) Status() status.Snapshot {
	return status.Snapshot{PID: 42, Mode: "parent_standalone", CustomState: f.state.All(), LogCount: f.logs.Len()}
}
func (f *fakeInstance) GetLogs(count int, kind logstore.Kind) []logstore.Entry {
	return f.logs.Query(count, kind)
}
func (f *fakeInstance) SearchLogs(p string) ([]logstore.Entry, error) { return f.logs.Search(p) }
func (f *fakeInstance) GetState(k string) (any, bool)                 { return f.state.Get(k) }
func (f *fakeInstance) GetStateAll() map[string]any                   { return f.state.All() }
func (f *fakeInstance) ChatErr(_ context.Context, m string) (string, error) {
	f.lastMsg = m
	if f.chat == nil {
		return "", bridge.ErrDisabled
	}
	return f.chat(m)
}

func setupRouter(t *testing.T, base string, f *fakeInstance) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(f, base).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	f := newFake()
	f.state.Set("users", 3)
	f.logs.Append(logstore.KindInfo, "boot", nil)
	h := setupRouter(t, "/reflexive/api", f)

	rec := doReq(t, h, http.MethodGet, "/reflexive/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var st status.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 42, st.PID)
	assert.Equal(t, 1, st.LogCount)
	assert.Equal(t, float64(3), st.CustomState["users"])
}

func TestLogsQueryAndFilter(t *testing.T) {
	f := newFake()
	f.logs.Append(logstore.KindInfo, "a", nil)
	f.logs.Append(logstore.KindError, "b", nil)
	f.logs.Append(logstore.KindInfo, "c", nil)
	h := setupRouter(t, "", f)

	var got []logstore.Entry
	rec := doReq(t, h, http.MethodGet, "/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)

	rec = doReq(t, h, http.MethodGet, "/logs?count=1&type=info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Message)

	rec = doReq(t, h, http.MethodGet, "/logs?type=warning", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doReq(t, h, http.MethodGet, "/logs?count=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogsSearch(t *testing.T) {
	f := newFake()
	f.logs.Append(logstore.KindInfo, "user 17 logged in", nil)
	f.logs.Append(logstore.KindInfo, "cache warm", nil)
	h := setupRouter(t, "", f)

	rec := doReq(t, h, http.MethodGet, "/logs/search?pattern=user%20%5Cd%2B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []logstore.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "user 17 logged in", got[0].Message)

	rec = doReq(t, h, http.MethodGet, "/logs/search?pattern=%5B", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid search pattern")

	rec = doReq(t, h, http.MethodGet, "/logs/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestState(t *testing.T) {
	f := newFake()
	f.state.Set("db.pool", map[string]any{"open": 2})
	f.state.Set("nothing", nil)
	h := setupRouter(t, "", f)

	rec := doReq(t, h, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = doReq(t, h, http.MethodGet, "/state/db.pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one StateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "db.pool", one.Key)
	assert.Equal(t, map[string]any{"open": float64(2)}, one.Value)

	rec = doReq(t, h, http.MethodGet, "/state/nothing", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "a stored nil is present")

	rec = doReq(t, h, http.MethodGet, "/state/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat(t *testing.T) {
	f := newFake()
	h := setupRouter(t, "", f)

	rec := doReq(t, h, http.MethodPost, "/chat", ChatReq{Message: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.chat = func(m string) (string, error) { return "pong", nil }
	rec = doReq(t, h, http.MethodPost, "/chat", ChatReq{Message: "ping"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pong", resp.Response)
	assert.Equal(t, "ping", f.lastMsg)

	f.chat = func(string) (string, error) { return "", fmt.Errorf("%w: slow", bridge.ErrTimeout) }
	rec = doReq(t, h, http.MethodPost, "/chat", ChatReq{Message: "x"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	f.chat = func(string) (string, error) { return "", fmt.Errorf("%w: refused", bridge.ErrNetwork) }
	rec = doReq(t, h, http.MethodPost, "/chat", ChatReq{Message: "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/chat", ChatReq{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewServerServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer("127.0.0.1:0", "/api", newFake())
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.NotNil(t, srv.Handler)
}
