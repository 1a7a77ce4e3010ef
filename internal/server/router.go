package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/reflexive/internal/bridge"
	"github.com/loykin/reflexive/internal/logstore"
	"github.com/loykin/reflexive/internal/status"
)

// Introspector is the read side of an instance plus chat. *reflexive.Instance
// satisfies it.
type Introspector interface {
	Status() status.Snapshot
	GetLogs(count int, kind logstore.Kind) []logstore.Entry
	SearchLogs(pattern string) ([]logstore.Entry, error)
	GetState(key string) (any, bool)
	GetStateAll() map[string]any
	ChatErr(ctx context.Context, message string) (string, error)
}

// Router provides embeddable HTTP handlers exposing an instance.
// Endpoints:
//   GET  {basePath}/status
//   GET  {basePath}/logs          query: count=N (optional), type=kind (optional)
//   GET  {basePath}/logs/search   query: pattern=regexp (required)
//   GET  {basePath}/state
//   GET  {basePath}/state/:key
//   POST {basePath}/chat          body: {"message": "..."}
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	inst     Introspector
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/reflexive/api" results in /reflexive/api/status, ...
func NewRouter(inst Introspector, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{inst: inst, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	group.GET("/logs/search", r.handleSearch)
	group.GET("/state", r.handleStateAll)
	group.GET("/state/:key", r.handleState)
	group.POST("/chat", r.handleChat)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Chat answers can take as long as the chat timeout, so writes are not bounded.
func NewServer(addr, basePath string, inst Introspector) (*http.Server, error) {
	r := NewRouter(inst, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

// StateResp is the body of GET /state/:key.
type StateResp struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ChatReq is the body of POST /chat.
type ChatReq struct {
	Message string `json:"message"`
}

// ChatResp is the body of a successful POST /chat.
type ChatResp struct {
	Response string `json:"response"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.inst.Status())
}

func (r *Router) handleLogs(c *gin.Context) {
	count, err := parseCount(c.Query("count"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	kind := logstore.Kind(c.Query("type"))
	if k, ok := logstore.ParseKind(string(kind)); ok {
		kind = k
	}
	writeJSON(c, http.StatusOK, nonNil(r.inst.GetLogs(count, kind)))
}

func (r *Router) handleSearch(c *gin.Context) {
	pattern, ok := c.GetQuery("pattern")
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "pattern query param required"})
		return
	}
	entries, err := r.inst.SearchLogs(pattern)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, nonNil(entries))
}

func (r *Router) handleStateAll(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.inst.GetStateAll())
}

func (r *Router) handleState(c *gin.Context) {
	key := c.Param("key")
	v, ok := r.inst.GetState(key)
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "state key not found: " + key})
		return
	}
	writeJSON(c, http.StatusOK, StateResp{Key: key, Value: v})
}

func (r *Router) handleChat(c *gin.Context) {
	var req ChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "message required"})
		return
	}
	out, err := r.inst.ChatErr(c.Request.Context(), req.Message)
	if err != nil {
		writeJSON(c, chatStatus(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, ChatResp{Response: out})
}

func chatStatus(err error) int {
	switch {
	case errors.Is(err, bridge.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func nonNil(entries []logstore.Entry) []logstore.Entry {
	if entries == nil {
		return []logstore.Entry{}
	}
	return entries
}
