// Package bridge is the HTTP client an instance uses to reach a running
// monitor: a streamed chat round trip and best-effort state sync.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/loykin/reflexive/internal/config"
)

var (
	// ErrNetwork marks a failed request or a non-2xx monitor response.
	ErrNetwork = errors.New("monitor request failed")
	// ErrTimeout marks a chat that did not complete within the chat timeout.
	ErrTimeout = errors.New("monitor request timed out")
	// ErrDisabled is returned by a nil Client, i.e. when no monitor is reachable.
	ErrDisabled = errors.New("no monitor connected")
)

// Monitor endpoints.
const (
	ChatPath        = "/chat"
	ClientStatePath = "/client-state"
)

// NoResponse is the answer returned for a stream that carried no text.
const NoResponse = "No response"

// Options configures a Client.
type Options struct {
	Host        string
	Port        int
	ChatTimeout time.Duration
	SyncTimeout time.Duration
	SyncQueue   int
	SyncWorkers int
	HTTPClient  *http.Client // optional; defaults to a client without a global timeout
	Logger      *slog.Logger
}

// OptionsFrom derives bridge options from the bridge section of a Config.
func OptionsFrom(b config.BridgeConfig, host string, port int) Options {
	return Options{
		Host:        host,
		Port:        port,
		ChatTimeout: b.ChatTimeout,
		SyncTimeout: b.SyncTimeout,
		SyncQueue:   b.SyncQueue,
		SyncWorkers: b.SyncWorkers,
	}
}

// Client talks to one monitor. A nil *Client is valid and behaves as a
// disabled bridge: Chat returns ErrDisabled and Sync does nothing.
type Client struct {
	baseURL     string
	chatTimeout time.Duration
	http        *http.Client
	log         *slog.Logger
	syncer      *syncer
}

// New returns a Client for http://host:port and starts its sync workers.
// Call Close to stop them.
func New(o Options) *Client {
	if o.Host == "" {
		o.Host = config.DefaultHost
	}
	if o.ChatTimeout <= 0 {
		o.ChatTimeout = config.DefaultChatTimeout
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = config.DefaultSyncTimeout
	}
	if o.SyncWorkers <= 0 {
		o.SyncWorkers = config.DefaultSyncWorkers
	}
	if o.SyncQueue < 0 {
		o.SyncQueue = 0
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	c := &Client{
		baseURL:     "http://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		chatTimeout: o.ChatTimeout,
		http:        o.HTTPClient,
		log:         o.Logger,
	}
	c.syncer = newSyncer(c, o.SyncQueue, o.SyncWorkers, o.SyncTimeout)
	return c
}

// BaseURL returns the monitor root URL.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Close stops accepting sync updates and waits, up to the sync timeout, for
// queued ones to drain. It is safe to call more than once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.syncer.close()
}

// classify turns a transport error into ErrTimeout or ErrNetwork.
func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
