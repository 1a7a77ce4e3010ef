package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned by GetState for a key that is not stored.
var ErrNotFound = errors.New("not found")

// Client provides HTTP client functionality to query an instance's introspection API
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration // must cover the instance's chat timeout
	Logger  *slog.Logger  // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/reflexive/api",
		Timeout: 90 * time.Second,
	}
}

// New creates a new introspection API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the instance API is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Instance unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	isReachable := resp.StatusCode == http.StatusOK
	c.logger.Debug("Instance reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// Status returns a fresh status snapshot.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.getJSON(ctx, c.baseURL+"/status", &st)
	return st, err
}

// GetLogs returns retained log entries, oldest first.
func (c *Client) GetLogs(ctx context.Context, req LogsRequest) ([]LogEntry, error) {
	q := url.Values{}
	if req.Count > 0 {
		q.Set("count", strconv.Itoa(req.Count))
	}
	if req.Type != "" {
		q.Set("type", req.Type)
	}
	u := c.baseURL + "/logs"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var out []LogEntry
	err := c.getJSON(ctx, u, &out)
	return out, err
}

// SearchLogs returns entries whose message matches the regular expression pattern.
func (c *Client) SearchLogs(ctx context.Context, pattern string) ([]LogEntry, error) {
	u := c.baseURL + "/logs/search?" + url.Values{"pattern": {pattern}}.Encode()
	var out []LogEntry
	err := c.getJSON(ctx, u, &out)
	return out, err
}

// GetStateAll returns every stored state key.
func (c *Client) GetStateAll(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.getJSON(ctx, c.baseURL+"/state", &out)
	return out, err
}

// GetState returns the value stored under key, or an error wrapping ErrNotFound.
func (c *Client) GetState(ctx context.Context, key string) (any, error) {
	var sv StateValue
	if err := c.getJSON(ctx, c.baseURL+"/state/"+url.PathEscape(key), &sv); err != nil {
		return nil, err
	}
	return sv.Value, nil
}

// Chat relays message to the instance's monitor and returns the answer.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	c.logger.Debug("Sending chat", "length", len(message))
	data, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	var out ChatResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/chat", data, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.doRequest(ctx, http.MethodGet, url, nil, out)
}

// doRequest performs a request and decodes a 200 response into out
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "method", method, "url", url, "error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, errorResp.Error)
	}
	return fmt.Errorf("API error: %s", errorResp.Error)
}
