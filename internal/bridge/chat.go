package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/reflexive/internal/metrics"
)

const dataPrefix = "data: "

type chatRequest struct {
	Message string `json:"message"`
}

// frame is one event of the chat stream. Only "text" frames carry answer content.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Chat posts message to the monitor and blocks until the streamed answer is
// complete or the chat timeout elapses. Text fragments are concatenated in
// arrival order; malformed frames are skipped. An empty stream yields
// NoResponse. Errors wrap ErrTimeout, ErrNetwork or ErrDisabled.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	if c == nil {
		metrics.IncChat("disabled")
		return "", ErrDisabled
	}
	start := time.Now()
	out, err := c.chat(ctx, message)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		result = "timeout"
	default:
		result = "error"
	}
	metrics.ObserveChat(result, time.Since(start).Seconds())
	return out, err
}

func (c *Client) chat(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrNetwork, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: chat: %s", ErrNetwork, resp.Status)
	}

	answer, err := readStream(resp.Body)
	if err != nil {
		return "", classify(err)
	}
	if answer == "" {
		return NoResponse, nil
	}
	return answer, nil
}

// readStream concatenates the content of every text frame. Lines that do not
// start with "data: " and frames that are not valid JSON are ignored.
func readStream(r io.Reader) (string, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var sb strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			appendFrame(&sb, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

func appendFrame(sb *strings.Builder, line string) {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return
	}
	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return
	}
	if f.Type == "text" {
		sb.WriteString(f.Content)
	}
}
