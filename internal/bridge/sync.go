package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/loykin/reflexive/internal/metrics"
	"github.com/sourcegraph/conc"
)

type syncUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// syncer delivers state updates on a fixed set of workers. The queue is
// bounded; when it is full the incoming update is dropped.
type syncer struct {
	c       *Client
	timeout time.Duration
	queue   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newSyncer(c *Client, queue, workers int, timeout time.Duration) *syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &syncer{
		c:       c,
		timeout: timeout,
		queue:   make(chan []byte, queue),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		s.wg.Go(s.work)
	}
	return s
}

// Sync queues a state update for the monitor and returns immediately.
// Delivery is best effort: encoding errors, a full queue, a closed client
// and request failures are all logged at debug level and discarded.
func (c *Client) Sync(key string, value any) {
	if c == nil {
		return
	}
	c.syncer.enqueue(key, value)
}

func (s *syncer) enqueue(key string, value any) {
	body, err := json.Marshal(syncUpdate{Key: key, Value: value})
	if err != nil {
		metrics.IncSync("failed")
		s.c.log.Debug("State sync skipped: value not encodable", "key", key, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.IncSync("dropped")
		return
	}
	select {
	case s.queue <- body:
	default:
		metrics.IncSync("dropped")
		s.c.log.Debug("State sync dropped: queue full", "key", key)
	}
}

func (s *syncer) work() {
	for body := range s.queue {
		if err := s.post(body); err != nil {
			metrics.IncSync("failed")
			s.c.log.Debug("State sync failed", "error", err)
			continue
		}
		metrics.IncSync("sent")
	}
}

func (s *syncer) post(body []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.baseURL+ClientStatePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// close stops intake, lets the workers drain the queue for up to one sync
// timeout, then aborts whatever is still in flight.
func (s *syncer) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			if r := s.wg.WaitAndRecover(); r != nil {
				s.c.log.Error("State sync worker panicked", "panic", r.Value)
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(s.timeout):
			s.cancel()
			<-done
		}
		s.cancel()
	})
}
