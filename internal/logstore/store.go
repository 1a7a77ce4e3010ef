package logstore

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/loykin/reflexive/internal/metrics"
)

// DefaultCapacity is the number of entries retained when no capacity is given.
const DefaultCapacity = 500

// ErrInvalidPattern is returned by Search when the pattern does not compile.
var ErrInvalidPattern = errors.New("invalid search pattern")

// Store is a fixed-capacity FIFO of log entries. When full, Append evicts the
// oldest entry. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	entries  []Entry
	startIdx int
	count    int
	now      func() time.Time
}

// New creates a store holding at most capacity entries. capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{entries: make([]Entry, capacity), now: time.Now}
}

// Cap returns the configured capacity.
func (s *Store) Cap() int { return len(s.entries) }

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Append records a new entry. Unknown kinds are stored as KindCustom with the
// original label kept under meta["kind"].
func (s *Store) Append(kind Kind, message string, meta map[string]any) {
	if !kind.Valid() {
		m := make(map[string]any, len(meta)+1)
		for k, v := range meta {
			m[k] = v
		}
		m["kind"] = string(kind)
		meta = m
		kind = KindCustom
	}
	e := Entry{Kind: kind, Message: message, Meta: meta}

	s.mu.Lock()
	e.Timestamp = s.now()
	capacity := len(s.entries)
	evicted := false
	if s.count < capacity {
		s.entries[(s.startIdx+s.count)%capacity] = e
		s.count++
	} else {
		s.entries[s.startIdx] = e
		s.startIdx = (s.startIdx + 1) % capacity
		evicted = true
	}
	s.mu.Unlock()

	metrics.IncLogAppended(string(kind))
	if evicted {
		metrics.IncLogEvicted()
	}
}

// Query returns the most recent count entries in chronological order,
// restricted to kind when kind is non-empty. A label that is not a known kind
// selects the custom entries appended under that label. count <= 0 returns
// every retained entry; a count above the store size returns what is available.
func (s *Store) Query(count int, kind Kind) []Entry {
	all := s.snapshot()
	if kind != "" {
		match := func(e Entry) bool { return e.Kind == kind }
		if !kind.Valid() {
			label := string(kind)
			match = func(e Entry) bool { return e.Kind == KindCustom && e.Meta["kind"] == label }
		}
		filtered := all[:0]
		for _, e := range all {
			if match(e) {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	if count > 0 && count < len(all) {
		all = all[len(all)-count:]
	}
	return all
}

// Search returns the entries whose message matches the regular expression
// pattern, oldest first. An invalid pattern yields ErrInvalidPattern and no
// entries.
func (s *Store) Search(pattern string) ([]Entry, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	var out []Entry
	for _, e := range s.snapshot() {
		if re.MatchString(e.Message) {
			out = append(out, e)
		}
	}
	return out, nil
}

// snapshot copies the retained entries in append order.
func (s *Store) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, s.count)
	capacity := len(s.entries)
	for i := 0; i < s.count; i++ {
		out[i] = s.entries[(s.startIdx+i)%capacity]
	}
	return out
}
