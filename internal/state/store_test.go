package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastWriteWins(t *testing.T) {
	s := New()
	s.Set("counter", 1)
	s.Set("counter", "two")

	v, ok := s.Get("counter")
	require.True(t, ok)
	assert.Equal(t, "two", v)
	assert.Equal(t, 1, s.Len())
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := New()
	v, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, v)

	// nil is a legitimate stored value, distinct from absence
	s.Set("empty", nil)
	v, ok = s.Get("empty")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDottedKeysAreFlat(t *testing.T) {
	s := New()
	s.Set("records.processed", 10)
	s.Set("records", map[string]any{"failed": 2})

	v, ok := s.Get("records.processed")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = s.Get("records.failed")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestAllReturnsCopy(t *testing.T) {
	s := New()
	s.Set("a", 1)
	all := s.All()
	all["b"] = 2
	delete(all, "a")

	_, ok := s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("a")
	assert.True(t, ok)
}

func TestConcurrentSet(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Set(fmt.Sprintf("k%d", i), g)
				_ = s.All()
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
