package sync

import (
	"fmt"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBasics(t *testing.T) {
	m := NewMap[string, int]()

	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 2)
	assert.False(t, loaded)
	assert.Equal(t, 2, actual)
	assert.Equal(t, 2, m.Len())
	assert.ElementsMatch(t, []int{1, 2}, m.Values())

	v, ok = m.LoadAndDelete("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = m.LoadAndDelete("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMapRangeStops(t *testing.T) {
	m := NewMap[int, int]()
	for i := range 10 {
		m.Store(i, i)
	}

	seen := 0
	m.Range(func(int, int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestMapConcurrentLoadOrStore(t *testing.T) {
	m := NewMap[string, int]()

	var wg gosync.WaitGroup
	var mu gosync.Mutex
	winners := 0
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, loaded := m.LoadOrStore("k", i); !loaded {
				mu.Lock()
				winners++
				mu.Unlock()
			}
			m.Store(fmt.Sprintf("k%d", i), i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 51, m.Len())
}
