package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestRegisterNew(t *testing.T) {
	r := New[string, string]()
	require.NoError(t, r.RegisterNew("key", "first"))

	err := r.RegisterNew("key", "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key")

	v, _ := r.Get("key")
	assert.Equal(t, "first", v)
}

func TestMustGetPanic(t *testing.T) {
	r := New[string, int]()
	assert.PanicsWithValue(t, "registry: key missing not found", func() {
		r.MustGet("missing")
	})
}

func TestKeysAndValuesSorted(t *testing.T) {
	r := New[string, int]()
	r.Register("c", 3)
	r.Register("a", 1)
	r.Register("b", 2)

	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	assert.Equal(t, []int{1, 2, 3}, r.Values())
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 42)
	r.Delete("key")
	r.Delete("nonexistent")

	assert.False(t, r.Has("key"))
	assert.Equal(t, 0, r.Len())
}

func TestRangeOrderAndEarlyStop(t *testing.T) {
	r := New[string, int]()
	r.Register("b", 2)
	r.Register("a", 1)
	r.Register("c", 3)

	var seen []string
	r.Range(func(k string, _ int) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)

	r.Range(func(k string, v int) bool {
		r.Delete(k)
		r.Register(k+"-copy", v)
		return true
	})

	assert.ElementsMatch(t, []string{"one-copy", "two-copy"}, r.Keys())
}

func TestUpdate(t *testing.T) {
	r := New[string, int]()

	v := r.Update("count", func(old int, exists bool) int {
		assert.False(t, exists)
		return old + 1
	})
	assert.Equal(t, 1, v)

	v = r.Update("count", func(old int, exists bool) int {
		assert.True(t, exists)
		return old + 1
	})
	assert.Equal(t, 2, v)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := New[string, int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetOrCreate("shared", func() int {
				calls.Add(1)
				return 7
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 7, r.MustGet("shared"))
}

func TestConcurrentUpdates(t *testing.T) {
	r := New[string, int]()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Update("n", func(old int, _ bool) int { return old + 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.MustGet("n"))
}
