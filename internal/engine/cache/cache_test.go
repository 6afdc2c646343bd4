package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-insights/internal/models"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("what is the yield in seattle")
	b := Fingerprint("what is the yield in seattle")
	c := Fingerprint("what is the yield in portland")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestGetMissOnEmpty(t *testing.T) {
	c := New(10)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	c := New(10)
	answer := models.Answer{QueryID: "q1", Content: "seattle yield is 4.2%"}

	c.Put("fp1", answer, time.Minute)

	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, answer, got)
}

func TestTTLExpiry(t *testing.T) {
	c := New(10)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Put("fp1", models.Answer{QueryID: "q1"}, time.Minute)

	current = current.Add(59 * time.Second)
	_, ok := c.Get("fp1")
	assert.True(t, ok, "entry inside TTL must hit")

	current = current.Add(2 * time.Second)
	_, ok = c.Get("fp1")
	assert.False(t, ok, "entry past TTL must miss")

	// Reading the expired key again is still a plain miss, not an error.
	_, ok = c.Get("fp1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUEviction(t *testing.T) {
	const capacity = 5
	c := New(capacity)

	for i := 0; i < capacity; i++ {
		c.Put(fmt.Sprintf("fp%d", i), models.Answer{QueryID: fmt.Sprintf("q%d", i)}, time.Minute)
	}
	require.Equal(t, capacity, c.Len())

	// Touch fp0 so fp1 becomes least recently used.
	_, ok := c.Get("fp0")
	require.True(t, ok)

	c.Put("fp-new", models.Answer{QueryID: "q-new"}, time.Minute)
	assert.Equal(t, capacity, c.Len(), "insert at capacity must not grow the cache")

	_, ok = c.Get("fp1")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = c.Get("fp0")
	assert.True(t, ok, "recently read entry must survive eviction")
	_, ok = c.Get("fp-new")
	assert.True(t, ok)
}

func TestPutReplacesInPlace(t *testing.T) {
	c := New(2)
	c.Put("fp1", models.Answer{Content: "old"}, time.Minute)
	c.Put("fp1", models.Answer{Content: "new"}, time.Minute)

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get("fp1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Content)
}

func TestClear(t *testing.T) {
	c := New(10)
	c.Put("fp1", models.Answer{}, time.Minute)
	c.Put("fp2", models.Answer{}, time.Minute)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(50)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("fp%d", i%60)
				c.Put(key, models.Answer{QueryID: key}, time.Minute)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50, "cache must never exceed capacity")
}
