package ttlcache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_GetMissOnUnknownKey(t *testing.T) {
	c := New[int](time.Minute, nil)

	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestCache_HitWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string](10*time.Minute, clock.Now)

	c.Set("paris", "48.85,2.35")
	clock.Advance(10 * time.Minute)

	v, ok := c.Get("paris")
	assert.True(t, ok, "an entry exactly TTL old is still fresh")
	assert.Equal(t, "48.85,2.35", v)
}

func TestCache_ExpiredEntryIsAbsentButRetained(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string](10*time.Minute, clock.Now)

	c.Set("paris", "48.85,2.35")
	clock.Advance(10*time.Minute + time.Millisecond)

	_, ok := c.Get("paris")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entries are not swept")
}

func TestCache_SetRestartsTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[int](time.Minute, clock.Now)

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i % 5)
			c.Set(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
