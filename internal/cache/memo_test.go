package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2013, 9, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingLoad(calls *int32, values ...string) LoadFunc {
	return func(context.Context) (any, error) {
		n := atomic.AddInt32(calls, 1)
		idx := int(n) - 1
		if idx >= len(values) {
			idx = len(values) - 1
		}
		return values[idx], nil
	}
}

func TestMemo_ColdStartLoads(t *testing.T) {
	clock := newFakeClock()
	memo := New(600*time.Second, WithClock(clock.Now))
	var calls int32

	_, ok := memo.Entry("presence")
	assert.False(t, ok)

	got, err := memo.Get(context.Background(), "presence", countingLoad(&calls, "v1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, int32(1), calls)

	entry, ok := memo.Entry("presence")
	require.True(t, ok)
	assert.Equal(t, clock.Now(), entry.Timestamp)
}

func TestMemo_ServesCachedValueWithinTTL(t *testing.T) {
	clock := newFakeClock()
	memo := New(600*time.Second, WithClock(clock.Now))
	var calls int32
	load := countingLoad(&calls, "v1", "v2")
	ctx := context.Background()

	_, err := memo.Get(ctx, "presence", load)
	require.NoError(t, err)
	first, _ := memo.Entry("presence")

	// the underlying source changing mid-TTL is not observed
	clock.Advance(599 * time.Second)
	got, err := memo.Get(ctx, "presence", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, int32(1), calls)

	entry, _ := memo.Entry("presence")
	assert.Equal(t, first.Timestamp, entry.Timestamp)
}

func TestMemo_ReloadsAfterTTL(t *testing.T) {
	clock := newFakeClock()
	memo := New(600*time.Second, WithClock(clock.Now))
	var calls int32
	load := countingLoad(&calls, "v1", "v2", "v3")
	ctx := context.Background()

	_, err := memo.Get(ctx, "presence", load)
	require.NoError(t, err)
	first, _ := memo.Entry("presence")

	clock.Advance(600 * time.Second)
	got, err := memo.Get(ctx, "presence", load)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	second, _ := memo.Entry("presence")
	assert.True(t, second.Timestamp.After(first.Timestamp))

	clock.Advance(601 * time.Second)
	got, err = memo.Get(ctx, "presence", load)
	require.NoError(t, err)
	assert.Equal(t, "v3", got)
	third, _ := memo.Entry("presence")
	assert.True(t, third.Timestamp.After(second.Timestamp))
	assert.Equal(t, int32(3), calls)
}

func TestMemo_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	memo := New(600*time.Second, WithClock(clock.Now))
	var presenceCalls, usersCalls int32
	ctx := context.Background()

	_, err := memo.Get(ctx, "presence", countingLoad(&presenceCalls, "p1", "p2"))
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	_, err = memo.Get(ctx, "users", countingLoad(&usersCalls, "u1", "u2"))
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	p, _ := memo.Get(ctx, "presence", countingLoad(&presenceCalls, "p1", "p2"))
	u, _ := memo.Get(ctx, "users", countingLoad(&usersCalls, "u1", "u2"))
	assert.Equal(t, "p2", p)
	assert.Equal(t, "u1", u)
}

func TestMemo_FailedLoadKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	memo := New(time.Minute, WithClock(clock.Now))
	ctx := context.Background()
	errBoom := errors.New("boom")

	_, err := memo.Get(ctx, "presence", func(context.Context) (any, error) { return "v1", nil })
	require.NoError(t, err)
	before, _ := memo.Entry("presence")

	clock.Advance(2 * time.Minute)
	_, err = memo.Get(ctx, "presence", func(context.Context) (any, error) { return nil, errBoom })
	assert.ErrorIs(t, err, errBoom)

	after, ok := memo.Entry("presence")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestMemo_FailedColdLoadStoresNothing(t *testing.T) {
	memo := New(time.Minute)
	_, err := memo.Get(context.Background(), "presence", func(context.Context) (any, error) {
		return nil, errors.New("no file")
	})
	assert.Error(t, err)

	_, ok := memo.Entry("presence")
	assert.False(t, ok)
}

func TestMemo_ConcurrentCallersLoadOnce(t *testing.T) {
	memo := New(time.Minute)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v1", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = memo.Get(context.Background(), "presence", load)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "v1", r)
	}
}

func TestMemo_ReloadHook(t *testing.T) {
	var keys []string
	memo := New(time.Minute, WithReloadHook(func(key string, _ time.Duration, err error) {
		assert.NoError(t, err)
		keys = append(keys, key)
	}))

	_, _ = memo.Get(context.Background(), "users", func(context.Context) (any, error) { return 1, nil })
	_, _ = memo.Get(context.Background(), "users", func(context.Context) (any, error) { return 2, nil })
	assert.Equal(t, []string{"users"}, keys)
}

func TestMemo_Reset(t *testing.T) {
	memo := New(time.Minute)
	var calls int32
	load := countingLoad(&calls, "v1", "v2")

	_, _ = memo.Get(context.Background(), "presence", load)
	memo.Reset()
	got, _ := memo.Get(context.Background(), "presence", load)
	assert.Equal(t, "v2", got)
}

func TestNew_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).TTL())
	assert.Equal(t, time.Minute, New(time.Minute).TTL())
}

func TestLoader_Snapshot(t *testing.T) {
	clock := newFakeClock()
	memo := New(time.Minute, WithClock(clock.Now))
	n := 0
	loader := NewLoader(memo, "numbers", func(context.Context) ([]int, error) {
		n++
		return []int{n}, nil
	})

	value, ts, err := loader.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, value)
	assert.Equal(t, clock.Now(), ts)
	assert.Equal(t, "numbers", loader.Key())

	clock.Advance(time.Minute)
	value, err = loader.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, value)
}

func TestLoader_TypeMismatch(t *testing.T) {
	memo := New(time.Minute)
	_, err := memo.Get(context.Background(), "shared", func(context.Context) (any, error) { return "text", nil })
	require.NoError(t, err)

	loader := NewLoader(memo, "shared", func(context.Context) (int, error) { return 1, nil })
	_, err = loader.Get(context.Background())
	assert.Error(t, err)
}
