package metacache

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
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func TestSlotServesFreshValueWithoutRegenerating(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	slot := NewSlot("test", time.Minute, func(context.Context) (string, error) {
		return "v" + string(rune('0'+calls.Add(1))), nil
	}, WithClock[string](clock.Now))

	first, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Value)

	clock.Advance(30 * time.Second)
	second, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v1", second.Value)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(31 * time.Second)
	third, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v2", third.Value)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlotSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	slot := NewSlot("test", time.Minute, func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	})

	const n = 50
	var wg sync.WaitGroup
	results := make([]Result[int], n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = slot.Get(context.Background(), "")
		}(i)
	}

	<-started
	// Give the remaining callers time to attach to the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i].Value)
		assert.Equal(t, results[0].Fingerprint, results[i].Fingerprint)
	}
}

func TestSlotSharesFailureWithWaiters(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	boom := errors.New("provider down")

	slot := NewSlot("test", time.Minute, func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 0, boom
	})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = slot.Get(context.Background(), "")
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSlotDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	slot := NewSlot("test", time.Minute, func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})

	_, err := slot.Get(context.Background(), "")
	require.Error(t, err)

	res, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, res.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlotRetainsStaleEntryOnFailure(t *testing.T) {
	clock := newFakeClock()
	fail := atomic.Bool{}
	slot := NewSlot("test", time.Minute, func(context.Context) (string, error) {
		if fail.Load() {
			return "", errors.New("provider down")
		}
		return "original", nil
	}, WithClock[string](clock.Now))

	first, err := slot.Get(context.Background(), "")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	fail.Store(true)

	_, err = slot.Get(context.Background(), "")
	require.Error(t, err)

	slot.mu.RLock()
	stale := slot.entry
	slot.mu.RUnlock()
	require.NotNil(t, stale)
	assert.Equal(t, "original", stale.value)
	assert.Equal(t, first.Fingerprint, stale.fingerprint)

	fail.Store(false)
	again, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Value)
}

func TestSlotConditionalFetch(t *testing.T) {
	slot := NewSlot("test", time.Minute, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})

	full, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	require.False(t, full.Unchanged)
	require.NotEmpty(t, full.Fingerprint)

	same, err := slot.Get(context.Background(), full.Fingerprint)
	require.NoError(t, err)
	assert.True(t, same.Unchanged)
	assert.Nil(t, same.Value)
	assert.Equal(t, full.Fingerprint, same.Fingerprint)

	other, err := slot.Get(context.Background(), "not-the-fingerprint")
	require.NoError(t, err)
	assert.False(t, other.Unchanged)
	assert.Equal(t, []string{"a", "b"}, other.Value)
	assert.Equal(t, full.Fingerprint, other.Fingerprint)
}

func TestSlotReadersGetIndependentCopies(t *testing.T) {
	slot := NewSlot("test", time.Minute, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}, WithClone(func(v []string) []string { return append([]string(nil), v...) }))

	first, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	first.Value[0] = "mutated"

	second, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Value)
}

func TestSlotCancelledWaiterDoesNotAbortRegeneration(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var genErr atomic.Value

	slot := NewSlot("test", time.Minute, func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			genErr.Store(err)
		}
		return "done", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := slot.Get(ctx, "")
		firstErr <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	secondRes := make(chan Result[string], 1)
	go func() {
		res, err := slot.Get(context.Background(), "")
		assert.NoError(t, err)
		secondRes <- res
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case res := <-secondRes:
		assert.Equal(t, "done", res.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("second waiter never received the shared result")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Nil(t, genErr.Load(), "regeneration saw a cancelled context")

	// The completed flight populated the slot for later callers too.
	res, err := slot.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a, err := Fingerprint(map[string]string{"version": "1.70.0"})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]string{"version": "1.70.0"})
	require.NoError(t, err)
	c, err := Fingerprint(map[string]string{"version": "1.71.0"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)

	_, err = Fingerprint(func() {})
	require.Error(t, err)
}
