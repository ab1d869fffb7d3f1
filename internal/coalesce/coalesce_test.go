package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCoalescer() (*Coalescer, *clock) {
	clk := &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New("cart", Options{Now: clk.Now}), clk
}

func counting(n *atomic.Int32, err error) func(context.Context) error {
	return func(context.Context) error {
		n.Add(1)
		return err
	}
}

func TestCooldownAndForce(t *testing.T) {
	c, clk := newTestCoalescer()
	ctx := context.Background()
	var calls atomic.Int32

	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))
	clk.Advance(500 * time.Millisecond)
	err := c.Fetch(ctx, false, counting(&calls, nil))
	assert.True(t, IsRejected(err))
	assert.EqualValues(t, 1, calls.Load(), "second unforced fetch within 1s is suppressed")

	require.NoError(t, c.Fetch(ctx, true, counting(&calls, nil)))
	assert.EqualValues(t, 2, calls.Load(), "forced fetch always runs")
}

func TestFreshnessWindow(t *testing.T) {
	c, clk := newTestCoalescer()
	ctx := context.Background()
	var calls atomic.Int32

	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))

	clk.Advance(10 * time.Second)
	assert.ErrorIs(t, c.Fetch(ctx, false, counting(&calls, nil)), ErrFresh)

	clk.Advance(21 * time.Second)
	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))
	assert.EqualValues(t, 2, calls.Load())
}

func TestFailureIsNotFresh(t *testing.T) {
	c, clk := newTestCoalescer()
	ctx := context.Background()
	boom := errors.New("boom")
	var calls atomic.Int32

	assert.ErrorIs(t, c.Fetch(ctx, false, counting(&calls, boom)), boom)
	assert.Equal(t, PhaseFailed, c.Snapshot().Phase)
	assert.True(t, c.Snapshot().LastSuccessAt.IsZero())

	assert.ErrorIs(t, c.Fetch(ctx, false, counting(&calls, nil)), ErrCooldown)

	clk.Advance(1100 * time.Millisecond)
	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))
	assert.Equal(t, PhaseSucceeded, c.Snapshot().Phase)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInFlightRejection(t *testing.T) {
	c, _ := newTestCoalescer()
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(ctx, false, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, c.Fetch(ctx, false, func(context.Context) error { return nil }), ErrInFlight)
	assert.Equal(t, PhaseFetching, c.Snapshot().Phase)

	var forced atomic.Int32
	require.NoError(t, c.Fetch(ctx, true, counting(&forced, nil)))
	assert.EqualValues(t, 1, forced.Load())
	assert.Equal(t, PhaseFetching, c.Snapshot().Phase, "still fetching until the first call completes")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseSucceeded, c.Snapshot().Phase)
	assert.Zero(t, c.Snapshot().InFlight)
}

func TestConcurrentUnforcedFetchesRunOnce(t *testing.T) {
	c, _ := newTestCoalescer()
	ctx := context.Background()
	var calls atomic.Int32
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			_ = c.Fetch(ctx, false, counting(&calls, nil))
		}()
	}
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestInvalidateClearsFreshnessOnly(t *testing.T) {
	c, clk := newTestCoalescer()
	ctx := context.Background()
	var calls atomic.Int32

	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))
	c.Invalidate()
	assert.ErrorIs(t, c.Fetch(ctx, false, counting(&calls, nil)), ErrCooldown)

	clk.Advance(2 * time.Second)
	require.NoError(t, c.Fetch(ctx, false, counting(&calls, nil)))
	assert.EqualValues(t, 2, calls.Load())
}

func TestResetAndSnapshot(t *testing.T) {
	c, _ := newTestCoalescer()
	require.NoError(t, c.Fetch(context.Background(), false, func(context.Context) error { return nil }))

	w := c.Snapshot()
	assert.Equal(t, "cart", w.Resource)
	assert.False(t, w.LastFetchAttemptAt.IsZero())

	c.Reset()
	w = c.Snapshot()
	assert.Equal(t, PhaseIdle, w.Phase)
	assert.True(t, w.LastSuccessAt.IsZero())
	assert.Equal(t, "idle", w.Phase.String())
}

func TestNegativeDurationsDisableChecks(t *testing.T) {
	c := New("wishlist", Options{FreshnessTTL: -1, Cooldown: -1})
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Fetch(context.Background(), false, counting(&calls, nil)))
	}
	assert.EqualValues(t, 3, calls.Load())
}
