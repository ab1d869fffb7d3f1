// Package coalesce suppresses redundant fetches of a remote resource.
//
// A Coalescer tracks one resource through IDLE → FETCHING → (SUCCEEDED | FAILED).
// Unforced fetches are rejected while one is in flight, while the last successful
// result is still fresh, or while the last attempt is inside the cooldown window.
// Rejections are control flow, not failures: callers keep showing cached data.
package coalesce

import (
	"context"
	"errors"
	"sync"
	"time"

	"cartsync/internal/logging"
)

const (
	DefaultFreshnessTTL = 30 * time.Second
	DefaultCooldown     = time.Second
)

var (
	ErrInFlight = errors.New("fetch already in progress")
	ErrFresh    = errors.New("cached data is still fresh")
	ErrCooldown = errors.New("fetch attempted too recently")
)

// IsRejected reports whether err is a coalescer rejection rather than a fetch failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInFlight) || errors.Is(err, ErrFresh) || errors.Is(err, ErrCooldown)
}

// Phase is the state of a resource's fetch lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Window is a point-in-time copy of a resource's freshness bookkeeping.
type Window struct {
	Resource           string
	Phase              Phase
	LastFetchAttemptAt time.Time
	LastSuccessAt      time.Time
	InFlight           int
}

// Options tunes a Coalescer. Zero durations take the defaults; a negative duration
// disables that check.
type Options struct {
	FreshnessTTL time.Duration
	Cooldown     time.Duration
	Now          func() time.Time
}

// Coalescer guards fetches of a single resource.
type Coalescer struct {
	name string
	ttl  time.Duration
	cool time.Duration
	now  func() time.Time

	mu          sync.Mutex
	phase       Phase
	inflight    int
	lastAttempt time.Time
	lastSuccess time.Time
}

// New returns an idle Coalescer for the named resource.
func New(name string, opts Options) *Coalescer {
	if opts.FreshnessTTL == 0 {
		opts.FreshnessTTL = DefaultFreshnessTTL
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coalescer{name: name, ttl: opts.FreshnessTTL, cool: opts.Cooldown, now: opts.Now}
}

// Fetch runs fn unless the request is rejected. force bypasses every check.
// The returned error is either a rejection (see IsRejected) or fn's own error.
func (c *Coalescer) Fetch(ctx context.Context, force bool, fn func(context.Context) error) error {
	if err := c.begin(force); err != nil {
		logging.CoalesceDebug("%s fetch rejected: %v", c.name, err)
		return err
	}

	err := fn(ctx)
	c.finish(err == nil)
	return err
}

// begin performs the guard and the transition to FETCHING atomically.
func (c *Coalescer) begin(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !force {
		if c.phase == PhaseFetching {
			return ErrInFlight
		}
		if c.ttl > 0 && !c.lastSuccess.IsZero() && now.Sub(c.lastSuccess) < c.ttl {
			return ErrFresh
		}
		if c.cool > 0 && !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.cool {
			return ErrCooldown
		}
	}

	c.phase = PhaseFetching
	c.inflight++
	c.lastAttempt = now
	logging.CoalesceDebug("%s fetch started (force=%v, inflight=%d)", c.name, force, c.inflight)
	return nil
}

func (c *Coalescer) finish(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lastAttempt = now
	if ok {
		c.lastSuccess = now
	}
	c.inflight--
	if c.inflight > 0 {
		return
	}
	if ok {
		c.phase = PhaseSucceeded
	} else {
		c.phase = PhaseFailed
	}
	logging.CoalesceDebug("%s fetch finished (%s)", c.name, c.phase)
}

// Invalidate marks cached data stale, typically after a successful mutation.
// The cooldown clock is untouched.
func (c *Coalescer) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSuccess = time.Time{}
}

// Reset returns the coalescer to IDLE with no history. Used on logout.
func (c *Coalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseIdle
	c.lastAttempt = time.Time{}
	c.lastSuccess = time.Time{}
}

// Snapshot returns the current window.
func (c *Coalescer) Snapshot() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Window{
		Resource:           c.name,
		Phase:              c.phase,
		LastFetchAttemptAt: c.lastAttempt,
		LastSuccessAt:      c.lastSuccess,
		InFlight:           c.inflight,
	}
}
