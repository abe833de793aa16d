// Package politeness paces outbound requests, rotates client identity, and
// turns block signals into bounded, escalating backoff.
package politeness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	random "github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

// Options configures a Controller. A MaxBlockRetries of zero is honoured
// (abandon on the first block); a negative value selects the default.
type Options struct {
	FloorDelay      time.Duration
	CapDelay        time.Duration
	Jitter          time.Duration
	MaxBlockRetries int
	RotateOnBlock   bool
	Identities      []string
	// RateRequests/RateWindow add an optional token bucket on top of the
	// fixed delay.
	RateRequests int
	RateWindow   time.Duration
}

// Budget is a snapshot of the shared rate budget, mainly for logging and
// tests.
type Budget struct {
	CurrentDelay      time.Duration
	ConsecutiveBlocks int
	BlockedUntil      time.Time
	Identity          string
}

// Controller owns one RateBudget. It may be shared by every work unit of a
// run or scoped to a single unit; all methods are safe for concurrent use.
type Controller struct {
	floor         time.Duration
	cap           time.Duration
	jitter        time.Duration
	maxBlocks     int
	rotateOnBlock bool
	limiter       *rate.Limiter
	logger        *slog.Logger

	mu           sync.Mutex
	delay        time.Duration
	blocks       int
	blockedUntil time.Time
	identities   []string
	identityIdx  int
	lastRequest  time.Time
}

// New builds a controller with its delay clamped to [floor, cap].
func New(opts Options, logger *slog.Logger) *Controller {
	if opts.FloorDelay < 0 {
		opts.FloorDelay = 0
	}
	if opts.CapDelay < opts.FloorDelay {
		opts.CapDelay = opts.FloorDelay
	}
	if opts.MaxBlockRetries < 0 {
		opts.MaxBlockRetries = 3
	}
	if len(opts.Identities) == 0 {
		opts.Identities = []string{"mortar-directory-bot/1.0"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RateRequests > 0 && opts.RateWindow > 0 {
		interval := opts.RateWindow / time.Duration(opts.RateRequests)
		if interval <= 0 {
			interval = time.Millisecond
		}
		limiter = rate.NewLimiter(rate.Every(interval), opts.RateRequests)
	}

	return &Controller{
		floor:         opts.FloorDelay,
		cap:           opts.CapDelay,
		jitter:        opts.Jitter,
		maxBlocks:     opts.MaxBlockRetries,
		rotateOnBlock: opts.RotateOnBlock,
		limiter:       limiter,
		logger:        logger,
		delay:         opts.FloorDelay,
		identities:    opts.Identities,
	}
}

// Wait suspends the caller until the current inter-request delay plus
// random jitter has elapsed since the previous request, honouring any block
// cool-off. Every component must call Wait before issuing a request.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wake := c.lastRequest.Add(c.delay)
	if c.blockedUntil.After(wake) {
		wake = c.blockedUntil
	}
	sleep := wake.Sub(now)
	c.mu.Unlock()

	if j := c.randomJitter(); j > 0 {
		sleep += j
	}

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Controller) randomJitter() time.Duration {
	if c.jitter <= 0 {
		return 0
	}
	n, err := random.IntRange(0, int(c.jitter/time.Millisecond)+1)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// Identity returns the client signature to attach to the next request.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identities[c.identityIdx%len(c.identities)]
}

// HandleBlock escalates backoff after a block signal and reports whether the
// caller should retry. Once the block count exceeds the configured maximum
// the unit must be abandoned rather than retried forever.
func (c *Controller) HandleBlock(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks++
	next := c.delay * 2
	if next < c.floor {
		next = c.floor
	}
	if next == 0 {
		next = time.Second
	}
	if next > c.cap {
		next = c.cap
	}
	c.delay = next
	c.blockedUntil = time.Now().Add(c.delay)

	if c.rotateOnBlock && len(c.identities) > 1 {
		c.identityIdx++
	}

	retry := c.blocks <= c.maxBlocks
	c.logger.Warn("block signal",
		"reason", reason,
		"consecutive_blocks", c.blocks,
		"next_delay", c.delay,
		"retry", retry,
	)
	return retry
}

// ResetBackoff clamps the delay back to the floor after a successful,
// non-blocked response.
func (c *Controller) ResetBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = c.floor
	c.blocks = 0
	c.blockedUntil = time.Time{}
}

// Snapshot returns the current budget state.
func (c *Controller) Snapshot() Budget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Budget{
		CurrentDelay:      c.delay,
		ConsecutiveBlocks: c.blocks,
		BlockedUntil:      c.blockedUntil,
		Identity:          c.identities[c.identityIdx%len(c.identities)],
	}
}
