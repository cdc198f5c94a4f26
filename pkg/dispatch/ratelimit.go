package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidLimit is returned when a limiter is constructed with a
// non-positive budget.
var ErrInvalidLimit = errors.New("invalid rate limit")

// Limiter admits outbound requests. Acquire blocks until the request may
// proceed; it only fails when ctx is done first.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// WindowLimiter admits at most maxRequests calls per rolling window.
//
// When the window is full the caller waits until the oldest admission ages
// out. The window never holds more than maxRequests timestamps. Callers are
// serialized through a one-slot semaphore so a waiter can give up on
// cancellation instead of parking on a mutex.
type WindowLimiter struct {
	maxRequests int
	window      time.Duration

	sem        chan struct{}
	timestamps []time.Time

	clock func() time.Time
	sleep SleepFunc
}

// WindowOption customizes a WindowLimiter.
type WindowOption func(*WindowLimiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) WindowOption {
	return func(l *WindowLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithSleeper overrides how the limiter waits.
func WithSleeper(sleep SleepFunc) WindowOption {
	return func(l *WindowLimiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// NewWindowLimiter creates a sliding-window limiter.
func NewWindowLimiter(maxRequests int, window time.Duration, opts ...WindowOption) (*WindowLimiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidLimit, maxRequests)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %s", ErrInvalidLimit, window)
	}

	l := &WindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		sem:         make(chan struct{}, 1),
		timestamps:  make([]time.Time, 0, maxRequests),
		clock:       time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Acquire blocks until a slot in the current window is available.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	for {
		now := l.clock()
		l.prune(now)
		if len(l.timestamps) < l.maxRequests {
			l.timestamps = append(l.timestamps, now)
			return nil
		}

		// The window is full: wait until the oldest admission ages out.
		if err := l.sleep(ctx, l.window-now.Sub(l.timestamps[0])); err != nil {
			return err
		}
	}
}

// Limit returns the configured budget.
func (l *WindowLimiter) Limit() (int, time.Duration) {
	return l.maxRequests, l.window
}

func (l *WindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := 0
	for keep < len(l.timestamps) && !l.timestamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[keep:]...)
	}
}

// IntervalLimiter enforces a minimum spacing between requests.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter creates a limiter that admits one request per interval.
func NewIntervalLimiter(interval time.Duration) (*IntervalLimiter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidLimit, interval)
	}
	return &IntervalLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}, nil
}

// Acquire waits for the next interval slot.
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Chain acquires from each limiter in order.
type Chain []Limiter

// Acquire blocks until every limiter in the chain admits the request.
func (c Chain) Acquire(ctx context.Context) error {
	for _, l := range c {
		if l == nil {
			continue
		}
		if err := l.Acquire(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Unlimited admits every request immediately.
type Unlimited struct{}

// Acquire only reports cancellation.
func (Unlimited) Acquire(ctx context.Context) error {
	return ctx.Err()
}

// LimitConfig selects a rate limiting policy.
type LimitConfig struct {
	MaxRequests int
	Window      time.Duration
	MinInterval time.Duration
}

// NewLimiter builds the limiter described by cfg. A window budget and a
// minimum interval may be combined; at least one must be set.
func NewLimiter(cfg LimitConfig) (Limiter, error) {
	var chain Chain

	if cfg.MaxRequests > 0 || cfg.MinInterval <= 0 {
		window, err := NewWindowLimiter(cfg.MaxRequests, cfg.Window)
		if err != nil {
			return nil, err
		}
		chain = append(chain, window)
	}
	if cfg.MinInterval > 0 {
		interval, err := NewIntervalLimiter(cfg.MinInterval)
		if err != nil {
			return nil, err
		}
		chain = append(chain, interval)
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
