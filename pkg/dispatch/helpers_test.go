package dispatch

import (
	"context"
	"sync"
	"time"
)

// fakeClock is a manually advanced clock whose Sleep advances time instead
// of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedExecutor returns queued outcomes in order, repeating the last one.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes []Outcome
	calls    int
}

func (e *scriptedExecutor) Execute(ctx context.Context, req *Request) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.calls
	if idx >= len(e.outcomes) {
		idx = len(e.outcomes) - 1
	}
	e.calls++
	return e.outcomes[idx]
}

func (e *scriptedExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// countingLimiter admits everything and counts acquisitions.
type countingLimiter struct {
	mu    sync.Mutex
	count int
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	return nil
}

func (l *countingLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

type recordingObserver struct {
	mu       sync.Mutex
	waits    int
	attempts []Outcome
	retries  []time.Duration
	done     []error
}

func (o *recordingObserver) OnWait(*Request, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits++
}

func (o *recordingObserver) OnAttempt(_ *Request, _ int, outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, outcome)
}

func (o *recordingObserver) OnRetry(_ *Request, _ int, delay time.Duration, _ Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, delay)
}

func (o *recordingObserver) OnDone(_ *Request, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, err)
}

func mustRequest(method, url string, opts ...RequestOption) *Request {
	req, err := NewRequest(method, url, opts...)
	if err != nil {
		panic(err)
	}
	return req
}
