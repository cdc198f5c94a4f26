package dispatch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State names a step of a logical call.
type State string

const (
	StateIdle      State = "idle"
	StateLimiting  State = "limiting"
	StateExecuting State = "executing"
	StateBackoff   State = "backoff"
	StateDone      State = "done"
)

// Observer receives dispatch events. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnWait(req *Request, waited time.Duration)
	OnAttempt(req *Request, attempt int, outcome Outcome, elapsed time.Duration)
	OnRetry(req *Request, attempt int, delay time.Duration, outcome Outcome)
	OnDone(req *Request, attempts int, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) OnWait(*Request, time.Duration) {}
func (NopObserver) OnAttempt(*Request, int, Outcome, time.Duration) {}
func (NopObserver) OnRetry(*Request, int, time.Duration, Outcome) {}
func (NopObserver) OnDone(*Request, int, error) {}

// Dispatcher is the entry point connectors call. It owns one limiter and
// shares nothing else between calls.
type Dispatcher struct {
	limiter  Limiter
	executor Executor
	policy   Policy
	logger   *zap.Logger
	observer Observer
	sleep    SleepFunc
	clock    func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLimiter sets the rate limiter.
func WithLimiter(l Limiter) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.limiter = l
		}
	}
}

// WithExecutor sets the attempt executor.
func WithExecutor(e Executor) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.executor = e
		}
	}
}

// WithHTTPClient uses client for attempts.
func WithHTTPClient(client *http.Client, timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.executor = NewHTTPExecutor(client, timeout)
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithLogger sets the logger; transitions are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithRetrySleeper overrides how the dispatcher waits between attempts.
func WithRetrySleeper(sleep SleepFunc) Option {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// New creates a dispatcher. Without options it does not rate limit, uses
// http.DefaultClient and the default retry policy.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		limiter:  Unlimited{},
		executor: NewHTTPExecutor(nil, DefaultTimeout),
		policy:   DefaultPolicy(),
		logger:   zap.NewNop(),
		observer: NopObserver{},
		sleep:    sleepContext,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Do runs one logical call: acquire, execute, and retry transient failures
// until the policy gives up. The returned error is always a *Error.
func (d *Dispatcher) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, &Error{Kind: KindValidation, Message: "request is required"}
	}

	log := d.logger.With(
		zap.String("call_id", uuid.New().String()),
		zap.String("method", req.Method()),
		zap.String("url", redactURL(req.URL())),
	)
	log.Debug("dispatch state", zap.String("state", string(StateIdle)))

	state := RetryState{}
	for {
		log.Debug("dispatch state", zap.String("state", string(StateLimiting)), zap.Int("attempt", state.Attempt))
		waitStart := d.clock()
		if err := d.limiter.Acquire(ctx); err != nil {
			return nil, d.cancel(log, req, state.Attempt, err)
		}
		d.observer.OnWait(req, d.clock().Sub(waitStart))

		log.Debug("dispatch state", zap.String("state", string(StateExecuting)), zap.Int("attempt", state.Attempt))
		attemptStart := d.clock()
		outcome := d.executor.Execute(ctx, req)
		attempts := state.Attempt + 1
		d.observer.OnAttempt(req, attempts, outcome, d.clock().Sub(attemptStart))

		if outcome.Succeeded() {
			resp := outcome.response(attempts)
			d.done(log, req, attempts, nil, zap.Int("status", resp.StatusCode))
			return resp, nil
		}

		if outcome.ErrorKind == KindCanceled {
			derr := outcome.error(attempts)
			d.done(log, req, attempts, derr)
			return nil, derr
		}

		retry, delay := d.policy.ShouldRetry(outcome, state)
		if !retry {
			derr := outcome.error(attempts)
			d.done(log, req, attempts, derr)
			return nil, derr
		}

		log.Debug("dispatch state",
			zap.String("state", string(StateBackoff)),
			zap.Int("attempt", state.Attempt),
			zap.String("kind", string(outcome.ErrorKind)),
			zap.Int("status", outcome.StatusCode),
			zap.Duration("delay", delay),
		)
		d.observer.OnRetry(req, attempts, delay, outcome)
		if err := d.sleep(ctx, delay); err != nil {
			return nil, d.cancel(log, req, attempts, err)
		}
		state.Attempt++
	}
}

func (d *Dispatcher) cancel(log *zap.Logger, req *Request, attempts int, err error) *Error {
	derr := &Error{Kind: KindCanceled, Message: err.Error(), Attempts: attempts, Err: err}
	d.done(log, req, attempts, derr)
	return derr
}

func (d *Dispatcher) done(log *zap.Logger, req *Request, attempts int, derr *Error, fields ...zap.Field) {
	fields = append(fields, zap.String("state", string(StateDone)), zap.Int("attempts", attempts))
	if derr != nil {
		fields = append(fields, zap.String("kind", string(derr.Kind)), zap.Error(derr))
		d.observer.OnDone(req, attempts, derr)
	} else {
		d.observer.OnDone(req, attempts, nil)
	}
	log.Debug("dispatch state", fields...)
}

// redactURL drops query strings and credentials, which often carry API keys.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parsed.User = nil
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
