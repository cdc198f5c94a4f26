package dispatch

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the per-connector configuration surface.
type Config struct {
	MaxRequestsPerWindow int
	Window               time.Duration
	MaxRetries           int
	RequestTimeout       time.Duration
	// MinRequestInterval spaces requests evenly. It may be used instead of,
	// or together with, the window budget.
	MinRequestInterval time.Duration
	RetryDelay         time.Duration
	MaxRetryDelay      time.Duration
}

// DefaultConfig returns the defaults most connectors run with.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerWindow: 60,
		Window:               time.Minute,
		MaxRetries:           DefaultMaxRetries,
		RequestTimeout:       DefaultTimeout,
		RetryDelay:           DefaultRetryDelay,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxRequestsPerWindow, validation.Min(0)),
		validation.Field(&c.Window,
			validation.Min(time.Duration(0)),
			validation.When(c.MaxRequestsPerWindow > 0, validation.Required.Error("is required when max requests per window is set")),
		),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MinRequestInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxRetryDelay, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLimit, err)
	}
	if c.MaxRequestsPerWindow <= 0 && c.MinRequestInterval <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLimit, errors.New("either max requests per window or min request interval must be set"))
	}
	return nil
}

// Policy returns the retry policy described by c.
func (c Config) Policy() Policy {
	return Policy{
		MaxRetries: c.MaxRetries,
		Delay:      c.RetryDelay,
		MaxDelay:   c.MaxRetryDelay,
	}
}

// Limiter builds the limiter described by c.
func (c Config) Limiter() (Limiter, error) {
	return NewLimiter(LimitConfig{
		MaxRequests: c.MaxRequestsPerWindow,
		Window:      c.Window,
		MinInterval: c.MinRequestInterval,
	})
}

// NewFromConfig validates cfg and builds a dispatcher. opts are applied
// after the config-derived options, so they may override the HTTP client.
func NewFromConfig(cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limiter, err := cfg.Limiter()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLimiter(limiter),
		WithPolicy(cfg.Policy()),
		WithHTTPClient(nil, cfg.RequestTimeout),
	}
	return New(append(base, opts...)...), nil
}
