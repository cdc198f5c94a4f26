package dispatch

import (
	"errors"
	"fmt"
)

// Kind identifies a class of dispatch failure.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindRateLimit  Kind = "rate_limit"
	KindTimeout    Kind = "timeout"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindAPI        Kind = "api"
	KindCanceled   Kind = "canceled"
)

// Sentinel errors matched by (*Error).Is, so callers can write
// errors.Is(err, dispatch.ErrAuth).
var (
	ErrAuth       = errors.New("authentication failed")
	ErrRateLimit  = errors.New("rate limited")
	ErrTimeout    = errors.New("request timed out")
	ErrNetwork    = errors.New("network failure")
	ErrValidation = errors.New("request rejected")
	ErrAPI        = errors.New("api error")
	ErrCanceled   = errors.New("request canceled")
)

var kindSentinels = map[Kind]error{
	KindAuth:       ErrAuth,
	KindRateLimit:  ErrRateLimit,
	KindTimeout:    ErrTimeout,
	KindNetwork:    ErrNetwork,
	KindValidation: ErrValidation,
	KindAPI:        ErrAPI,
	KindCanceled:   ErrCanceled,
}

// Transient reports whether failures of this kind may succeed on retry.
func (k Kind) Transient() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is the single classified error returned by Dispatcher.Do.
//
// Vendor context lives in the fields rather than in new types: StatusCode is
// zero for failures that never produced a response, and Body holds the raw
// response bytes when one was read.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Body       []byte
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "dispatch error"
	}
	msg := e.Message
	if msg == "" {
		if sentinel, ok := kindSentinels[e.Kind]; ok {
			msg = sentinel.Error()
		} else {
			msg = "request failed"
		}
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the classified kind of err, or "" when err is not a
// dispatch error.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) && derr != nil {
		return derr.Kind
	}
	return ""
}
