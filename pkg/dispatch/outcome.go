package dispatch

import (
	"net/http"
	"time"
)

// OutcomeKind discriminates the result of a single attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the normalized result of one attempt. Success outcomes carry
// the response; failures carry the classified kind and, for 429 responses,
// the server's Retry-After hint.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Header     http.Header
	Body       []byte

	ErrorKind  Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Succeeded reports whether the attempt produced a usable response.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) response(attempts int) *Response {
	body := o.Body
	if body == nil {
		body = []byte{}
	}
	header := o.Header
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		StatusCode: o.StatusCode,
		Header:     header,
		Body:       body,
		Attempts:   attempts,
	}
}

func (o Outcome) error(attempts int) *Error {
	kind := o.ErrorKind
	if kind == "" {
		kind = KindAPI
	}
	return &Error{
		Kind:       kind,
		StatusCode: o.StatusCode,
		Message:    o.Message,
		Body:       o.Body,
		Attempts:   attempts,
		Err:        o.Err,
	}
}
