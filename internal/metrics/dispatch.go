package metrics

import (
	"time"

	"github.com/namelens/relay/pkg/dispatch"
)

// DispatchObserver feeds dispatcher events into the registered collectors.
type DispatchObserver struct {
	connector string
}

var _ dispatch.Observer = DispatchObserver{}

// NewDispatchObserver labels every recording with connector.
func NewDispatchObserver(connector string) DispatchObserver {
	if connector == "" {
		connector = "default"
	}
	return DispatchObserver{connector: connector}
}

// OnWait records limiter wait time.
func (o DispatchObserver) OnWait(_ *dispatch.Request, waited time.Duration) {
	if c := get(); c != nil {
		c.limiterWait.WithLabelValues(o.connector).Observe(waited.Seconds())
	}
}

// OnAttempt records one attempt and its latency.
func (o DispatchObserver) OnAttempt(_ *dispatch.Request, _ int, outcome dispatch.Outcome, elapsed time.Duration) {
	c := get()
	if c == nil {
		return
	}
	kind := outcome.Kind.String()
	c.attempts.WithLabelValues(o.connector, kind, string(outcome.ErrorKind)).Inc()
	c.attemptDuration.WithLabelValues(o.connector, kind).Observe(elapsed.Seconds())
}

// OnRetry counts scheduled retries.
func (o DispatchObserver) OnRetry(_ *dispatch.Request, _ int, _ time.Duration, outcome dispatch.Outcome) {
	if c := get(); c != nil {
		c.retries.WithLabelValues(o.connector, string(outcome.ErrorKind)).Inc()
	}
}

// OnDone counts the logical call by result: "success" or the error kind.
func (o DispatchObserver) OnDone(_ *dispatch.Request, _ int, err error) {
	c := get()
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = string(dispatch.KindOf(err))
		if result == "" {
			result = "unknown"
		}
	}
	c.calls.WithLabelValues(o.connector, result).Inc()
}
