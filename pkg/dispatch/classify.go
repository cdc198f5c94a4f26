package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ClassifyResponse maps a received HTTP response to an Outcome. It is pure:
// now is only used to resolve HTTP-date Retry-After values.
func ClassifyResponse(status int, header http.Header, body []byte, now time.Time) Outcome {
	if status >= 200 && status < 300 {
		if status == http.StatusNoContent || body == nil {
			body = []byte{}
		}
		return Outcome{Kind: OutcomeSuccess, StatusCode: status, Header: header, Body: body}
	}

	kind := StatusKind(status)
	outcome := Outcome{
		Kind:       OutcomePermanent,
		StatusCode: status,
		Header:     header,
		Body:       body,
		ErrorKind:  kind,
		Message:    errorMessage(status, body),
	}
	if kind.Transient() {
		outcome.Kind = OutcomeTransient
		outcome.RetryAfter = RetryAfter(header, now)
	}
	return outcome
}

// ClassifyTransport maps a failed round trip to an Outcome. callerErr is the
// caller's context error, if any; a canceled caller is never retried, while a
// per-attempt deadline is.
func ClassifyTransport(err error, callerErr error) Outcome {
	if callerErr != nil {
		return Outcome{
			Kind:      OutcomePermanent,
			ErrorKind: KindCanceled,
			Message:   callerErr.Error(),
			Err:       callerErr,
		}
	}
	if isTimeout(err) {
		return Outcome{
			Kind:      OutcomeTransient,
			ErrorKind: KindTimeout,
			Message:   "timeout",
			Err:       err,
		}
	}
	return Outcome{
		Kind:      OutcomeTransient,
		ErrorKind: KindNetwork,
		Message:   fmt.Sprintf("network: %v", err),
		Err:       err,
	}
}

// StatusKind classifies an HTTP error status.
func StatusKind(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindAPI
	}
}

// RetryAfter parses a Retry-After header given as delta-seconds or an
// HTTP-date. Missing, malformed or past values yield zero.
func RetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(value + "s"); err == nil {
		if seconds < 0 {
			return 0
		}
		return seconds
	}
	if parsed, err := http.ParseTime(value); err == nil {
		if wait := parsed.Sub(now); wait > 0 {
			return wait
		}
	}
	return 0
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorMessage extracts a human-readable message from an error body. It
// understands {"error": "..."}, {"error": {"message": "..."}} and
// {"message": "..."}, falling back to the raw text.
func errorMessage(status int, body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		if text := http.StatusText(status); text != "" {
			return text
		}
		return fmt.Sprintf("http status %d", status)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		switch v := payload["error"].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
		if msg, ok := payload["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}

	return raw
}
