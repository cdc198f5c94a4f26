package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyResponseNoContentIsEmptySuccess(t *testing.T) {
	outcome := ClassifyResponse(http.StatusNoContent, http.Header{}, nil, time.Now())
	require.True(t, outcome.Succeeded())
	require.NotNil(t, outcome.Body)
	require.Empty(t, outcome.Body)

	resp := outcome.response(1)
	body, err := resp.JSON()
	require.NoError(t, err)
	require.NotNil(t, body)
	require.Empty(t, body)
}

func TestClassifyResponseStatuses(t *testing.T) {
	cases := []struct {
		status  int
		outcome OutcomeKind
		kind    Kind
	}{
		{http.StatusOK, OutcomeSuccess, ""},
		{http.StatusCreated, OutcomeSuccess, ""},
		{http.StatusBadRequest, OutcomePermanent, KindValidation},
		{http.StatusUnauthorized, OutcomePermanent, KindAuth},
		{http.StatusForbidden, OutcomePermanent, KindAuth},
		{http.StatusNotFound, OutcomePermanent, KindAPI},
		{http.StatusConflict, OutcomePermanent, KindAPI},
		{http.StatusUnprocessableEntity, OutcomePermanent, KindValidation},
		{http.StatusTooManyRequests, OutcomeTransient, KindRateLimit},
		{http.StatusInternalServerError, OutcomePermanent, KindAPI},
		{http.StatusServiceUnavailable, OutcomePermanent, KindAPI},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			outcome := ClassifyResponse(tc.status, http.Header{}, []byte(`{}`), time.Now())
			require.Equal(t, tc.outcome, outcome.Kind)
			require.Equal(t, tc.kind, outcome.ErrorKind)
			require.Equal(t, tc.status, outcome.StatusCode)
		})
	}
}

func TestClassifyResponseCarriesRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "2")

	outcome := ClassifyResponse(http.StatusTooManyRequests, header, []byte(`{"message":"slow down"}`), time.Now())
	require.Equal(t, OutcomeTransient, outcome.Kind)
	require.Equal(t, 2*time.Second, outcome.RetryAfter)
	require.Equal(t, "slow down", outcome.Message)
}

func TestRetryAfterFormats(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	header := http.Header{}
	require.Zero(t, RetryAfter(header, now))
	require.Zero(t, RetryAfter(nil, now))

	header.Set("Retry-After", "120")
	require.Equal(t, 2*time.Minute, RetryAfter(header, now))

	header.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))
	require.Equal(t, 30*time.Second, RetryAfter(header, now))

	header.Set("Retry-After", now.Add(-30*time.Second).Format(http.TimeFormat))
	require.Zero(t, RetryAfter(header, now))

	header.Set("Retry-After", "-5")
	require.Zero(t, RetryAfter(header, now))

	header.Set("Retry-After", "soon")
	require.Zero(t, RetryAfter(header, now))
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := map[string]struct {
		body []byte
		want string
	}{
		"error string":   {[]byte(`{"error":"invalid token"}`), "invalid token"},
		"nested message": {[]byte(`{"error":{"code":42,"message":"field missing"}}`), "field missing"},
		"message field":  {[]byte(`{"message":"contact not found"}`), "contact not found"},
		"error wins":     {[]byte(`{"error":"first","message":"second"}`), "first"},
		"plain text":     {[]byte("upstream exploded\n"), "upstream exploded"},
		"unknown json":   {[]byte(`{"detail":"x"}`), `{"detail":"x"}`},
		"empty body":     {nil, "Not Found"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, errorMessage(http.StatusNotFound, tc.body))
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	canceled := ClassifyTransport(errors.New("boom"), context.Canceled)
	require.Equal(t, OutcomePermanent, canceled.Kind)
	require.Equal(t, KindCanceled, canceled.ErrorKind)

	deadline := ClassifyTransport(fmt.Errorf("get: %w", context.DeadlineExceeded), nil)
	require.Equal(t, OutcomeTransient, deadline.Kind)
	require.Equal(t, KindTimeout, deadline.ErrorKind)
	require.Equal(t, "timeout", deadline.Message)

	netTimeout := ClassifyTransport(timeoutErr{}, nil)
	require.Equal(t, KindTimeout, netTimeout.ErrorKind)

	refused := ClassifyTransport(errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), nil)
	require.Equal(t, OutcomeTransient, refused.Kind)
	require.Equal(t, KindNetwork, refused.ErrorKind)
	require.Equal(t, "network: dial tcp 127.0.0.1:1: connect: connection refused", refused.Message)
}

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := error(&Error{Kind: KindAuth, StatusCode: http.StatusUnauthorized, Message: "bad key"})
	require.ErrorIs(t, err, ErrAuth)
	require.NotErrorIs(t, err, ErrRateLimit)
	require.Equal(t, KindAuth, KindOf(fmt.Errorf("wrapped: %w", err)))
	require.Equal(t, "auth: status 401: bad key", err.Error())

	require.Equal(t, Kind(""), KindOf(errors.New("plain")))

	canceled := &Error{Kind: KindCanceled, Err: context.Canceled}
	require.ErrorIs(t, canceled, context.Canceled)
	require.ErrorIs(t, canceled, ErrCanceled)
	require.Equal(t, "canceled: request canceled", canceled.Error())
}
