package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/metrics"
	"github.com/namelens/relay/internal/server/middleware"
	"github.com/namelens/relay/pkg/dispatch"
)

func TestFromDispatchMapsKinds(t *testing.T) {
	tests := []struct {
		kind   dispatch.Kind
		code   string
		status int
	}{
		{dispatch.KindAuth, CodeUnauthorized, http.StatusUnauthorized},
		{dispatch.KindRateLimit, CodeRateLimited, http.StatusTooManyRequests},
		{dispatch.KindTimeout, CodeTimeout, http.StatusGatewayTimeout},
		{dispatch.KindNetwork, CodeExternalService, http.StatusBadGateway},
		{dispatch.KindAPI, CodeExternalService, http.StatusBadGateway},
		{dispatch.KindValidation, CodeValidationFailed, http.StatusBadRequest},
		{dispatch.KindCanceled, CodeCanceled, http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := FromDispatch(context.Background(), &dispatch.Error{Kind: tt.kind, Attempts: 2})
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.status, HTTPStatusFromEnvelope(env))
			assert.Equal(t, string(tt.kind), env.Context["kind"])
			assert.EqualValues(t, 2, env.Context["attempts"])
			assert.NotEmpty(t, env.CorrelationID)
		})
	}
}

func TestFromDispatchCarriesUpstreamDetail(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req-1")
	err := fmt.Errorf("sync contacts: %w", &dispatch.Error{
		Kind:       dispatch.KindAPI,
		StatusCode: 502,
		Message:    "bad gateway",
		Attempts:   1,
	})

	env := FromDispatch(ctx, err)
	assert.Equal(t, "req-1", env.CorrelationID)
	assert.EqualValues(t, 502, env.Context["upstream_status"])
	assert.Equal(t, "bad gateway", env.Context["upstream_message"])
	assert.Equal(t, gferrors.SeverityHigh, env.Severity)
}

func TestFromDispatchWrapsUnclassified(t *testing.T) {
	env := FromDispatch(context.Background(), stderrors.New("disk full"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "disk full", env.Context["wrapped_error"])
}

func TestEnsureEnvelope(t *testing.T) {
	env := EnsureEnvelope(nil)
	assert.Equal(t, CodeInternal, env.Code)

	original := NewNotFoundError("missing")
	assert.Same(t, original, EnsureEnvelope(fmt.Errorf("wrap: %w", original)))

	env = EnsureEnvelope(&dispatch.Error{Kind: dispatch.KindRateLimit})
	assert.Equal(t, CodeRateLimited, env.Code)

	env = EnsureEnvelope(stderrors.New("plain"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "plain", env.Context["wrapped_error"])
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(NewConfigInvalidError("bad")))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(NewInvalidInputError("bad")))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&dispatch.Error{Kind: dispatch.KindNetwork}))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(FromDispatch(context.Background(), &dispatch.Error{Kind: dispatch.KindTimeout})))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(&dispatch.Error{Kind: dispatch.KindAuth}))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(stderrors.New("other")))
}

func TestRespondWithErrorWritesEnvelopeAndCountsIt(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	t.Cleanup(metrics.Reset)

	req := httptest.NewRequest(http.MethodGet, "/v1/dispatch", nil)
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &dispatch.Error{Kind: dispatch.KindRateLimit, StatusCode: 429, Attempts: 4})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.EqualValues(t, 4, body.Error.Details["attempts"])

	count, err := testutil.GatherAndCount(reg, "relay_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnsureCorrelationIDFallback(t *testing.T) {
	env := EnsureCorrelationID(NewInternalError("x"), context.Background())
	assert.NotEmpty(t, env.CorrelationID)
	assert.Nil(t, EnsureCorrelationID(nil, context.Background()))
}
