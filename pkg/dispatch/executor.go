package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single attempt when neither the request nor the
// executor sets one.
const DefaultTimeout = 30 * time.Second

// Executor performs exactly one attempt of a request.
type Executor interface {
	Execute(ctx context.Context, req *Request) Outcome
}

// HTTPExecutor executes attempts over net/http.
type HTTPExecutor struct {
	Client  *http.Client
	Timeout time.Duration
	Clock   func() time.Time
}

// NewHTTPExecutor returns an executor using client, or a plain client when
// nil. Deadlines are applied per attempt through the context, so the client
// should not carry its own Timeout.
func NewHTTPExecutor(client *http.Client, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{Client: client, Timeout: timeout}
}

// Execute sends req once and normalizes the result. Every failure is
// returned as an Outcome.
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return Outcome{Kind: OutcomePermanent, ErrorKind: KindValidation, Message: "request is required"}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(req))
	defer cancel()

	httpReq, err := req.build(attemptCtx)
	if err != nil {
		return Outcome{
			Kind:      OutcomePermanent,
			ErrorKind: KindValidation,
			Message:   fmt.Sprintf("build request: %v", err),
			Err:       err,
		}
	}

	resp, err := e.client().Do(httpReq)
	if err != nil {
		return ClassifyTransport(err, ctx.Err())
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyTransport(err, ctx.Err())
	}

	return ClassifyResponse(resp.StatusCode, resp.Header, body, e.now())
}

func (e *HTTPExecutor) timeoutFor(req *Request) time.Duration {
	if t := req.Timeout(); t > 0 {
		return t
	}
	if e != nil && e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *HTTPExecutor) client() *http.Client {
	if e != nil && e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *HTTPExecutor) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
