package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is an outbound HTTP request. Build it with NewRequest; the
// dispatcher re-sends the same value on every retry, so it must not be
// modified after construction.
type Request struct {
	method  string
	url     string
	header  http.Header
	body    []byte
	timeout time.Duration
	err     error
}

// RequestOption customizes a Request at construction.
type RequestOption func(*Request)

// WithHeader sets a header value.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.header.Set(key, value)
	}
}

// WithHeaders copies all values from h.
func WithHeaders(h http.Header) RequestOption {
	return func(r *Request) {
		for key, values := range h {
			for _, v := range values {
				r.header.Add(key, v)
			}
		}
	}
}

// WithBody sets the raw request body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		if body == nil {
			r.body = nil
			return
		}
		r.body = append([]byte(nil), body...)
	}
}

// WithJSONBody encodes v as the request body and sets Content-Type. An
// encoding failure surfaces from NewRequest.
func WithJSONBody(v any) RequestOption {
	return func(r *Request) {
		data, err := json.Marshal(v)
		if err != nil {
			r.err = fmt.Errorf("encode request body: %w", err)
			return
		}
		r.body = data
		r.header.Set("Content-Type", "application/json")
	}
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(r *Request) {
		r.timeout = timeout
	}
}

// NewRequest validates and builds an immutable outbound request.
func NewRequest(method, rawURL string, opts ...RequestOption) (*Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("request url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %q", parsed.Scheme)
	}

	req := &Request{
		method: method,
		url:    parsed.String(),
		header: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if req.err != nil {
		return nil, req.err
	}
	if req.timeout < 0 {
		return nil, errors.New("request timeout must not be negative")
	}
	return req, nil
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// URL returns the target URL.
func (r *Request) URL() string { return r.url }

// Header returns a copy of the request headers.
func (r *Request) Header() http.Header { return r.header.Clone() }

// Body returns a copy of the request body.
func (r *Request) Body() []byte {
	if r.body == nil {
		return nil
	}
	return append([]byte(nil), r.body...)
}

// Timeout returns the per-attempt deadline. Zero means the executor default.
func (r *Request) Timeout() time.Duration { return r.timeout }

// build creates a fresh *http.Request for one attempt.
func (r *Request) build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = r.header.Clone()
	return httpReq, nil
}

// Response is the terminal success value of a dispatched call.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is never nil; it is empty for 204 and other bodiless responses.
	Body     []byte
	Attempts int
}

// JSON decodes the body into a generic map. Empty bodies yield an empty,
// non-nil map.
func (r *Response) JSON() (map[string]any, error) {
	out := map[string]any{}
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Decode unmarshals the body into v. Empty bodies leave v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
