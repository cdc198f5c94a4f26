// Package connector is the small CRUD layer vendor connectors embed on top of
// the dispatch runtime: a base URL, default headers and JSON helpers.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/namelens/relay/pkg/dispatch"
)

// Doer runs one logical call. *dispatch.Dispatcher satisfies it.
type Doer interface {
	Do(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error)
}

// Client issues requests relative to a vendor base URL.
type Client struct {
	baseURL *url.URL
	doer    Doer
	header  http.Header
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithAuth applies auth to the default headers.
func WithAuth(auth Auth) Option {
	return func(c *Client) {
		if auth != nil {
			auth(c.header)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return WithHeader("User-Agent", agent)
}

// WithTimeout sets the per-attempt timeout for every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// New creates a client for baseURL. doer is usually a *dispatch.Dispatcher
// shared by every client talking to the same vendor.
func New(baseURL string, doer Doer, opts ...Option) (*Client, error) {
	if doer == nil {
		return nil, errors.New("dispatcher is required")
	}
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, errors.New("base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme: %q", parsed.Scheme)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""

	c := &Client{
		baseURL: parsed,
		doer:    doer,
		header:  http.Header{},
	}
	c.header.Set("Accept", "application/json")
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the vendor base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get fetches path and decodes the JSON response into out when out is not nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*dispatch.Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) (*dispatch.Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) (*dispatch.Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch sends body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) (*dispatch.Response, error) {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string, out any) (*dispatch.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do builds and dispatches a request. A []byte body is sent as is; any other
// non-nil body is JSON encoded.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) (*dispatch.Response, error) {
	req, err := c.NewRequest(method, path, query, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return resp, nil
}

// NewRequest resolves path against the base URL and applies default headers.
// extra options run last, so they override the defaults.
func (c *Client) NewRequest(method, path string, query url.Values, body any, extra ...dispatch.RequestOption) (*dispatch.Request, error) {
	target := c.resolve(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	opts := []dispatch.RequestOption{dispatch.WithHeaders(c.header)}
	switch v := body.(type) {
	case nil:
	case []byte:
		opts = append(opts, dispatch.WithBody(v))
	default:
		opts = append(opts, dispatch.WithJSONBody(v))
	}
	if c.timeout > 0 {
		opts = append(opts, dispatch.WithTimeout(c.timeout))
	}
	opts = append(opts, extra...)

	return dispatch.NewRequest(method, target.String(), opts...)
}

func (c *Client) resolve(path string) *url.URL {
	target := *c.baseURL
	trimmed := strings.TrimLeft(path, "/")
	if trimmed == "" {
		return &target
	}
	return target.JoinPath(trimmed)
}
