package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/server/middleware"
	"github.com/namelens/relay/pkg/dispatch"
)

// maxDispatchBody caps inbound /v1/dispatch payloads.
const maxDispatchBody = 4 << 20

// Dispatcher is the part of *dispatch.Dispatcher the sidecar needs.
type Dispatcher interface {
	Do(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error)
}

// DispatchRequest describes one vendor call submitted to the sidecar.
type DispatchRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

var allowedMethods = []interface{}{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

func (r DispatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Method, validation.Required, validation.In(allowedMethods...)),
		validation.Field(&r.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&r.Timeout, validation.By(nonNegativeDuration)),
	)
}

func httpURL(value interface{}) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New("must be an absolute http or https URL")
	}
	return nil
}

func nonNegativeDuration(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return errors.New("must be a duration such as 5s")
	}
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

// DispatchResponse relays the vendor response back to the caller. JSON
// bodies are embedded as-is; anything else is returned as text.
type DispatchResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     json.RawMessage   `json:"body,omitempty"`
	BodyText string            `json:"body_text,omitempty"`
	Attempts int               `json:"attempts"`
}

// DispatchHandler serves POST /v1/dispatch. Failures come back as error
// envelopes whose code reflects the classified dispatch kind.
func DispatchHandler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in DispatchRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxDispatchBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			envelope := apperrors.NewInvalidInputError("request body must be a dispatch JSON object")
			envelope, _ = envelope.WithContext(map[string]interface{}{"decode_error": err.Error()})
			apperrors.RespondWithEnvelope(w, r, envelope)
			return
		}

		in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
		if err := in.Validate(); err != nil {
			envelope := apperrors.NewInvalidInputError("invalid dispatch request")
			envelope, _ = envelope.WithContext(map[string]interface{}{"fields": err.Error()})
			apperrors.RespondWithEnvelope(w, r, envelope)
			return
		}

		req, err := buildRequest(r.Context(), in)
		if err != nil {
			apperrors.RespondWithEnvelope(w, r, apperrors.NewInvalidInputError(err.Error()))
			return
		}

		resp, err := d.Do(r.Context(), req)
		if err != nil {
			apperrors.RespondWithEnvelope(w, r, apperrors.FromDispatch(r.Context(), err))
			return
		}

		out := DispatchResponse{
			Status:   resp.StatusCode,
			Headers:  flattenHeader(resp.Header),
			Attempts: resp.Attempts,
		}
		if len(resp.Body) > 0 {
			if json.Valid(resp.Body) {
				out.Body = json.RawMessage(resp.Body)
			} else {
				out.BodyText = string(resp.Body)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func buildRequest(ctx context.Context, in DispatchRequest) (*dispatch.Request, error) {
	header := make(http.Header, len(in.Headers)+1)
	for key, value := range in.Headers {
		header.Set(key, value)
	}
	if header.Get(middleware.RequestIDHeader) == "" {
		if id := middleware.GetRequestID(ctx); id != "" {
			header.Set(middleware.RequestIDHeader, id)
		}
	}

	opts := []dispatch.RequestOption{dispatch.WithHeaders(header)}
	if len(in.Body) > 0 {
		opts = append(opts, dispatch.WithBody(in.Body))
		if header.Get("Content-Type") == "" {
			opts = append(opts, dispatch.WithHeader("Content-Type", "application/json"))
		}
	}
	if in.Timeout != "" {
		timeout, _ := time.ParseDuration(in.Timeout)
		opts = append(opts, dispatch.WithTimeout(timeout))
	}
	return dispatch.NewRequest(in.Method, in.URL, opts...)
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}
	return out
}
