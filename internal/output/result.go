package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/namelens/relay/pkg/dispatch"
)

// CallResult is the printable record of one logical call.
type CallResult struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Method     string `json:"method" yaml:"method"`
	URL        string `json:"url" yaml:"url"`
	Status     int    `json:"status,omitempty" yaml:"status,omitempty"`
	Attempts   int    `json:"attempts" yaml:"attempts"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	// Body is decoded JSON when the vendor sent JSON, otherwise text.
	Body  any    `json:"body,omitempty" yaml:"body,omitempty"`
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	raw []byte
	err error
}

// Err returns the call error, nil on success.
func (r *CallResult) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// OK reports whether the call succeeded.
func (r *CallResult) OK() bool {
	return r != nil && r.Error == ""
}

// NewCallResult records the outcome of Dispatcher.Do.
func NewCallResult(name, method, url string, resp *dispatch.Response, err error, elapsed time.Duration) *CallResult {
	result := &CallResult{
		Name:       name,
		Method:     method,
		URL:        url,
		DurationMS: elapsed.Milliseconds(),
	}

	if err != nil {
		result.err = err
		result.Error = err.Error()
		result.Kind = string(dispatch.KindOf(err))
		var derr *dispatch.Error
		if errors.As(err, &derr) {
			result.Status = derr.StatusCode
			result.Attempts = derr.Attempts
			result.setBody(derr.Body)
		}
		return result
	}

	if resp != nil {
		result.Status = resp.StatusCode
		result.Attempts = resp.Attempts
		result.setBody(resp.Body)
	}
	return result
}

func (r *CallResult) setBody(body []byte) {
	if len(body) == 0 {
		return
	}
	r.raw = body
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		r.Body = decoded
		return
	}
	r.Body = string(body)
}

// Summary counts results by outcome.
type Summary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
}

// Summarize tallies results; nil entries are skipped.
func Summarize(results []*CallResult) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		if r.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		if s.ByKind == nil {
			s.ByKind = make(map[string]int)
		}
		kind := r.Kind
		if kind == "" {
			kind = "unknown"
		}
		s.ByKind[kind]++
	}
	return s
}
