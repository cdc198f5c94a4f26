package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/namelens/relay/pkg/connector"
	"github.com/namelens/relay/pkg/dispatch"
)

// batchFile is the YAML document read by `relay batch`. ${VAR} references
// are expanded from the environment before parsing.
type batchFile struct {
	BaseURL  string            `yaml:"base_url"`
	Headers  map[string]string `yaml:"headers"`
	Bearer   string            `yaml:"bearer"`
	Timeout  time.Duration     `yaml:"timeout"`
	Requests []batchRequest    `yaml:"requests"`
}

// batchRequest targets either an absolute url or a path under base_url.
type batchRequest struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Path    string            `yaml:"path"`
	Query   map[string]string `yaml:"query"`
	Headers map[string]string `yaml:"headers"`
	// Body is sent as is when it is a string and JSON encoded otherwise.
	Body    any           `yaml:"body"`
	Timeout time.Duration `yaml:"timeout"`
}

var batchMethods = []interface{}{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

func (f batchFile) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.BaseURL, validation.When(f.BaseURL != "", validation.By(absoluteURL))),
		validation.Field(&f.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&f.Requests, validation.Required),
	)
}

func (r batchRequest) validate(hasBase bool) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Method, validation.In(batchMethods...)),
		validation.Field(&r.URL,
			validation.When(r.Path == "", validation.Required.Error("url or path is required")),
			validation.When(r.URL != "", validation.By(absoluteURL)),
		),
		validation.Field(&r.Path,
			validation.When(r.URL != "", validation.Empty.Error("must not be set together with url")),
			validation.When(r.Path != "" && !hasBase, validation.Empty.Error("requires base_url")),
		),
		validation.Field(&r.Timeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value interface{}) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New("must be an absolute http or https URL")
	}
	return nil
}

// loadBatchFile reads, expands and validates a batch document.
func loadBatchFile(path string) (*batchFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBatchFile([]byte(os.ExpandEnv(string(raw))))
}

func parseBatchFile(data []byte) (*batchFile, error) {
	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}

	for i := range file.Requests {
		req := &file.Requests[i]
		req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
		if req.Method == "" {
			req.Method = http.MethodGet
		}
		if req.Name == "" {
			req.Name = fmt.Sprintf("request-%d", i+1)
		}
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	for i, req := range file.Requests {
		if err := req.validate(file.BaseURL != ""); err != nil {
			return nil, fmt.Errorf("invalid batch request %d (%s): %w", i+1, req.Name, err)
		}
	}
	return &file, nil
}

// requests turns the document into dispatch requests. Relative paths go
// through a connector client so base_url, default headers and auth apply
// uniformly.
func (f *batchFile) requests(doer connector.Doer) ([]*dispatch.Request, error) {
	defaults := make(http.Header, len(f.Headers))
	for key, value := range f.Headers {
		defaults.Set(key, value)
	}
	if f.Bearer != "" {
		connector.Bearer(f.Bearer)(defaults)
	}

	var client *connector.Client
	if f.BaseURL != "" {
		opts := []connector.Option{connector.WithTimeout(f.Timeout), connector.WithUserAgent(appName + "/" + versionInfo.Version)}
		for key := range defaults {
			opts = append(opts, connector.WithHeader(key, defaults.Get(key)))
		}
		var err error
		client, err = connector.New(f.BaseURL, doer, opts...)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*dispatch.Request, 0, len(f.Requests))
	for _, item := range f.Requests {
		req, err := f.buildRequest(client, defaults, item)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", item.Name, err)
		}
		out = append(out, req)
	}
	return out, nil
}

func (f *batchFile) buildRequest(client *connector.Client, defaults http.Header, item batchRequest) (*dispatch.Request, error) {
	var extra []dispatch.RequestOption
	for key, value := range item.Headers {
		extra = append(extra, dispatch.WithHeader(key, value))
	}
	if item.Timeout > 0 {
		extra = append(extra, dispatch.WithTimeout(item.Timeout))
	}

	var body any
	switch v := item.Body.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		body = v
	}

	if item.Path != "" {
		query := make(url.Values, len(item.Query))
		for key, value := range item.Query {
			query.Set(key, value)
		}
		return client.NewRequest(item.Method, item.Path, query, body, extra...)
	}

	target := item.URL
	if len(item.Query) > 0 {
		parsed, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		query := parsed.Query()
		for key, value := range item.Query {
			query.Set(key, value)
		}
		parsed.RawQuery = query.Encode()
		target = parsed.String()
	}

	opts := []dispatch.RequestOption{dispatch.WithHeaders(defaults)}
	if f.Timeout > 0 {
		opts = append(opts, dispatch.WithTimeout(f.Timeout))
	}
	switch v := body.(type) {
	case nil:
	case []byte:
		opts = append(opts, dispatch.WithBody(v))
	default:
		opts = append(opts, dispatch.WithJSONBody(v))
	}
	return dispatch.NewRequest(item.Method, target, append(opts, extra...)...)
}
