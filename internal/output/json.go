package output

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders results as a JSON array.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) Format(results []*CallResult) (string, error) {
	if results == nil {
		results = []*CallResult{}
	}

	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(results, "", "  ")
	} else {
		data, err = json.Marshal(results)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// YAMLFormatter renders results as a YAML sequence.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(results []*CallResult) (string, error) {
	if results == nil {
		results = []*CallResult{}
	}
	data, err := yaml.Marshal(results)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// RawFormatter prints each response body as received. Failed calls print
// their error instead.
type RawFormatter struct{}

func (f *RawFormatter) Format(results []*CallResult) (string, error) {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if !r.OK() {
			parts = append(parts, "error: "+r.Error)
			continue
		}
		parts = append(parts, string(r.raw))
	}
	return strings.Join(parts, "\n"), nil
}
