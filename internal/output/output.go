package output

import (
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	// FormatRaw prints response bodies only, one per call.
	FormatRaw Format = "raw"
)

// Formatter renders call results.
type Formatter interface {
	Format(results []*CallResult) (string, error)
}

// ParseFormat validates and normalizes a format string. An empty value
// selects fallback.
func ParseFormat(value string, fallback Format) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "":
		return fallback, nil
	case string(FormatTable), string(FormatJSON), string(FormatYAML), string(FormatMarkdown), string(FormatRaw):
		return Format(normalized), nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatRaw:
		return &RawFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render is NewFormatter(format).Format(results).
func Render(format Format, results []*CallResult) (string, error) {
	return NewFormatter(format).Format(results)
}
