package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(results []*CallResult) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Name | Method | URL | Status | Attempts | Time | Result |\n")
	sb.WriteString("|------|--------|-----|--------|----------|------|--------|\n")

	for _, r := range results {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %dms | %s |\n",
			escapeMarkdownCell(r.Name),
			r.Method,
			escapeMarkdownCell(r.URL),
			statusCell(r),
			r.Attempts,
			r.DurationMS,
			escapeMarkdownCell(resultLabel(r)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(Summarize(results))))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(value, "\n", " ")
}
