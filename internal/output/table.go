package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const maxCellWidth = 60

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func (f *TableFormatter) Format(results []*CallResult) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Method", "URL", "Status", "Attempts", "Time", "Result"})

	for _, r := range results {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			r.Name,
			r.Method,
			truncate(r.URL),
			statusCell(r),
			r.Attempts,
			fmt.Sprintf("%dms", r.DurationMS),
			truncate(resultLabel(r)),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", "", summaryLine(Summarize(results))})
	return t.Render(), nil
}

func statusCell(r *CallResult) string {
	if r.Status == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", r.Status)
}

func resultLabel(r *CallResult) string {
	if r.OK() {
		return "ok"
	}
	return r.Error
}

func summaryLine(s Summary) string {
	line := fmt.Sprintf("%d/%d succeeded", s.Succeeded, s.Total)
	if len(s.ByKind) == 0 {
		return line
	}
	kinds := make([]string, 0, len(s.ByKind))
	for kind := range s.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, s.ByKind[kind]))
	}
	return line + " (" + strings.Join(parts, ", ") + ")"
}

func truncate(value string) string {
	if len(value) <= maxCellWidth {
		return value
	}
	return value[:maxCellWidth-3] + "..."
}
