package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/namelens/relay/pkg/dispatch"
)

func sampleResults() []*CallResult {
	ok := NewCallResult("list-deals", "GET", "https://crm.example.com/v1/deals",
		&dispatch.Response{StatusCode: 200, Body: []byte(`{"deals":[{"id":1}]}`), Attempts: 2},
		nil, 120*time.Millisecond)
	limited := NewCallResult("create-deal", "POST", "https://crm.example.com/v1/deals", nil,
		&dispatch.Error{Kind: dispatch.KindRateLimit, StatusCode: 429, Message: "slow down", Attempts: 4},
		3*time.Second)
	return []*CallResult{ok, nil, limited}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table", FormatRaw)
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON", FormatTable)
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("", FormatRaw)
	require.NoError(t, err)
	require.Equal(t, FormatRaw, format)

	format, err = ParseFormat("yml", FormatTable)
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	_, err = ParseFormat("csv", FormatTable)
	require.Error(t, err)
}

func TestNewCallResult(t *testing.T) {
	results := sampleResults()

	ok := results[0]
	assert.True(t, ok.OK())
	assert.Equal(t, 200, ok.Status)
	assert.Equal(t, 2, ok.Attempts)
	assert.Equal(t, int64(120), ok.DurationMS)
	assert.Equal(t, map[string]any{"deals": []any{map[string]any{"id": float64(1)}}}, ok.Body)

	limited := results[2]
	assert.False(t, limited.OK())
	assert.Equal(t, "rate_limit", limited.Kind)
	assert.Equal(t, 429, limited.Status)
	assert.Equal(t, 4, limited.Attempts)

	plain := NewCallResult("", "GET", "https://x.example", nil, fmt.Errorf("boom: %w", errors.New("disk")), 0)
	assert.Empty(t, plain.Kind)
	assert.Equal(t, "boom: disk", plain.Error)

	text := NewCallResult("", "GET", "https://x.example", &dispatch.Response{StatusCode: 200, Body: []byte("pong")}, nil, 0)
	assert.Equal(t, "pong", text.Body)
}

func TestSummarize(t *testing.T) {
	results := append(sampleResults(), &CallResult{Error: "mystery"})
	summary := Summarize(results)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, map[string]int{"rate_limit": 1, "unknown": 1}, summary.ByKind)
}

func TestFormatters(t *testing.T) {
	results := sampleResults()

	t.Run("table", func(t *testing.T) {
		rendered, err := Render(FormatTable, results)
		require.NoError(t, err)
		assert.Contains(t, rendered, "ATTEMPTS")
		assert.Contains(t, rendered, "list-deals")
		assert.Contains(t, rendered, "rate_limit: status 429: slow down")
		// go-pretty upper-cases footers
		assert.Contains(t, rendered, "1/2 SUCCEEDED (RATE_LIMIT=1)")
	})

	t.Run("json", func(t *testing.T) {
		rendered, err := Render(FormatJSON, results)
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
		require.Len(t, decoded, 3)
		assert.Equal(t, "list-deals", decoded[0]["name"])
		assert.Nil(t, decoded[1])
		assert.Equal(t, "rate_limit", decoded[2]["kind"])
	})

	t.Run("yaml", func(t *testing.T) {
		rendered, err := Render(FormatYAML, results[:1])
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, 200, decoded[0]["status"])
	})

	t.Run("markdown", func(t *testing.T) {
		rendered, err := Render(FormatMarkdown, []*CallResult{{Name: "a|b", Method: "GET", URL: "https://x.example"}})
		require.NoError(t, err)
		assert.Contains(t, rendered, `a\|b`)
		assert.Contains(t, rendered, "**Summary**: 1/1 succeeded")
	})

	t.Run("raw", func(t *testing.T) {
		rendered, err := Render(FormatRaw, results)
		require.NoError(t, err)
		lines := strings.Split(rendered, "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, `{"deals":[{"id":1}]}`, lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "error: rate_limit"))
	})

	t.Run("empty json", func(t *testing.T) {
		rendered, err := Render(FormatJSON, nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", rendered)
	})
}
