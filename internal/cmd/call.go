package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/output"
	"github.com/namelens/relay/pkg/connector"
	"github.com/namelens/relay/pkg/dispatch"
)

var callCmd = &cobra.Command{
	Use:   "call [method] <url>",
	Short: "Send one request through the rate limiter and retry policy",
	Long: `Send a single HTTP request using the configured dispatch settings.

The method defaults to GET, or POST when --data is given. --data accepts a
literal body or @path to read the body from a file.`,
	Example: `  relay call https://api.example.com/v1/contacts
  relay call POST https://api.example.com/v1/contacts -d '{"email":"a@example.com"}' --bearer "$TOKEN"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringArrayP("header", "H", nil, "Request header as \"Key: Value\" (repeatable)")
	callCmd.Flags().StringP("data", "d", "", "Request body, or @file to read it from disk")
	callCmd.Flags().String("bearer", "", "Bearer token for the Authorization header")
	callCmd.Flags().Duration("timeout", 0, "Per-attempt timeout (defaults to dispatch.request_timeout)")
	callCmd.Flags().StringP("output", "o", "raw", "Output format: raw, table, json, yaml, markdown")
	callCmd.Flags().String("connector", "default", "Connector label used for metrics")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	formatValue, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(formatValue, output.FormatRaw)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	data, _ := cmd.Flags().GetString("data")
	body, err := readBody(data)
	if err != nil {
		return err
	}

	method, target := http.MethodGet, args[0]
	if len(args) == 2 {
		method, target = strings.ToUpper(args[0]), args[1]
	} else if body != nil {
		method = http.MethodPost
	}

	headerValues, _ := cmd.Flags().GetStringArray("header")
	header, err := parseHeaders(headerValues)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if token, _ := cmd.Flags().GetString("bearer"); token != "" {
		connector.Bearer(token)(header)
	}
	if body != nil && header.Get("Content-Type") == "" && json.Valid(body) {
		header.Set("Content-Type", "application/json")
	}

	opts := []dispatch.RequestOption{dispatch.WithHeaders(header), dispatch.WithBody(body)}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		opts = append(opts, dispatch.WithTimeout(timeout))
	}
	req, err := dispatch.NewRequest(method, target, opts...)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	connectorName, _ := cmd.Flags().GetString("connector")
	d, err := newDispatcher(cfg, connectorName)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, callErr := d.Do(cmd.Context(), req)
	result := output.NewCallResult("", req.Method(), req.URL(), resp, callErr, time.Since(start))

	rendered, err := output.Render(format, []*output.CallResult{result})
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	}
	return callErr
}

func readBody(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(data, "@"); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return body, nil
	}
	return []byte(data), nil
}
