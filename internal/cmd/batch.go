package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/config"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/internal/output"
	"github.com/namelens/relay/internal/server"
	"github.com/namelens/relay/pkg/connector"
	"github.com/namelens/relay/pkg/dispatch"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Send every request in a YAML batch file",
	Long: `Read requests from a YAML file and send them through one shared
dispatcher, so the whole batch respects a single rate limit.

Example file:

  base_url: https://api.example.com/v3
  bearer: ${VENDOR_TOKEN}
  requests:
    - name: list-contacts
      path: /contacts
      query: {limit: "50"}
    - name: create-contact
      method: POST
      path: /contacts
      body: {email: ada@example.com}`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", "table", "Output format: table, json, yaml, markdown, raw")
	batchCmd.Flags().Int("concurrency", 0, "Concurrent workers (defaults to batch.concurrency)")
	batchCmd.Flags().Bool("fail-fast", false, "Stop dispatching after the first failed call")
	batchCmd.Flags().Int("metrics-port", 0, "Serve /metrics on this port while the batch runs (defaults to metrics.port)")
	batchCmd.Flags().String("connector", "batch", "Connector label used for metrics")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	formatValue, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(formatValue, output.FormatTable)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Batch.Concurrency
	}
	if concurrency < 1 {
		return apperrors.NewInvalidInputError("concurrency must be at least 1")
	}
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	file, err := loadBatchFile(args[0])
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	connectorName, _ := cmd.Flags().GetString("connector")
	d, err := newDispatcher(cfg, connectorName)
	if err != nil {
		return err
	}

	requests, err := file.requests(d)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	ctx := cmd.Context()
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")
	if metricsPort == 0 {
		metricsPort = cfg.Metrics.Port
	}
	if cfg.Metrics.Enabled && metricsPort > 0 {
		stop := serveBatchMetrics(cfg, metricsPort)
		defer stop()
	}

	startedAt := time.Now()
	names := make([]string, len(file.Requests))
	for i, item := range file.Requests {
		names[i] = item.Name
	}
	results := runBatchCalls(ctx, d, names, requests, concurrency, failFast)

	rendered, err := output.Render(format, results)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
	}

	logThroughput(len(results), startedAt)
	return batchError(results)
}

type batchJob struct {
	index int
	name  string
	req   *dispatch.Request
}

// runBatchCalls fans requests out to a fixed worker pool. Results keep the
// input order; calls skipped after a fail-fast stop are recorded as canceled.
func runBatchCalls(ctx context.Context, doer connector.Doer, names []string, requests []*dispatch.Request, concurrency int, failFast bool) []*output.CallResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*output.CallResult, len(requests))
	jobs := make(chan batchJob)

	var (
		wg       sync.WaitGroup
		stopOnce sync.Once
	)

	worker := func() {
		defer wg.Done()
		for job := range jobs {
			start := time.Now()
			resp, err := doer.Do(ctx, job.req)
			results[job.index] = output.NewCallResult(job.name, job.req.Method(), job.req.URL(), resp, err, time.Since(start))
			if err != nil && failFast {
				stopOnce.Do(cancel)
			}
		}
	}

	if concurrency > len(requests) {
		concurrency = len(requests)
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i, req := range requests {
		select {
		case <-ctx.Done():
			break sendLoop
		case jobs <- batchJob{index: i, name: names[i], req: req}:
		}
	}
	close(jobs)
	wg.Wait()

	for i, result := range results {
		if result == nil {
			err := &dispatch.Error{Kind: dispatch.KindCanceled, Message: "not dispatched", Err: ctx.Err()}
			results[i] = output.NewCallResult(names[i], requests[i].Method(), requests[i].URL(), nil, err, 0)
		}
	}
	return results
}

// batchError wraps the first failure so the exit code follows its kind.
func batchError(results []*output.CallResult) error {
	summary := output.Summarize(results)
	if summary.Failed == 0 {
		return nil
	}
	for _, r := range results {
		if r != nil && !r.OK() {
			return fmt.Errorf("%d of %d calls failed: %w", summary.Failed, summary.Total, r.Err())
		}
	}
	return nil
}

func serveBatchMetrics(cfg *config.Config, port int) func() {
	serverCfg := cfg.Server
	serverCfg.Port = port
	srv := server.New(serverCfg, server.Options{
		Build:   buildInfo(),
		Metrics: observability.MetricsHandler(),
	})

	go func() {
		if err := srv.Start(); err != nil {
			observability.CLILogger.Warn("Metrics listener failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func logThroughput(count int, startedAt time.Time) {
	elapsed := time.Since(startedAt)
	if count <= 0 || elapsed <= 0 {
		return
	}
	observability.CLILogger.Info("Batch throughput",
		zap.Int("calls", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", float64(count)/elapsed.Seconds()))
}
