package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/pkg/dispatch"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe a running relay sidecar",
	Long: `Call the readiness probe of a running sidecar. The probe itself goes
through the dispatch runtime, so transient failures are retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		target, _ := cmd.Flags().GetString("url")
		if target == "" {
			target = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		}
		target = strings.TrimRight(target, "/") + "/health/ready"

		timeout, _ := cmd.Flags().GetDuration("timeout")
		d := dispatch.New(
			dispatch.WithHTTPClient(http.DefaultClient, timeout),
			dispatch.WithPolicy(dispatch.Policy{MaxRetries: 2, Delay: 500 * time.Millisecond}),
		)
		req, err := dispatch.NewRequest(http.MethodGet, target)
		if err != nil {
			return err
		}

		resp, err := d.Do(cmd.Context(), req)
		if err != nil {
			observability.CLILogger.Error("❌ Sidecar not ready", zap.String("url", target), zap.Error(err))
			return err
		}
		observability.CLILogger.Info("✅ Sidecar ready",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempts", resp.Attempts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("url", "", "Sidecar base URL (defaults to server.host:server.port)")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "Per-attempt timeout")
}
