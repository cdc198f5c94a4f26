package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective dispatch configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		log := observability.CLILogger
		deps := crucible.GetVersion()

		log.Info("=== relay Environment Information ===")
		log.Info("Application:")
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Gofulmen:   "+deps.Gofulmen, zap.String("gofulmen_version", deps.Gofulmen))
		log.Info("  Crucible:   "+deps.Crucible, zap.String("crucible_version", deps.Crucible))
		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)

		rt := cfg.Dispatch.Runtime()
		log.Info("Dispatch:")
		if rt.MaxRequestsPerWindow > 0 {
			log.Info(fmt.Sprintf("  Limit:          %d per %s", rt.MaxRequestsPerWindow, rt.Window))
		} else if rt.MinRequestInterval > 0 {
			log.Info("  Limit:          1 per " + rt.MinRequestInterval.String())
		} else {
			log.Info("  Limit:          unlimited")
		}
		log.Info(fmt.Sprintf("  Max Retries:    %d", rt.MaxRetries), zap.Int("max_retries", rt.MaxRetries))
		log.Info("  Retry Delay:    " + rt.RetryDelay.String())
		log.Info("  Timeout:        " + rt.RequestTimeout.String())

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none)"
		}
		log.Info("  Config File:    " + configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
