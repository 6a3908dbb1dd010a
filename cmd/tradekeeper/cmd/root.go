package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradekeeper/config"
	"github.com/rustyeddy/tradekeeper/internal/app"
	"github.com/rustyeddy/tradekeeper/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "tradekeeper",
	Short: "Trade lifecycle reconciliation and risk gating engine",
	Long: `Tradekeeper keeps local trade state in step with the broker.

It provides tools for:
  - Reconciling pending and live trades against broker positions
  - Archiving closed trades to a permanent ledger
  - Gating new trades on session windows, a daily loss breaker and a hard filter
  - Applying analyst decisions and notifying operators
  - Inspecting the ledger and engine status

Configuration comes from an optional YAML/JSON file, then .env files,
then the process environment.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFiles []string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "env files to load (default .env)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildApp loads config, the logger and the wired engine. The returned
// cleanup closes the app and flushes the logger.
func buildApp() (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
		_ = log.Sync()
	}
	return a, cleanup, nil
}
