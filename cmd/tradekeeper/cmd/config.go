package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradekeeper/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate the effective configuration

Examples:
  tradekeeper config init -o tradekeeper.yaml
  tradekeeper config validate -c tradekeeper.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the file, .env and environment together",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "tradekeeper.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  tradekeeper run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	d := cfg.Durations()
	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Symbols: %v (volume %.2f)\n", cfg.Trading.Symbols, cfg.Trading.Volume)
	fmt.Printf("  Sessions: %s %s\n", cfg.Trading.Sessions, cfg.Trading.Timezone)
	fmt.Printf("  Broker: %s\n", cfg.Broker.Mode)
	fmt.Printf("  Monitor: every %s, analysis every %s\n", d.MonitorInterval, d.AnalysisInterval)
	fmt.Printf("  Breaker: %d losses per day\n", cfg.Risk.MaxLossesPerDay)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
