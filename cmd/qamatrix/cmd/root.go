package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/solatis/qamatrix/internal/core/config"
	"github.com/solatis/qamatrix/internal/core/logging"
)

var (
	configFile string

	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "qamatrix",
	Short: "Compile constraint matrices into quality conditions",
	Long: `qamatrix converts attribute and connectivity matrices (semicolon separated
text) into quality condition parameter sets, and renders stored quality
conditions back into matrices.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(configFile, cmd.Flags()); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("catalog", "", "YAML catalog file (default: catalog tables of the database)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, console)")
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
