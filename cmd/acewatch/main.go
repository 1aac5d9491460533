package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	pkgconfig "github.com/Vodeneev/acewatch/internal/pkg/config"
	"github.com/Vodeneev/acewatch/internal/pkg/logging"
)

const serviceName = "acewatch"

var (
	configPath string
	cfg        *pkgconfig.Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Tracks finished virtual tennis matches and alerts on win streaks",
	Long: "Polls a live events page with a headless browser, records every finished match of the configured " +
		"matchups, keeps head-to-head and streak tables up to date and alerts when a streak reaches a rule threshold.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := pkgconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c

		_, closer, err := logging.SetupLogger(cfg.Logging, serviceName)
		if err != nil {
			slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
			return nil
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (can be set via CONFIG_PATH env var)")
	rootCmd.AddCommand(runCmd, recomputeCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("acewatch failed", "error", err)
		os.Exit(1)
	}
}
