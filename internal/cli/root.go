// Package cli implements the framesearch command line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bdougie/framesearch/internal/config"
)

var (
	logLevel string
	logFile  string

	cfg       *config.Config
	logger    *slog.Logger
	closeLogs func() error
)

var rootCmd = &cobra.Command{
	Use:   "framesearch",
	Short: "Turn a video into a searchable index of captioned key frames",
	Long: `framesearch splits a video into scenes, extracts one key frame per scene,
captions each frame with a vision model and embeds the caption so the
frames can be searched with natural language queries.

Configuration is read from the environment (and an optional .env file).
Command line flags override environment values.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}

		logger, closeLogs, err = config.SetupLogger(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLogs != nil {
			return closeLogs()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(detectCmd)
}
