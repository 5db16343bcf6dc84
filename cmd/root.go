package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veriscope/authenticity-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "authenticity-engine",
	Short: "Multi-provider media authenticity analysis",
	Long:  "Fans media items out to deepfake-detection providers, folds their verdicts into a consensus with a moderation recommendation, and persists the audit trail.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
