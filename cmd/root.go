package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/instalily/leadqual/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadqual",
	Short: "Batch visitor qualification pipeline",
	Long:  "Ingests identified website visitors from CSV/XLSX, qualifies each against the ICP policy via an LLM, optionally drafts outreach emails, and persists results for export and Salesforce sync.",
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
