package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "family-cli",
	Short: "Subscriber family resolution pipeline",
	Long:  "Resolves which subscriber accounts belong to the same household using linkage rules, call-graph behavior and a pairwise classifier.",
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
