package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/export"
	"github.com/telco-insight/family-cli/internal/resolve"
)

var thresholdPairsPath string

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Pick the F1-optimal link threshold from labeled validation pairs",
	Long:  "Reads held-out labeled pairs with predicted probabilities and reports the probability cutoff maximizing F1. The pairs must be disjoint from the classifier's training data.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pairs, err := export.ReadLabeledPairs(thresholdPairsPath)
		if err != nil {
			return err
		}

		m, err := resolve.BestThresholdPairs(pairs)
		if err != nil {
			return err
		}

		zap.L().Info("threshold selected",
			zap.Int("pairs", len(pairs)),
			zap.Float64("threshold", m.Threshold),
			zap.Float64("precision", m.Precision),
			zap.Float64("recall", m.Recall),
			zap.Float64("f1", m.F1),
		)
		cmd.Printf("threshold=%.2f precision=%.4f recall=%.4f f1=%.4f\n", m.Threshold, m.Precision, m.Recall, m.F1)
		return nil
	},
}

func init() {
	thresholdCmd.Flags().StringVar(&thresholdPairsPath, "pairs", "", "CSV of labeled validation pairs (required)")
	_ = thresholdCmd.MarkFlagRequired("pairs")
	rootCmd.AddCommand(thresholdCmd)
}
