package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/classifier"
	"github.com/telco-insight/family-cli/internal/export"
	"github.com/telco-insight/family-cli/internal/ingest"
	"github.com/telco-insight/family-cli/internal/model"
	"github.com/telco-insight/family-cli/internal/resolve"
)

var (
	resolveWorkbook  string
	resolveSheet     string
	resolveThreshold float64
	resolveOutDir    string
	resolveNoPersist bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve subscriber families from a call-detail workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		threshold := cfg.Resolve.Threshold
		if cmd.Flags().Changed("threshold") {
			threshold = resolveThreshold
		}
		sheet := cfg.Ingest.Sheet
		if resolveSheet != "" {
			sheet = resolveSheet
		}
		if sheet == "" {
			names, err := ingest.SheetNames(resolveWorkbook)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return eris.Errorf("workbook %s has no sheets", resolveWorkbook)
			}
			sheet = names[0]
		}

		opts := resolve.Options{
			Params: resolve.Params{
				MaxGroupFull:     cfg.Resolve.MaxGroupFull,
				SampleK:          cfg.Resolve.SampleK,
				MaxCallNeighbors: cfg.Resolve.MaxCallNeighbors,
				Seed:             cfg.Resolve.Seed,
			},
			RuleProbability: cfg.Resolve.RuleProbability,
			Threshold:       threshold,
		}

		scorer, err := initScorer()
		if err != nil {
			return err
		}
		resolver, err := resolve.New(opts, scorer)
		if err != nil {
			return err
		}

		records, err := ingest.ReadSheet(resolveWorkbook, sheet)
		if err != nil {
			return err
		}
		subs := ingest.DeriveSubscribers(records)
		universe := make(map[string]bool, len(subs))
		for _, s := range subs {
			universe[s.ID] = true
		}
		edges := ingest.DeriveCallEdges(records, universe)

		params := model.RunParams{
			Workbook:         resolveWorkbook,
			Seed:             opts.Params.Seed,
			MaxGroupFull:     opts.Params.MaxGroupFull,
			SampleK:          opts.Params.SampleK,
			MaxCallNeighbors: opts.Params.MaxCallNeighbors,
			RuleProbability:  opts.RuleProbability,
			Threshold:        opts.Threshold,
		}

		result, err := resolver.Run(ctx, subs, edges)
		if err != nil {
			return err
		}

		if !resolveNoPersist {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			run, err := st.CreateRun(ctx, params)
			if err != nil {
				return err
			}
			if err := st.SaveScoredPairs(ctx, run.ID, result.Pairs); err != nil {
				return err
			}
			if err := st.SaveFamilyMembers(ctx, run.ID, result.Members); err != nil {
				return err
			}
			if err := st.SaveFamilyProfiles(ctx, run.ID, result.Profiles); err != nil {
				return err
			}
			if err := st.CompleteRun(ctx, run.ID, result.Metrics); err != nil {
				return err
			}
			zap.L().Info("resolve: run persisted", zap.String("run_id", run.ID))
		}

		if resolveOutDir != "" {
			if err := export.WriteScoredPairs(filepath.Join(resolveOutDir, "scored_pairs.csv"), result.Pairs); err != nil {
				return err
			}
			if err := export.WriteFamilyMembers(filepath.Join(resolveOutDir, "family_members.csv"), result.Members); err != nil {
				return err
			}
		}

		return nil
	},
}

// initScorer loads the configured model weights, falling back to a rule-only
// run when none are configured: unmatched pairs then score 0 and only rule
// evidence links families.
func initScorer() (classifier.Scorer, error) {
	if cfg.Resolve.ModelWeights == "" {
		zap.L().Warn("resolve: no model weights configured, running rule-only")
		return classifier.Constant(0), nil
	}
	return classifier.LoadLogistic(cfg.Resolve.ModelWeights)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveWorkbook, "workbook", "", "path to the call-detail XLSX workbook (required)")
	resolveCmd.Flags().StringVar(&resolveSheet, "sheet", "", "sheet to resolve (default: first sheet)")
	resolveCmd.Flags().Float64Var(&resolveThreshold, "threshold", 0, "link probability threshold (default from config)")
	resolveCmd.Flags().StringVar(&resolveOutDir, "out-dir", "", "directory to export CSV tables to")
	resolveCmd.Flags().BoolVar(&resolveNoPersist, "no-persist", false, "skip persisting the run to the store")
	_ = resolveCmd.MarkFlagRequired("workbook")
	rootCmd.AddCommand(resolveCmd)
}
