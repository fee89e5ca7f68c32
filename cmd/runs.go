package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/telco-insight/family-cli/internal/model"
	"github.com/telco-insight/family-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect resolution run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFAMILIES\tSUBSCRIBERS\tTHRESHOLD\tCREATED")
	for _, r := range runs {
		families, subscribers := "-", "-"
		if r.Metrics != nil {
			families = fmt.Sprintf("%d", r.Metrics.Families)
			subscribers = fmt.Sprintf("%d", r.Metrics.Subscribers)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			r.ID, r.Status, families, subscribers, r.Params.Threshold,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	runsCmd.Flags().String("status", "", "filter by status (running|complete|failed)")
	runsCmd.Flags().Int("limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
