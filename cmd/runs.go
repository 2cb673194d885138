package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/instalily/leadqual/internal/eval"
	"github.com/instalily/leadqual/internal/export"
	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect qualification run history",
	Long:  "Commands for listing, viewing, and exporting qualification runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List qualification runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

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

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id> <file>",
	Short: "Export a run's results to CSV or XLSX",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return exportRun(ctx, st, args[0], args[1])
	},
}

// exportRun writes a run's results, with any email drafts, to path.
func exportRun(ctx context.Context, st store.Store, runID, path string) error {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "export run")
	}
	if run == nil {
		return eris.Errorf("run %s not found", runID)
	}

	results, err := st.ListResults(ctx, run.ID)
	if err != nil {
		return eris.Wrap(err, "export run: list results")
	}
	drafts, err := st.ListDrafts(ctx, run.ID)
	if err != nil {
		return eris.Wrap(err, "export run: list drafts")
	}

	if err := export.WriteResults(results, export.DraftsByRow(drafts), path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Exported %d results to %s\n", len(results), path)
	return nil
}

// -- runs eval --

var runsEvalCmd = &cobra.Command{
	Use:   "eval <run-id>",
	Short: "Score a run against a hand-labeled visitor list",
	Long: "Compares a run's classifications against a labeled CSV or XLSX file " +
		"and reports precision, recall, and F1. The label file needs a " +
		"'qualified' column plus an email or name/company per row.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		labelsPath, _ := cmd.Flags().GetString("labels")
		labels, err := eval.ReadLabels(labelsPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs eval")
		}
		if run == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		results, err := st.ListResults(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs eval: list results")
		}

		formatEvalReport(os.Stdout, eval.Compare(results, labels))
		return nil
	},
}

// formatEvalReport writes a labels-vs-classifier comparison to w.
func formatEvalReport(out io.Writer, rep *eval.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Labeled rows:\t%d\n", rep.Labeled)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", rep.Matched)
	_, _ = fmt.Fprintf(w, "Unmatched:\t%d\n", len(rep.Unmatched))
	_, _ = fmt.Fprintf(w, "Unscored:\t%d\n", len(rep.Unscored))
	_, _ = fmt.Fprintf(w, "Precision:\t%.1f%%\n", rep.Precision()*100)
	_, _ = fmt.Fprintf(w, "Recall:\t%.1f%%\n", rep.Recall()*100)
	_, _ = fmt.Fprintf(w, "F1:\t%.1f%%\n", rep.F1()*100)
	_ = w.Flush()

	if len(rep.Missed) > 0 {
		_, _ = fmt.Fprintln(out, "\nMissed (labeled qualified, classified as not):")
		for _, d := range rep.Missed {
			_, _ = fmt.Fprintf(out, "  - %s\n", d)
		}
	}
	if len(rep.OverQualified) > 0 {
		_, _ = fmt.Fprintln(out, "\nOver-qualified (labeled not qualified, classified as qualified):")
		for _, d := range rep.OverQualified {
			_, _ = fmt.Fprintf(out, "  - %s\n", d)
		}
	}
	if len(rep.Unmatched) > 0 {
		_, _ = fmt.Fprintln(out, "\nUnmatched labels:")
		for _, d := range rep.Unmatched {
			_, _ = fmt.Fprintf(out, "  - %s\n", d)
		}
	}
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Completed  int
	Failed     int
	Active     int
	Rows       int
	Qualified  int
	AvgDurSecs float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		s.Rows += r.ProcessedRows
		s.Qualified += r.QualifiedRows

		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Active++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Active:\t%d\n", s.Active)
	_, _ = fmt.Fprintf(w, "Rows processed:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "Rows qualified:\t%d\n", s.Qualified)
	if s.Rows > 0 {
		_, _ = fmt.Fprintf(w, "Qualified rate:\t%.1f%%\n", float64(s.Qualified)/float64(s.Rows)*100)
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tROWS\tPROCESSED\tQUALIFIED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t---------\t---------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		source := r.SourceFile
		if len(source) > 30 {
			source = source[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			source,
			r.Status,
			r.TotalRows,
			r.ProcessedRows,
			r.QualifiedRows,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (pending, running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsEvalCmd.Flags().String("labels", "", "path to the labeled visitor list (.csv or .xlsx)")
	_ = runsEvalCmd.MarkFlagRequired("labels")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsEvalCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}
