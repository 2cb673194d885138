package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/instalily/leadqual/internal/ingest"
	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/pipeline"
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify <file>",
	Short: "Qualify a batch of website visitors",
	Long:  "Reads visitors from a CSV or XLSX file, classifies each against the ICP policy, and persists results. Processes a bounded preview unless --all is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("qualify"); err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		emails, _ := cmd.Flags().GetBool("emails")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		preview, _ := cmd.Flags().GetInt("preview")
		resume, _ := cmd.Flags().GetString("resume")
		output, _ := cmd.Flags().GetString("output")

		rows, err := ingest.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "qualify: read input")
		}
		visitors, malformed := ingest.NormalizeAll(rows)
		if len(visitors)+len(malformed) == 0 {
			return eris.New("qualify: input file has no data rows")
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			printDryRun(visitors, malformed)
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pol, err := initPolicy(ctx)
		if err != nil {
			return err
		}

		classifier, err := initClassifier(pol)
		if err != nil {
			return err
		}

		drafter := initDrafter(pol)
		if emails && drafter == nil {
			zap.L().Warn("email drafting requested but openai.key is not set, skipping drafts")
		}

		runner := pipeline.NewRunner(st, classifier, drafter)
		go watchProgress(ctx, runner)

		if concurrency == 0 {
			concurrency = cfg.Pipeline.Concurrency
		}
		if preview == 0 {
			preview = cfg.Pipeline.PreviewRows
		}

		opts := pipeline.Options{
			SourceFile:     args[0],
			ProcessAllRows: all || cfg.Pipeline.ProcessAllRows,
			PreviewRows:    preview,
			GenerateEmails: emails || cfg.Pipeline.GenerateEmails,
			Concurrency:    concurrency,
			ResumeRunID:    resume,
		}
		result, err := runner.Run(ctx, visitors, malformed, opts)
		if result != nil {
			printSummary(result)
		}
		if err != nil {
			return err
		}

		if output != "" {
			return exportRun(ctx, st, result.Run.ID, output)
		}
		return nil
	},
}

// watchProgress logs tracker snapshots while the run is going.
func watchProgress(ctx context.Context, runner *pipeline.Runner) {
	var sub <-chan pipeline.Snapshot
	for sub == nil {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
		if tr := runner.Tracker(); tr != nil {
			sub = tr.Subscribe()
		}
	}
	for snap := range sub {
		zap.L().Info("progress",
			zap.Int("processed", snap.Processed),
			zap.Int("total", snap.Total),
			zap.Int("qualified", snap.Qualified),
			zap.Int("failed", snap.Failed),
		)
	}
}

// printDryRun shows what a run would process, without classifying anything.
func printDryRun(visitors []model.Visitor, malformed []*ingest.MalformedRowError) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tNAME\tTITLE\tCOMPANY\tEMAIL")
	for _, v := range visitors {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			v.RowIndex, v.FullName(), v.Title, v.CompanyName, v.Email)
	}
	_ = w.Flush()

	fmt.Fprintf(os.Stdout, "%d rows ready, %d malformed\n", len(visitors), len(malformed))
	for _, m := range malformed {
		fmt.Fprintf(os.Stdout, "  row %d: %s\n", m.RowIndex, m.Reason)
	}
}

func printSummary(result *pipeline.Result) {
	s := result.Summary
	fmt.Fprintf(os.Stdout, "Run %s: %s\n", result.Run.ID, result.Run.Status)
	fmt.Fprintf(os.Stdout, "  rows:      %d\n", s.TotalRows)
	fmt.Fprintf(os.Stdout, "  processed: %d\n", s.Processed)
	fmt.Fprintf(os.Stdout, "  qualified: %d\n", s.Qualified)
	fmt.Fprintf(os.Stdout, "  failed:    %d\n", s.Failed)
	if s.Succeeded > 0 {
		fmt.Fprintf(os.Stdout, "  rate:      %.1f%%\n", s.QualifiedRate())
	}
	if s.EmailsDrafted > 0 {
		fmt.Fprintf(os.Stdout, "  drafted:   %d\n", s.EmailsDrafted)
	}
	fmt.Fprintf(os.Stdout, "  elapsed:   %s\n", s.Elapsed.Round(time.Millisecond))
}

func init() {
	qualifyCmd.Flags().Bool("dry-run", false, "print the normalized rows and exit without classifying")
	qualifyCmd.Flags().Bool("all", false, "process every row instead of a bounded preview")
	qualifyCmd.Flags().Bool("emails", false, "draft outreach emails for qualified visitors")
	qualifyCmd.Flags().Int("concurrency", 0, "number of concurrent workers (default from config)")
	qualifyCmd.Flags().Int("preview", 0, "rows to process in preview mode (default from config)")
	qualifyCmd.Flags().String("resume", "", "resume an existing run by ID, skipping finished rows")
	qualifyCmd.Flags().String("output", "", "export results to this file after the run (.csv or .xlsx)")
	rootCmd.AddCommand(qualifyCmd)
}
