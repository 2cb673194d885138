package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/instalily/leadqual/internal/crm"
	"github.com/instalily/leadqual/internal/export"
	"github.com/instalily/leadqual/internal/model"
)

// defaultLeadsLimit bounds the cross-run leads view.
const defaultLeadsLimit = 200

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Work with qualified leads across runs",
	Long:  "Commands for listing, exporting, and syncing the newest qualified leads from all runs.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List qualified leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := st.ListQualifiedLeads(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No qualified leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export qualified leads to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := st.ListQualifiedLeads(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "leads export")
		}

		if err := export.WriteLeadsCSV(leads, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Exported %d leads to %s\n", len(leads), args[0])
		return nil
	},
}

// -- leads sync --

var leadsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push qualified leads to Salesforce",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := st.ListQualifiedLeads(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "leads sync")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No qualified leads to sync.")
			return nil
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		report, err := crm.NewSyncer(sf).Sync(ctx, leads)
		if report != nil {
			fmt.Fprintf(os.Stdout, "Synced %d leads: %d created, %d updated, %d skipped, %d failed\n",
				report.Total, report.Created, report.Updated, report.Skipped, report.Failed)
		}
		return err
	},
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.QualifiedLead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTITLE\tCOMPANY\tEMAIL\tSCORE\tQUALIFIED\tRUN")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t-----\t-----\t---------\t---")

	for _, l := range leads {
		name := l.FirstName + " " + l.LastName
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			name,
			l.Title,
			l.CompanyName,
			l.Email,
			l.Score,
			l.QualifiedAt.Format("2006-01-02 15:04"),
			truncateID(l.RunID),
		)
	}
	_ = w.Flush()
}

func init() {
	leadsListCmd.Flags().Int("limit", defaultLeadsLimit, "max number of leads to display")
	leadsExportCmd.Flags().Int("limit", defaultLeadsLimit, "max number of leads to export")
	leadsSyncCmd.Flags().Int("limit", defaultLeadsLimit, "max number of leads to sync")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsSyncCmd)
	rootCmd.AddCommand(leadsCmd)
}
