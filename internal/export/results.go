// Package export writes qualification results and lead lists to CSV and
// XLSX files.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/instalily/leadqual/internal/model"
)

// resultColumns defines the ordered per-run export columns.
var resultColumns = []string{
	"Row",
	"First Name",
	"Last Name",
	"Title",
	"Company",
	"Industry",
	"Email",
	"Website",
	"Country",
	"LinkedIn",
	"Status",
	"Qualified",
	"Score",
	"Rationale",
	"Visitor Summary",
	"Company Summary",
	"Error",
	"Email Subject",
	"Email Body",
}

// WriteResults writes a run's results to path, picking the format from the
// extension (.csv or .xlsx). Results are expected in input-row order;
// drafts are keyed by row ID.
func WriteResults(results []model.QualificationResult, drafts map[string]model.EmailDraft, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteResultsCSV(results, drafts, path)
	case ".xlsx":
		return WriteResultsXLSX(results, drafts, path)
	default:
		return eris.Errorf("export: unsupported format %q", filepath.Ext(path))
	}
}

// WriteResultsCSV writes a run's results as CSV.
func WriteResultsCSV(results []model.QualificationResult, drafts map[string]model.EmailDraft, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	return StreamResultsCSV(f, results, drafts)
}

// StreamResultsCSV writes a run's results as CSV to out. Used for both file
// export and HTTP downloads.
func StreamResultsCSV(out io.Writer, results []model.QualificationResult, drafts map[string]model.EmailDraft) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write(resultColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range results {
		if err := w.Write(buildResultRow(r, drafts)); err != nil {
			return eris.Wrapf(err, "export: write row %s", r.RowID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

// WriteResultsXLSX writes a run's results as a single-sheet XLSX workbook.
func WriteResultsXLSX(results []model.QualificationResult, drafts map[string]model.EmailDraft, path string) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range resultColumns {
		header.AddCell().SetString(col)
	}
	for _, r := range results {
		row := sheet.AddRow()
		for _, cell := range buildResultRow(r, drafts) {
			row.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(wb.Save(path), "export: save xlsx")
}

func buildResultRow(r model.QualificationResult, drafts map[string]model.EmailDraft) []string {
	var subject, body string
	if d, ok := drafts[r.RowID]; ok {
		subject = d.Subject
		body = d.Body
	}
	return []string{
		r.RowID,
		r.Visitor.FirstName,
		r.Visitor.LastName,
		r.Visitor.Title,
		r.Visitor.CompanyName,
		r.Visitor.Industry,
		r.Visitor.Email,
		r.Visitor.Website,
		r.Visitor.Country,
		r.Visitor.LinkedInURL,
		string(r.Status),
		formatBool(r.Qualified),
		strconv.Itoa(r.Score),
		strings.Join(r.Rationale, "; "),
		r.VisitorSummary,
		r.CompanySummary,
		r.Error,
		subject,
		body,
	}
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// DraftsByRow indexes a run's drafts by row ID for export.
func DraftsByRow(drafts []model.EmailDraft) map[string]model.EmailDraft {
	m := make(map[string]model.EmailDraft, len(drafts))
	for _, d := range drafts {
		m[d.RowID] = d
	}
	return m
}
