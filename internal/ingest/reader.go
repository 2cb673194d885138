// Package ingest reads visitor export files and normalizes their rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
)

// RawRow is one data row from an input file, keyed by canonical column name.
// Index is the 1-based position of the row within the file's data rows and
// doubles as the row's stable identifier across re-reads.
type RawRow struct {
	Index  int
	Fields map[string]string
}

// ReadFile reads visitor rows from a .csv or .xlsx file.
func ReadFile(path string) ([]RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open file")
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads visitor rows from CSV data. The first row is the header.
// Input that is not valid UTF-8 is decoded as Windows-1252, which covers
// the exports most traffic-analytics vendors produce.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}
	data = decodeBytes(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: parse csv")
	}
	if len(records) == 0 {
		return nil, eris.New("ingest: empty file")
	}

	return mapRows(records[0], records[1:]), nil
}

// ReadXLSX reads visitor rows from the first sheet of an XLSX file. The
// first row is the header.
func ReadXLSX(path string) ([]RawRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	var records [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return nil, eris.New("ingest: empty sheet")
	}

	return mapRows(records[0], records[1:]), nil
}

// decodeBytes strips a UTF-8 BOM and transcodes Windows-1252 input.
func decodeBytes(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

func mapRows(header []string, records [][]string) []RawRow {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = CanonicalColumn(h)
	}

	rows := make([]RawRow, 0, len(records))
	for i, record := range records {
		fields := make(map[string]string, len(cols))
		for j, val := range record {
			if j >= len(cols) || cols[j] == "" {
				continue
			}
			fields[cols[j]] = strings.TrimSpace(val)
		}
		rows = append(rows, RawRow{Index: i + 1, Fields: fields})
	}
	return rows
}

// columnAliases maps the header spellings seen across vendor exports to
// canonical column names.
var columnAliases = map[string]string{
	"firstname":       "first_name",
	"first name":      "first_name",
	"first_name":      "first_name",
	"lastname":        "last_name",
	"last name":       "last_name",
	"last_name":       "last_name",
	"title":           "title",
	"job title":       "title",
	"jobtitle":        "title",
	"companyname":     "company_name",
	"company name":    "company_name",
	"company_name":    "company_name",
	"company":         "company_name",
	"industry":        "industry",
	"email":           "email",
	"email address":   "email",
	"website":         "website",
	"company website": "website",
	"country":         "country",
	"linkedinurl":     "linkedin_url",
	"linkedin url":    "linkedin_url",
	"linkedin_url":    "linkedin_url",
	"linkedin":        "linkedin_url",

	// Hand-label columns, used by labeled evaluation files.
	"qualified":  "qualified",
	"label":      "qualified",
	"hand label": "qualified",
}

// CanonicalColumn maps a raw header cell to its canonical column name.
// Unknown headers map to "" and their cells are dropped.
func CanonicalColumn(header string) string {
	return columnAliases[strings.ToLower(strings.TrimSpace(header))]
}
