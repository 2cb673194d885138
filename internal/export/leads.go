package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/instalily/leadqual/internal/model"
)

// leadColumns defines the ordered qualified-leads export columns.
var leadColumns = []string{
	"First Name",
	"Last Name",
	"Title",
	"Company",
	"Industry",
	"Email",
	"Website",
	"Country",
	"Score",
	"Qualified At",
	"Run",
}

// WriteLeadsCSV writes the cross-run qualified-leads view as CSV, newest
// first as given.
func WriteLeadsCSV(leads []model.QualifiedLead, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(leadColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, l := range leads {
		row := []string{
			l.FirstName,
			l.LastName,
			l.Title,
			l.CompanyName,
			l.Industry,
			l.Email,
			l.Website,
			l.Country,
			strconv.Itoa(l.Score),
			l.QualifiedAt.Format(time.RFC3339),
			l.RunID,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write lead row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}
