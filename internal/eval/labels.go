// Package eval scores a finished run against a hand-labeled visitor list.
package eval

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/instalily/leadqual/internal/ingest"
)

// Label is one hand-labeled visitor. Matching against run results uses the
// email when present, otherwise name plus company.
type Label struct {
	FirstName string
	LastName  string
	Company   string
	Email     string
	Qualified bool
}

// Display returns the best human-readable handle for reports.
func (l Label) Display() string {
	name := strings.TrimSpace(l.FirstName + " " + l.LastName)
	switch {
	case name != "" && l.Company != "":
		return name + " (" + l.Company + ")"
	case name != "":
		return name
	case l.Company != "":
		return l.Company
	default:
		return l.Email
	}
}

// ReadLabels reads a labeled visitor list from a .csv or .xlsx file. Each
// row needs a qualified column plus an email or a name/company to match on;
// rows with neither are rejected.
func ReadLabels(path string) ([]Label, error) {
	rows, err := ingest.ReadFile(path)
	if err != nil {
		return nil, err
	}

	labels := make([]Label, 0, len(rows))
	for _, row := range rows {
		raw, ok := row.Fields["qualified"]
		if !ok {
			return nil, eris.Errorf("eval: row %d has no qualified column", row.Index)
		}
		qualified, err := parseLabel(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "eval: row %d", row.Index)
		}

		l := Label{
			FirstName: row.Fields["first_name"],
			LastName:  row.Fields["last_name"],
			Company:   row.Fields["company_name"],
			Email:     row.Fields["email"],
			Qualified: qualified,
		}
		if l.Email == "" && l.FirstName == "" && l.LastName == "" && l.Company == "" {
			return nil, eris.Errorf("eval: row %d has nothing to match on", row.Index)
		}
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return nil, eris.New("eval: label file has no rows")
	}
	return labels, nil
}

func parseLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "qualified":
		return true, nil
	case "false", "no", "n", "0", "disqualified", "not qualified":
		return false, nil
	default:
		return false, eris.Errorf("unrecognized label %q", s)
	}
}
