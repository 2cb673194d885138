package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/instalily/leadqual/internal/model"
)

// MalformedRowError marks a row that carries no usable identity: no name,
// no company, and no email. Malformed rows are recorded per row and never
// sent to the classifier.
type MalformedRowError struct {
	RowID    string
	RowIndex int
	Reason   string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("ingest: malformed row %s: %s", e.RowID, e.Reason)
}

// sentinelValues are spreadsheet placeholders treated as empty.
var sentinelValues = map[string]struct{}{
	"nan":  {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"null": {},
	"-":    {},
	"--":   {},
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := sentinelValues[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// Normalize converts a raw row into a Visitor. It cleans placeholder
// values and rejects rows with no name, no company, and no email. Pure:
// no I/O, no external calls.
func Normalize(raw RawRow) (model.Visitor, error) {
	get := func(col string) string { return cleanField(raw.Fields[col]) }

	v := model.Visitor{
		RowID:       strconv.Itoa(raw.Index),
		RowIndex:    raw.Index,
		FirstName:   get("first_name"),
		LastName:    get("last_name"),
		Title:       get("title"),
		CompanyName: get("company_name"),
		Industry:    get("industry"),
		Email:       get("email"),
		Website:     get("website"),
		Country:     get("country"),
		LinkedInURL: get("linkedin_url"),
	}

	if v.FullName() == "" && v.CompanyName == "" && v.Email == "" {
		return model.Visitor{}, &MalformedRowError{
			RowID:    v.RowID,
			RowIndex: raw.Index,
			Reason:   "no name, company, or email",
		}
	}

	return v, nil
}

// NormalizeAll normalizes every row, splitting the malformed ones out so
// the caller can record them without aborting the batch.
func NormalizeAll(rows []RawRow) (visitors []model.Visitor, malformed []*MalformedRowError) {
	for _, raw := range rows {
		v, err := Normalize(raw)
		if err != nil {
			var mre *MalformedRowError
			if errors.As(err, &mre) {
				malformed = append(malformed, mre)
			}
			continue
		}
		visitors = append(visitors, v)
	}
	return visitors, malformed
}
