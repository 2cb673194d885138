package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Title     string `json:"Title" salesforce:"Title"`
	Company   string `json:"Company" salesforce:"Company"`
	Industry  string `json:"Industry" salesforce:"Industry"`
	Email     string `json:"Email" salesforce:"Email"`
	Website   string `json:"Website" salesforce:"Website"`
	Country   string `json:"Country" salesforce:"Country"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "FirstName", "LastName", "Title", "Company",
	"Industry", "Email", "Website", "Country",
}

// FindLeadsByEmail queries Salesforce for Leads matching any of the given
// email addresses and returns a map of lowercased email to Lead. Emails are
// looked up in chunks to stay under SOQL query length limits.
func FindLeadsByEmail(ctx context.Context, c Client, emails []string) (map[string]Lead, error) {
	found := make(map[string]Lead)

	const chunkSize = 100
	for start := 0; start < len(emails); start += chunkSize {
		end := min(start+chunkSize, len(emails))

		quoted := make([]string, 0, end-start)
		for _, email := range emails[start:end] {
			if email == "" {
				continue
			}
			quoted = append(quoted, "'"+escapeSoql(email)+"'")
		}
		if len(quoted) == 0 {
			continue
		}

		soql := fmt.Sprintf(
			"SELECT %s FROM Lead WHERE Email IN (%s)",
			strings.Join(leadFields, ", "),
			strings.Join(quoted, ", "),
		)

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, "sf: find leads by email")
		}
		for _, l := range leads {
			found[strings.ToLower(l.Email)] = l
		}
	}

	return found, nil
}

// BulkInsertLeads splits records into batches of 200 (SF Collections API limit)
// and sends them via InsertCollection.
func BulkInsertLeads(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))

		results, err := c.InsertCollection(ctx, "Lead", records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// BulkUpdateLeads splits updates into batches of 200 and sends them via
// UpdateCollection.
func BulkUpdateLeads(ctx context.Context, c Client, updates []CollectionRecord) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))

		results, err := c.UpdateCollection(ctx, "Lead", updates[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
