// Package crm pushes qualified leads into Salesforce as Lead records.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/pkg/salesforce"
)

// leadSource tags records created by this tool so they are traceable in SF.
const leadSource = "Website Visitor Qualification"

// SyncReport summarizes the outcome of a lead sync.
type SyncReport struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Syncer mirrors qualified leads into Salesforce. Leads are matched to
// existing SF Leads by email; matches are updated, the rest inserted.
type Syncer struct {
	client salesforce.Client
}

// NewSyncer creates a Syncer backed by the given Salesforce client.
func NewSyncer(client salesforce.Client) *Syncer {
	return &Syncer{client: client}
}

// Sync pushes the given qualified leads to Salesforce and returns a report.
// Leads that cannot form a valid SF Lead record (no last name and no company)
// are skipped, not failed.
func (s *Syncer) Sync(ctx context.Context, leads []model.QualifiedLead) (*SyncReport, error) {
	report := &SyncReport{Total: len(leads)}
	if len(leads) == 0 {
		return report, nil
	}

	var emails []string
	for _, l := range leads {
		if l.Email != "" {
			emails = append(emails, l.Email)
		}
	}

	existing, err := salesforce.FindLeadsByEmail(ctx, s.client, emails)
	if err != nil {
		return report, eris.Wrap(err, "crm: match existing leads")
	}

	var (
		inserts []map[string]any
		updates []salesforce.CollectionRecord
	)
	for _, l := range leads {
		if l.LastName == "" && l.CompanyName == "" {
			report.Skipped++
			zap.L().Warn("crm: lead has no last name or company, skipping",
				zap.String("run_id", l.RunID),
				zap.String("row_id", l.RowID),
			)
			continue
		}

		fields := leadFields(l)
		if match, ok := existing[strings.ToLower(l.Email)]; ok && l.Email != "" {
			updates = append(updates, salesforce.CollectionRecord{ID: match.ID, Fields: fields})
		} else {
			inserts = append(inserts, fields)
		}
	}

	insertResults, err := salesforce.BulkInsertLeads(ctx, s.client, inserts)
	report.tally(insertResults, &report.Created)
	if err != nil {
		return report, eris.Wrap(err, "crm: insert leads")
	}

	updateResults, err := salesforce.BulkUpdateLeads(ctx, s.client, updates)
	report.tally(updateResults, &report.Updated)
	if err != nil {
		return report, eris.Wrap(err, "crm: update leads")
	}

	zap.L().Info("crm: lead sync finished",
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// tally counts per-record outcomes from a collection call.
func (r *SyncReport) tally(results []salesforce.CollectionResult, succeeded *int) {
	for _, res := range results {
		if res.Success {
			*succeeded++
			continue
		}
		r.Failed++
		zap.L().Warn("crm: lead rejected by salesforce",
			zap.String("sf_id", res.ID),
			zap.Strings("errors", res.Errors),
		)
	}
}

// leadFields maps a qualified lead onto SF Lead fields, omitting empties.
// LastName and Company are required by Salesforce, so they get placeholders
// when only one of the two is known.
func leadFields(l model.QualifiedLead) map[string]any {
	fields := map[string]any{
		"LastName":   l.LastName,
		"Company":    l.CompanyName,
		"LeadSource": leadSource,
		"Description": fmt.Sprintf("Qualified website visitor (score %d), run %s",
			l.Score, l.RunID),
	}
	if l.LastName == "" {
		fields["LastName"] = "[Unknown]"
	}
	if l.CompanyName == "" {
		fields["Company"] = "[Unknown]"
	}

	optional := map[string]string{
		"FirstName": l.FirstName,
		"Title":     l.Title,
		"Industry":  l.Industry,
		"Email":     l.Email,
		"Website":   l.Website,
		"Country":   l.Country,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
