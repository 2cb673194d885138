package model

import (
	"strings"
	"time"
)

// RunStatus represents the current state of a qualification run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ResultStatus represents the terminal state of a single visitor's evaluation.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusSucceeded ResultStatus = "succeeded"
	ResultStatusFailed    ResultStatus = "failed"
)

// Visitor is one normalized identified-visitor record. All identity fields
// are optional individually; normalization rejects rows where name, company,
// and email are all missing.
type Visitor struct {
	RowID       string `json:"row_id"`
	RowIndex    int    `json:"row_index"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Country     string `json:"country,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// FullName joins the available name parts.
func (v Visitor) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(v.FirstName) + " " + strings.TrimSpace(v.LastName))
}

// Display returns the best human-readable handle for logs.
func (v Visitor) Display() string {
	if name := v.FullName(); name != "" {
		return name
	}
	if v.CompanyName != "" {
		return v.CompanyName
	}
	return v.Email
}

// Run represents a single batch qualification run.
type Run struct {
	ID             string    `json:"id"`
	SourceFile     string    `json:"source_file"`
	Status         RunStatus `json:"status"`
	TotalRows      int       `json:"total_rows"`
	ProcessedRows  int       `json:"processed_rows"`
	QualifiedRows  int       `json:"qualified_rows"`
	ProcessAllRows bool      `json:"process_all_rows"`
	GenerateEmails bool      `json:"generate_emails"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Terminal reports whether the run has reached a final state.
func (r *Run) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// QualificationResult is the outcome of evaluating one visitor within a run.
// Exactly one exists per (run, visitor); reprocessing overwrites it.
type QualificationResult struct {
	RunID          string       `json:"run_id"`
	RowID          string       `json:"row_id"`
	RowIndex       int          `json:"row_index"`
	Visitor        Visitor      `json:"visitor"`
	Status         ResultStatus `json:"status"`
	Qualified      bool         `json:"qualified"`
	Score          int          `json:"score"`
	Rationale      []string     `json:"rationale,omitempty"`
	VisitorSummary string       `json:"visitor_summary,omitempty"`
	CompanySummary string       `json:"company_summary,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// EmailDraft is an outreach draft for a qualified visitor. At most one
// exists per (run, visitor).
type EmailDraft struct {
	RunID     string    `json:"run_id"`
	RowID     string    `json:"row_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// QualifiedLead is the cross-run view of a qualified visitor, newest run
// first. Used by the leads listing, export, and CRM sync.
type QualifiedLead struct {
	RunID       string    `json:"run_id"`
	RowID       string    `json:"row_id"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Title       string    `json:"title,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	Country     string    `json:"country,omitempty"`
	Score       int       `json:"score"`
	QualifiedAt time.Time `json:"qualified_at"`
}

// RunSummary aggregates the outcome of a finished run for reporting.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	TotalRows     int           `json:"total_rows"`
	Processed     int           `json:"processed"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Qualified     int           `json:"qualified"`
	EmailsDrafted int           `json:"emails_drafted"`
	Elapsed       time.Duration `json:"elapsed"`
}

// QualifiedRate returns the share of succeeded rows that qualified, in
// percent. Zero when nothing succeeded.
func (s RunSummary) QualifiedRate() float64 {
	if s.Succeeded == 0 {
		return 0
	}
	return float64(s.Qualified) / float64(s.Succeeded) * 100
}
