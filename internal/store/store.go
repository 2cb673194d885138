package store

import (
	"context"

	"github.com/instalily/leadqual/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the qualification pipeline.
// Results and drafts are keyed by (run, row); writing the same key again
// overwrites, so reprocessing a visitor never duplicates.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	// UpdateRunProgress records run counters. Counters only move forward:
	// a write carrying a stale snapshot cannot roll them back, so
	// concurrent workers may report in any order.
	UpdateRunProgress(ctx context.Context, runID string, processed, qualified int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Qualification results
	UpsertResult(ctx context.Context, res *model.QualificationResult) error
	GetResult(ctx context.Context, runID, rowID string) (*model.QualificationResult, error)
	ListResults(ctx context.Context, runID string) ([]model.QualificationResult, error)

	// Email drafts
	UpsertDraft(ctx context.Context, draft *model.EmailDraft) error
	GetDraft(ctx context.Context, runID, rowID string) (*model.EmailDraft, error)
	ListDrafts(ctx context.Context, runID string) ([]model.EmailDraft, error)

	// Cross-run leads view
	ListQualifiedLeads(ctx context.Context, limit int) ([]model.QualifiedLead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
