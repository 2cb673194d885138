// Package pipeline orchestrates batch visitor qualification: classify each
// row with bounded concurrency, persist every outcome by (run, row), and
// optionally draft outreach emails for the qualified ones.
package pipeline

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/instalily/leadqual/internal/ingest"
	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/store"
)

// Classifier evaluates one visitor. Implemented by qualify.Classifier.
type Classifier interface {
	Classify(ctx context.Context, v model.Visitor) (*model.QualificationResult, error)
}

// Drafter writes an outreach email for a qualified visitor. Implemented by
// outreach.Drafter.
type Drafter interface {
	Draft(ctx context.Context, v model.Visitor, res *model.QualificationResult) (*model.EmailDraft, error)
}

// Options controls a single run.
type Options struct {
	SourceFile     string
	ProcessAllRows bool
	PreviewRows    int
	GenerateEmails bool
	Concurrency    int
	// RunID, when set, is used as the new run's identifier instead of a
	// generated one. Lets callers hand out the ID before the run starts.
	RunID string
	// ResumeRunID continues an existing run, skipping rows that already
	// have a persisted result.
	ResumeRunID string
}

// Result is the outcome of a finished (or failed) run.
type Result struct {
	Run     *model.Run
	Summary model.RunSummary
}

// Runner executes qualification runs against a Store.
type Runner struct {
	store      store.Store
	classifier Classifier
	drafter    Drafter
	tracker    atomic.Pointer[Tracker]
}

// NewRunner creates a Runner. drafter may be nil when email drafting is
// not configured; runs requesting emails then proceed without drafts.
func NewRunner(st store.Store, classifier Classifier, drafter Drafter) *Runner {
	return &Runner{
		store:      st,
		classifier: classifier,
		drafter:    drafter,
	}
}

// Tracker returns the progress tracker of the active run. Nil before Run
// is called.
func (r *Runner) Tracker() *Tracker {
	return r.tracker.Load()
}

const defaultPreviewRows = 10

// Run qualifies a batch of visitors. Row failures (provider exhaustion,
// unparseable replies, malformed input rows) are recorded as failed
// results and never abort the run; only a store write failure or context
// cancellation moves the run to failed. Partial results stay persisted
// either way.
func (r *Runner) Run(ctx context.Context, visitors []model.Visitor, malformed []*ingest.MalformedRowError, opts Options) (*Result, error) {
	visitors, malformed = selectRows(visitors, malformed, opts)

	run, done, err := r.prepareRun(ctx, len(visitors)+len(malformed), opts)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(done))
	for _, res := range done {
		skip[res.RowID] = struct{}{}
	}

	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source_file", run.SourceFile))
	log.Info("run starting",
		zap.Int("total_rows", run.TotalRows),
		zap.Int("already_done", len(skip)),
		zap.Bool("process_all_rows", opts.ProcessAllRows),
		zap.Bool("generate_emails", opts.GenerateEmails),
		zap.Int("concurrency", concurrency(opts)),
	)

	tracker := NewTracker(run.ID, run.TotalRows)
	defer tracker.Close()
	r.tracker.Store(tracker)
	start := time.Now()

	// Seed counters with the rows a resumed run already finished.
	for _, res := range done {
		if res.Status == model.ResultStatusSucceeded {
			tracker.RowSucceeded(res.Qualified)
		} else {
			tracker.RowFailed()
		}
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning, ""); err != nil {
		return r.failRun(ctx, run, tracker, start, eris.Wrap(err, "pipeline: mark run running"))
	}

	// Malformed rows get a failed result each before any provider call.
	for _, m := range malformed {
		if _, done := skip[m.RowID]; done {
			continue
		}
		res := &model.QualificationResult{
			RunID:    run.ID,
			RowID:    m.RowID,
			RowIndex: m.RowIndex,
			Visitor:  model.Visitor{RowID: m.RowID, RowIndex: m.RowIndex},
			Status:   model.ResultStatusFailed,
			Error:    m.Error(),
		}
		if err := r.store.UpsertResult(ctx, res); err != nil {
			return r.failRun(ctx, run, tracker, start, eris.Wrapf(err, "pipeline: persist malformed row %s", m.RowID))
		}
		tracker.RowFailed()
		r.reportProgress(ctx, run.ID, tracker, log)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(opts))

	for _, v := range visitors {
		if _, done := skip[v.RowID]; done {
			continue
		}
		g.Go(func() error {
			return r.processRow(gCtx, run, v, opts, tracker, log)
		})
	}

	if err := g.Wait(); err != nil {
		return r.failRun(ctx, run, tracker, start, err)
	}

	// Per-row progress writes race each other and may lose; the terminal
	// snapshot is authoritative and must land before the run reads as
	// completed.
	final := tracker.Snapshot()
	if err := r.store.UpdateRunProgress(ctx, run.ID, final.Processed, final.Qualified); err != nil {
		return r.failRun(ctx, run, tracker, start, eris.Wrap(err, "pipeline: record final progress"))
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted, ""); err != nil {
		return r.failRun(ctx, run, tracker, start, eris.Wrap(err, "pipeline: mark run completed"))
	}

	summary := r.summary(run, tracker, start)
	log.Info("run completed",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("qualified", summary.Qualified),
		zap.Int("emails_drafted", summary.EmailsDrafted),
		zap.Float64("qualified_rate_pct", summary.QualifiedRate()),
		zap.Duration("elapsed", summary.Elapsed),
	)

	run.Status = model.RunStatusCompleted
	return &Result{Run: run, Summary: summary}, nil
}

// processRow classifies one visitor and persists the outcome. The result
// write is the commit point: once it succeeds the row is done, and a draft
// failure after it cannot undo that.
func (r *Runner) processRow(ctx context.Context, run *model.Run, v model.Visitor, opts Options, tracker *Tracker, log *zap.Logger) error {
	res, err := r.classifier.Classify(ctx, v)
	if err != nil {
		// Classify only errors on context cancellation.
		return eris.Wrapf(err, "pipeline: classify row %s", v.RowID)
	}
	res.RunID = run.ID

	if err := r.store.UpsertResult(ctx, res); err != nil {
		return eris.Wrapf(err, "pipeline: persist result %s", v.RowID)
	}

	if res.Status == model.ResultStatusSucceeded {
		tracker.RowSucceeded(res.Qualified)
	} else {
		tracker.RowFailed()
	}

	if res.Qualified && opts.GenerateEmails && r.drafter != nil {
		if err := r.draftEmail(ctx, v, res, tracker, log); err != nil {
			return err
		}
	}

	r.reportProgress(ctx, run.ID, tracker, log)

	log.Debug("row processed",
		zap.String("row_id", v.RowID),
		zap.String("visitor", v.Display()),
		zap.String("status", string(res.Status)),
		zap.Bool("qualified", res.Qualified),
		zap.Int("score", res.Score),
	)
	return nil
}

func (r *Runner) draftEmail(ctx context.Context, v model.Visitor, res *model.QualificationResult, tracker *Tracker, log *zap.Logger) error {
	draft, err := r.drafter.Draft(ctx, v, res)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrapf(err, "pipeline: draft row %s", v.RowID)
		}
		// Best effort: the qualified result stands without a draft.
		log.Warn("email draft failed", zap.String("row_id", v.RowID), zap.Error(err))
		return nil
	}
	if err := r.store.UpsertDraft(ctx, draft); err != nil {
		return eris.Wrapf(err, "pipeline: persist draft %s", v.RowID)
	}
	tracker.DraftWritten()
	return nil
}

// prepareRun creates a new run or loads the one being resumed, along with
// the results a resumed run already persisted.
func (r *Runner) prepareRun(ctx context.Context, totalRows int, opts Options) (*model.Run, []model.QualificationResult, error) {
	if opts.ResumeRunID == "" {
		run, err := r.store.CreateRun(ctx, model.Run{
			ID:             opts.RunID,
			SourceFile:     opts.SourceFile,
			TotalRows:      totalRows,
			ProcessAllRows: opts.ProcessAllRows,
			GenerateEmails: opts.GenerateEmails,
		})
		if err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: create run")
		}
		return run, nil, nil
	}

	run, err := r.store.GetRun(ctx, opts.ResumeRunID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: load run %s", opts.ResumeRunID)
	}
	if run == nil {
		return nil, nil, eris.Errorf("pipeline: run %s not found", opts.ResumeRunID)
	}
	done, err := r.store.ListResults(ctx, run.ID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: list results %s", run.ID)
	}
	return run, done, nil
}

func (r *Runner) failRun(ctx context.Context, run *model.Run, tracker *Tracker, start time.Time, cause error) (*Result, error) {
	// Use a fresh context so a cancelled run still gets its terminal state
	// written. Already-persisted row results are kept.
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.store.UpdateRunStatus(failCtx, run.ID, model.RunStatusFailed, cause.Error()); err != nil {
		zap.L().Error("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	snap := tracker.Snapshot()
	if err := r.store.UpdateRunProgress(failCtx, run.ID, snap.Processed, snap.Qualified); err != nil {
		zap.L().Warn("failed to record final progress", zap.String("run_id", run.ID), zap.Error(err))
	}

	zap.L().Error("run failed",
		zap.String("run_id", run.ID),
		zap.Int("processed", snap.Processed),
		zap.Error(cause),
	)

	run.Status = model.RunStatusFailed
	run.Error = cause.Error()
	return &Result{Run: run, Summary: r.summary(run, tracker, start)}, cause
}

func (r *Runner) reportProgress(ctx context.Context, runID string, tracker *Tracker, log *zap.Logger) {
	snap := tracker.Snapshot()
	// Progress is observability, not a commit point: a failed update is
	// logged and the run moves on.
	if err := r.store.UpdateRunProgress(ctx, runID, snap.Processed, snap.Qualified); err != nil && ctx.Err() == nil {
		log.Warn("progress update failed", zap.Error(err))
	}
}

func (r *Runner) summary(run *model.Run, tracker *Tracker, start time.Time) model.RunSummary {
	snap := tracker.Snapshot()
	return model.RunSummary{
		RunID:         run.ID,
		TotalRows:     run.TotalRows,
		Processed:     snap.Processed,
		Succeeded:     snap.Succeeded,
		Failed:        snap.Failed,
		Qualified:     snap.Qualified,
		EmailsDrafted: snap.Drafted,
		Elapsed:       time.Since(start),
	}
}

// selectRows applies preview mode: without process_all_rows only the first
// PreviewRows input rows (by position) are processed.
func selectRows(visitors []model.Visitor, malformed []*ingest.MalformedRowError, opts Options) ([]model.Visitor, []*ingest.MalformedRowError) {
	if opts.ProcessAllRows {
		return visitors, malformed
	}
	limit := opts.PreviewRows
	if limit <= 0 {
		limit = defaultPreviewRows
	}

	type row struct {
		index int
		v     *model.Visitor
		m     *ingest.MalformedRowError
	}
	rows := make([]row, 0, len(visitors)+len(malformed))
	for i := range visitors {
		rows = append(rows, row{index: visitors[i].RowIndex, v: &visitors[i]})
	}
	for _, m := range malformed {
		rows = append(rows, row{index: m.RowIndex, m: m})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].index < rows[j].index })
	if len(rows) > limit {
		rows = rows[:limit]
	}

	var outV []model.Visitor
	var outM []*ingest.MalformedRowError
	for _, r := range rows {
		if r.v != nil {
			outV = append(outV, *r.v)
		} else {
			outM = append(outM, r.m)
		}
	}
	return outV, outM
}

func concurrency(opts Options) int {
	if opts.Concurrency <= 0 {
		return 3
	}
	return opts.Concurrency
}
