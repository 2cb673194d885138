package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/instalily/leadqual/internal/export"
	"github.com/instalily/leadqual/internal/ingest"
	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/pipeline"
	"github.com/instalily/leadqual/internal/store"
)

// api holds the HTTP server's long-lived dependencies.
type api struct {
	ctx    context.Context
	st     store.Store
	runner *pipeline.Runner
}

func newAPI(ctx context.Context) (*api, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	pol, err := initPolicy(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	classifier, err := initClassifier(pol)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	return &api{
		ctx:    ctx,
		st:     st,
		runner: pipeline.NewRunner(st, classifier, initDrafter(pol)),
	}, nil
}

func (a *api) close() {
	a.st.Close() //nolint:errcheck
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateRun accepts a run request and starts it asynchronously. The
// file must be readable from the server's filesystem.
func (a *api) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File           string `json:"file"`
		ProcessAllRows bool   `json:"process_all_rows"`
		GenerateEmails bool   `json:"generate_emails"`
		PreviewRows    int    `json:"preview_rows"`
		Concurrency    int    `json:"concurrency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.File == "" {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	rows, err := ingest.ReadFile(req.File)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read input: %v", err))
		return
	}
	visitors, malformed := ingest.NormalizeAll(rows)
	if len(visitors)+len(malformed) == 0 {
		writeError(w, http.StatusBadRequest, "input file has no data rows")
		return
	}

	// Allocate the run ID up front so the response can carry it; the
	// async run persists the record under the same ID.
	opts := pipeline.Options{
		RunID:          uuid.New().String(),
		SourceFile:     req.File,
		ProcessAllRows: req.ProcessAllRows || cfg.Pipeline.ProcessAllRows,
		PreviewRows:    req.PreviewRows,
		GenerateEmails: req.GenerateEmails || cfg.Pipeline.GenerateEmails,
		Concurrency:    req.Concurrency,
	}
	if opts.PreviewRows == 0 {
		opts.PreviewRows = cfg.Pipeline.PreviewRows
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Pipeline.Concurrency
	}

	// Run asynchronously; the server context cancels it on shutdown.
	go func() {
		result, err := a.runner.Run(a.ctx, visitors, malformed, opts)
		if err != nil {
			zap.L().Error("api run failed",
				zap.String("run_id", opts.RunID),
				zap.String("file", req.File),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("api run complete",
			zap.String("run_id", result.Run.ID),
			zap.Int("qualified", result.Summary.Qualified),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"run_id": opts.RunID,
		"file":   req.File,
		"rows":   len(visitors) + len(malformed),
	})
}

func (a *api) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := a.st.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun loads a run or writes the appropriate error response. Returns nil
// when the response has already been written.
func (a *api) getRun(w http.ResponseWriter, r *http.Request) *model.Run {
	run, err := a.st.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get run failed")
		return nil
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil
	}
	return run
}

func (a *api) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run := a.getRun(w, r); run != nil {
		writeJSON(w, http.StatusOK, run)
	}
}

// handleRunProgress reports live tracker counts when this run is active in
// this process, falling back to the persisted counters.
func (a *api) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	run := a.getRun(w, r)
	if run == nil {
		return
	}

	if tr := a.runner.Tracker(); tr != nil {
		if snap := tr.Snapshot(); snap.RunID == run.ID {
			writeJSON(w, http.StatusOK, map[string]any{
				"run_id":    snap.RunID,
				"status":    run.Status,
				"total":     snap.Total,
				"processed": snap.Processed,
				"qualified": snap.Qualified,
				"failed":    snap.Failed,
				"drafted":   snap.Drafted,
				"elapsed":   snap.Elapsed().String(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    run.ID,
		"status":    run.Status,
		"total":     run.TotalRows,
		"processed": run.ProcessedRows,
		"qualified": run.QualifiedRows,
	})
}

func (a *api) handleRunResults(w http.ResponseWriter, r *http.Request) {
	run := a.getRun(w, r)
	if run == nil {
		return
	}

	results, err := a.st.ListResults(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": run.ID, "results": results})
}

func (a *api) handleRunExport(w http.ResponseWriter, r *http.Request) {
	run := a.getRun(w, r)
	if run == nil {
		return
	}

	results, err := a.st.ListResults(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	drafts, err := a.st.ListDrafts(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list drafts failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "run-"+truncateID(run.ID)+".csv"))
	if err := export.StreamResultsCSV(w, results, export.DraftsByRow(drafts)); err != nil {
		zap.L().Error("api export failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (a *api) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeadsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	leads, err := a.st.ListQualifiedLeads(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list leads failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}
