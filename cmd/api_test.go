package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instalily/leadqual/internal/model"
	"github.com/instalily/leadqual/internal/pipeline"
	"github.com/instalily/leadqual/internal/store"
)

// okClassifier qualifies everyone.
type okClassifier struct{}

func (okClassifier) Classify(_ context.Context, v model.Visitor) (*model.QualificationResult, error) {
	now := time.Now().UTC()
	return &model.QualificationResult{
		RowID:     v.RowID,
		RowIndex:  v.RowIndex,
		Visitor:   v,
		Status:    model.ResultStatusSucceeded,
		Qualified: true,
		Score:     8,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func newTestAPI(t *testing.T) *api {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	cfg = testConfig(t)

	return &api{
		ctx:    context.Background(),
		st:     st,
		runner: pipeline.NewRunner(st, okClassifier{}, nil),
	}
}

func doRequest(t *testing.T, a *api, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	a := newTestAPI(t)
	rec := doRequest(t, a, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAPI_CreateRun_Validation(t *testing.T) {
	a := newTestAPI(t)

	t.Run("bad body", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodPost, "/api/runs", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodPost, "/api/runs", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file is required")
	})

	t.Run("unreadable file", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodPost, "/api/runs", `{"file":"/nonexistent.csv"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_CreateRun_Accepted(t *testing.T) {
	a := newTestAPI(t)

	input := filepath.Join(t.TempDir(), "visitors.csv")
	csv := "First Name,Last Name,Title,Company\nJane,Doe,VP Operations,Acme Corp\n"
	require.NoError(t, os.WriteFile(input, []byte(csv), 0o600))

	rec := doRequest(t, a, http.MethodPost, "/api/runs",
		`{"file":`+jsonQuote(input)+`}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Rows   int    `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 1, resp.Rows)
	require.NotEmpty(t, resp.RunID)

	// The async run lands in the store under the ID the response handed out.
	require.Eventually(t, func() bool {
		run, err := a.st.GetRun(context.Background(), resp.RunID)
		return err == nil && run != nil && run.Status == model.RunStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	run, err := a.st.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ProcessedRows)
}

func TestAPI_GetRun_NotFound(t *testing.T) {
	a := newTestAPI(t)
	rec := doRequest(t, a, http.MethodGet, "/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RunLifecycleEndpoints(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	run, err := a.st.CreateRun(ctx, model.Run{SourceFile: "visitors.csv", TotalRows: 1})
	require.NoError(t, err)

	res := &model.QualificationResult{
		RunID:     run.ID,
		RowID:     "1",
		RowIndex:  1,
		Visitor:   model.Visitor{RowID: "1", RowIndex: 1, FirstName: "Jane", LastName: "Doe", CompanyName: "Acme"},
		Status:    model.ResultStatusSucceeded,
		Qualified: true,
		Score:     7,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, a.st.UpsertResult(ctx, res))

	t.Run("get run", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/runs/"+run.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), run.ID)
	})

	t.Run("list runs", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/runs?limit=10", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "visitors.csv")
	})

	t.Run("progress falls back to persisted counters", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/runs/"+run.ID+"/progress", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":1`)
	})

	t.Run("results", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/runs/"+run.ID+"/results", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"Jane"`)
	})

	t.Run("export streams csv", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/runs/"+run.ID+"/export", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "First Name")
		assert.Contains(t, rec.Body.String(), "Jane")
	})

	t.Run("leads", func(t *testing.T) {
		rec := doRequest(t, a, http.MethodGet, "/api/leads", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"Acme"`)
	})
}

// jsonQuote JSON-quotes a string for request bodies.
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
