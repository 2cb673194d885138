package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instalily/leadqual/internal/model"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Resume lookups use GetResult through the Store interface: a row with a
// persisted result is skipped, a row without one is reprocessed.
func TestStore_ResumeLookup(t *testing.T) {
	var st Store = newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.Run{SourceFile: "visitors.csv", TotalRows: 3})
	require.NoError(t, err)

	require.NoError(t, st.UpsertResult(ctx, testResult(run.ID, "1", 1)))

	done, err := st.GetResult(ctx, run.ID, "1")
	require.NoError(t, err)
	assert.NotNil(t, done)

	pending, err := st.GetResult(ctx, run.ID, "2")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestStore_RunLifecycle(t *testing.T) {
	var st Store = newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.Run{SourceFile: "visitors.csv", TotalRows: 2})
	require.NoError(t, err)
	assert.False(t, run.Terminal())

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning, ""))
	require.NoError(t, st.UpsertResult(ctx, testResult(run.ID, "1", 1)))
	require.NoError(t, st.UpdateRunProgress(ctx, run.ID, 1, 1))
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted, ""))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Terminal())
	assert.Equal(t, 1, got.ProcessedRows)
	assert.Equal(t, 1, got.QualifiedRows)
}
