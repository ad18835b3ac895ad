package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// seedBaseline records a completed fork session mapping PROJ-1 -> FORK-1.
func seedBaseline(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, eng.Store.CreateSession(ctx, &state.Session{
		ID:            "baseline-1",
		SourceProject: "PROJ",
		DestProject:   "FORK",
		Kind:          "fork",
	}))
	require.NoError(t, eng.Store.UpsertMapping(ctx, "baseline-1", "PROJ-1", "FORK-1"))
	require.NoError(t, eng.Store.CompleteSession(ctx, "baseline-1"))
}

func TestIncrementalUpdatesAndCreates(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "updated summary"),
		makeIssue("PROJ-4", "brand new"),
	}
	source.search = source.issues
	dest := newFakeJira("FORK")
	dest.nextNum = 2

	eng := newTestEngine(t, source, dest, testConfig())
	seedBaseline(t, eng)

	result := eng.Incremental(ctx)
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 2, result.ChangesProcessed)

	// Mapped issue updated in place.
	req, ok := dest.updated["FORK-1"]
	require.True(t, ok, "expected update of existing destination issue")
	assert.Equal(t, "updated summary", req.Fields.Summary)

	// New issue created and mapped in the new session.
	require.Len(t, dest.created, 1)
	assert.Equal(t, "brand new", dest.created[0].Fields.Summary)

	mappings, err := eng.Store.GetMappings(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "FORK-1", mappings["PROJ-1"])
	assert.Equal(t, "FORK-2", mappings["PROJ-4"])
}

func TestIncrementalRequiresBaseline(t *testing.T) {
	eng := newTestEngine(t, newFakeJira("PROJ"), newFakeJira("FORK"), testConfig())
	result := eng.Incremental(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "no previous completed sync")
}

func TestIncrementalRejectsAuditLogDetection(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.ChangeDetection = config.ChangeDetectionAuditLog
	eng := newTestEngine(t, newFakeJira("PROJ"), newFakeJira("FORK"), cfg)

	result := eng.Incremental(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "not supported")
}

func TestSyncDateRange(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.search = []jira.Issue{makeIssue("PROJ-1", "ranged change")}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	seedBaseline(t, eng)

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	result := eng.SyncDateRange(ctx, since, until)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 1, result.ChangesProcessed)
	if assert.Contains(t, dest.updated, "FORK-1") {
		assert.Equal(t, "ranged change", dest.updated["FORK-1"].Fields.Summary)
	}
}

func TestSyncDateRangeRequiresBaseline(t *testing.T) {
	eng := newTestEngine(t, newFakeJira("PROJ"), newFakeJira("FORK"), testConfig())
	result := eng.SyncDateRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "no previous completed sync")
}
