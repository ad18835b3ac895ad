package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// fakeJira implements Client in memory with per-call failure injection.
type fakeJira struct {
	project   *jira.Project
	issues    []jira.Issue
	statuses  []jira.StatusField
	linkTypes []jira.LinkType
	fields    []jira.Field
	search    []jira.Issue

	keyPrefix string
	nextNum   int

	created  []*jira.CreateIssueRequest
	updated  map[string]*jira.UpdateIssueRequest
	comments map[string]int
	uploads  map[string]int
	links    []*jira.LinkRequest
	parents  map[string]string

	// failCreate returns an error for issues whose summary matches; the
	// entry is removed after one use when failOnce is set.
	failCreate map[string]error
	failOnce   bool
	failLink   error
	failParent error

	// afterCreate and afterLink run after each successful write, letting
	// tests interrupt a run at a precise point.
	afterCreate func()
	afterLink   func()
}

func newFakeJira(prefix string) *fakeJira {
	return &fakeJira{
		project: &jira.Project{
			ID:   "10000",
			Key:  prefix,
			Name: prefix + " project",
			IssueTypes: []jira.IssueTypeField{
				{ID: "1", Name: "Task"},
				{ID: "2", Name: "Bug"},
			},
		},
		statuses:   []jira.StatusField{{ID: "1", Name: "To Do"}, {ID: "2", Name: "Done"}},
		linkTypes:  []jira.LinkType{{ID: "1", Name: "Relates", Inward: "relates to", Outward: "relates to"}},
		keyPrefix:  prefix,
		nextNum:    1,
		updated:    make(map[string]*jira.UpdateIssueRequest),
		comments:   make(map[string]int),
		uploads:    make(map[string]int),
		parents:    make(map[string]string),
		failCreate: make(map[string]error),
	}
}

func (f *fakeJira) GetProject(ctx context.Context, key string) (*jira.Project, error) {
	return f.project, nil
}

func (f *fakeJira) Myself(ctx context.Context) (*jira.UserField, error) {
	return &jira.UserField{AccountID: "me", DisplayName: "Test User"}, nil
}

func (f *fakeJira) GetAllIssueKeys(ctx context.Context, project string) ([]string, error) {
	keys := make([]string, len(f.issues))
	for i := range f.issues {
		keys[i] = f.issues[i].Key
	}
	return keys, nil
}

func (f *fakeJira) GetIssuesInOrder(ctx context.Context, project string) ([]jira.Issue, error) {
	return f.issues, nil
}

func (f *fakeJira) SearchIssues(ctx context.Context, jql string) ([]jira.Issue, error) {
	return f.search, nil
}

func (f *fakeJira) SearchIssueCount(ctx context.Context, jql string) (int, error) {
	return len(f.created), nil
}

func (f *fakeJira) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	for i := range f.issues {
		if f.issues[i].Key == key {
			return &f.issues[i], nil
		}
	}
	return nil, &jira.RequestError{StatusCode: 404, Message: "not found"}
}

func (f *fakeJira) CreateIssue(ctx context.Context, req *jira.CreateIssueRequest) (*jira.Issue, error) {
	if err, ok := f.failCreate[req.Fields.Summary]; ok {
		if f.failOnce {
			delete(f.failCreate, req.Fields.Summary)
		}
		return nil, err
	}
	f.created = append(f.created, req)
	key := fmt.Sprintf("%s-%d", f.keyPrefix, f.nextNum)
	f.nextNum++
	if f.afterCreate != nil {
		f.afterCreate()
	}
	return &jira.Issue{ID: key, Key: key}, nil
}

func (f *fakeJira) UpdateIssue(ctx context.Context, key string, req *jira.UpdateIssueRequest) error {
	f.updated[key] = req
	return nil
}

func (f *fakeJira) SetParent(ctx context.Context, key, parentKey string) error {
	if f.failParent != nil {
		return f.failParent
	}
	f.parents[key] = parentKey
	return nil
}

func (f *fakeJira) AddComment(ctx context.Context, key string, req *jira.AddCommentRequest) (*jira.Comment, error) {
	f.comments[key]++
	return &jira.Comment{ID: "c1"}, nil
}

func (f *fakeJira) DownloadAttachment(ctx context.Context, att *jira.Attachment) ([]byte, error) {
	return []byte("attachment-data"), nil
}

func (f *fakeJira) UploadAttachment(ctx context.Context, key, filename string, content []byte) error {
	f.uploads[key]++
	return nil
}

func (f *fakeJira) CreateIssueLink(ctx context.Context, req *jira.LinkRequest) error {
	if f.failLink != nil {
		return f.failLink
	}
	f.links = append(f.links, req)
	if f.afterLink != nil {
		f.afterLink()
	}
	return nil
}

func (f *fakeJira) GetIssueLinkTypes(ctx context.Context) ([]jira.LinkType, error) {
	return f.linkTypes, nil
}

func (f *fakeJira) GetStatuses(ctx context.Context, project string) ([]jira.StatusField, error) {
	return f.statuses, nil
}

func (f *fakeJira) GetFields(ctx context.Context) ([]jira.Field, error) {
	return f.fields, nil
}

func (f *fakeJira) GetAssignableUsers(ctx context.Context, project string) ([]jira.UserField, error) {
	return nil, nil
}

func makeIssue(key, summary string) jira.Issue {
	return jira.Issue{
		Key: key,
		Fields: jira.IssueFields{
			Summary:     summary,
			Description: json.RawMessage(fmt.Sprintf("%q", "description of "+key)),
			IssueType:   &jira.IssueTypeField{ID: "1", Name: "Task"},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			PreserveNumbering:  true,
			GapStrategy:        config.GapSkip,
			PlaceholderSummary: "[PLACEHOLDER] Gap in issue numbering",
			IncludeAttachments: true,
			IncludeComments:    true,
			IncludeLinks:       true,
			BatchSize:          1,
			MaxRetries:         2,
			RateLimitBuffer:    1,
			ChangeDetection:    config.ChangeDetectionUpdated,
		},
	}
}

func newTestEngine(t *testing.T, source, dest *fakeJira, cfg *config.Config) *Engine {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := New(source, dest, store, cfg, logger)
	eng.sleep = func(time.Duration) {}
	id := 0
	eng.newID = func() string {
		id++
		return fmt.Sprintf("test-sync-%d", id)
	}
	return eng
}

func TestForkEndToEnd(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "first"),
		makeIssue("PROJ-2", "second"),
		makeIssue("PROJ-3", "third"),
	}
	dest := newFakeJira("FORK")
	dest.failCreate["second"] = &jira.RequestError{StatusCode: 400, Message: "rejected"}

	eng := newTestEngine(t, source, dest, testConfig())
	result := eng.Fork(ctx, "PROJ", "FORK")

	assert.True(t, result.Success, "item failures must not fail the run: %s", result.ErrorMessage)
	assert.Equal(t, 2, result.IssuesProcessed)
	assert.Equal(t, 1, result.IssuesSkipped)

	// Creation order mirrors source key order.
	require.Len(t, dest.created, 2)
	assert.Equal(t, "first", dest.created[0].Fields.Summary)
	assert.Equal(t, "third", dest.created[1].Fields.Summary)

	sess, err := eng.Store.GetSession(ctx, result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, state.StatusCompleted, sess.Status)

	mappings, err := eng.Store.GetMappings(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PROJ-1": "FORK-1", "PROJ-3": "FORK-2"}, mappings)

	// Batch size 1 checkpoints before every issue.
	cp, err := eng.Store.LatestCheckpoint(ctx, result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, state.PhaseIssueProcessing, cp.Phase)
	assert.Equal(t, 2, cp.Progress)
	assert.Equal(t, "PROJ-3", cp.ResumeKey)
}

func TestForkNormalizesContent(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	long := ""
	for i := 0; i < 40; i++ {
		long += "very long summary "
	}
	issue := makeIssue("PROJ-1", long)
	source.issues = []jira.Issue{issue}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	result := eng.Fork(ctx, "PROJ", "FORK")
	require.True(t, result.Success, result.ErrorMessage)

	require.Len(t, dest.created, 1)
	created := dest.created[0].Fields
	assert.LessOrEqual(t, len([]rune(created.Summary)), 255)

	// Provenance header leads the description.
	require.NotNil(t, created.Description)
	require.NotEmpty(t, created.Description.Content)
	header := created.Description.Content[0]
	require.NotEmpty(t, header.Content)
	assert.Equal(t, "Original issue: PROJ-1", header.Content[0].Text)
}

func TestForkTransfersAttachmentsAndComments(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	issue := makeIssue("PROJ-1", "with extras")
	issue.Fields.Attachments = []jira.Attachment{
		{ID: "a1", Filename: "log.txt", Content: "http://src/att/a1"},
	}
	issue.Fields.Comment = &jira.CommentPage{
		Comments: []jira.Comment{
			{ID: "c1", Author: &jira.UserField{DisplayName: "Alice"}, Body: json.RawMessage(`"hi"`), Created: "2026-01-01T00:00:00.000+0000"},
			{ID: "c2", Body: json.RawMessage(`"bye"`)},
		},
	}
	source.issues = []jira.Issue{issue}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	result := eng.Fork(ctx, "PROJ", "FORK")

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 1, result.AttachmentsTransferred)
	assert.Equal(t, 2, result.CommentsSynchronized)
	assert.Equal(t, 1, dest.uploads["FORK-1"])
	assert.Equal(t, 2, dest.comments["FORK-1"])
}

func TestForkGapPlaceholders(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "first"),
		makeIssue("PROJ-4", "fourth"),
	}
	dest := newFakeJira("FORK")

	cfg := testConfig()
	cfg.Sync.GapStrategy = config.GapPlaceholder
	eng := newTestEngine(t, source, dest, cfg)

	result := eng.Fork(ctx, "PROJ", "FORK")
	require.True(t, result.Success, result.ErrorMessage)

	assert.Equal(t, 2, result.IssuesProcessed)
	assert.Equal(t, 2, result.PlaceholdersCreated)

	// first, placeholder x2, fourth
	require.Len(t, dest.created, 4)
	assert.Equal(t, "first", dest.created[0].Fields.Summary)
	assert.Equal(t, cfg.Sync.PlaceholderSummary, dest.created[1].Fields.Summary)
	assert.Equal(t, cfg.Sync.PlaceholderSummary, dest.created[2].Fields.Summary)
	assert.Equal(t, "fourth", dest.created[3].Fields.Summary)
}

func TestForkGapStrategyError(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "first"),
		makeIssue("PROJ-3", "third"),
	}
	dest := newFakeJira("FORK")

	cfg := testConfig()
	cfg.Sync.GapStrategy = config.GapError
	eng := newTestEngine(t, source, dest, cfg)

	result := eng.Fork(ctx, "PROJ", "FORK")
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "gap")
	assert.Empty(t, dest.created)

	sess, err := eng.Store.GetSession(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, sess.Status)
}

func TestForkRateLimitRetry(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{makeIssue("PROJ-1", "rate limited once")}
	dest := newFakeJira("FORK")
	dest.failOnce = true
	dest.failCreate["rate limited once"] = &jira.RateLimitError{RetryAfter: 2 * time.Second}

	eng := newTestEngine(t, source, dest, testConfig())
	var slept []time.Duration
	eng.sleep = func(d time.Duration) { slept = append(slept, d) }

	result := eng.Fork(ctx, "PROJ", "FORK")
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 1, result.IssuesProcessed)
	assert.Contains(t, slept, 2*time.Second)
}

func TestForkConfiguredDefaultTypeID(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{makeIssue("PROJ-1", "one")}

	subtaskOnly := []jira.IssueTypeField{{ID: "5", Name: "Sub-task", Subtask: true}}

	// Without a configured fallback the run cannot pick a creation type.
	dest := newFakeJira("FORK")
	dest.project.IssueTypes = subtaskOnly
	eng := newTestEngine(t, source, dest, testConfig())
	result := eng.Fork(ctx, "PROJ", "FORK")
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "no usable issue types")

	// With default_type_id set the transfer proceeds using that type.
	cfg := testConfig()
	cfg.Sync.DefaultTypeID = "99"
	dest = newFakeJira("FORK")
	dest.project.IssueTypes = subtaskOnly
	eng = newTestEngine(t, source, dest, cfg)
	result = eng.Fork(ctx, "PROJ", "FORK")
	require.True(t, result.Success, result.ErrorMessage)
	require.Len(t, dest.created, 1)
	assert.Equal(t, "99", dest.created[0].Fields.IssueType.ID)
}

func TestRetryDelaySeedsBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.RetryDelay = 7
	eng := newTestEngine(t, newFakeJira("PROJ"), newFakeJira("FORK"), cfg)
	assert.Equal(t, 7*time.Second, eng.retryBackOff().InitialInterval)

	cfg.Sync.RetryDelay = 0
	assert.Equal(t, backoff.DefaultInitialInterval, eng.retryBackOff().InitialInterval)
}

func TestForkCancellationAbortsTransferPhase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "one"),
		makeIssue("PROJ-2", "two"),
		makeIssue("PROJ-3", "three"),
	}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	// Pacing runs once per transferred issue; canceling there interrupts
	// the run between the first and second issue.
	eng.sleep = func(time.Duration) { cancel() }

	result := eng.Fork(ctx, "PROJ", "FORK")
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "canceled")

	// Untransferred issues are not miscounted as skips, and the run never
	// reaches relationship sync.
	assert.Equal(t, 1, result.IssuesProcessed)
	assert.Equal(t, 0, result.IssuesSkipped)
	assert.Equal(t, 0, result.LinksFailed)
	require.Len(t, dest.created, 1)

	// The session is recorded failed with its checkpoint intact.
	sess, err := eng.Store.GetSession(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, sess.Status)

	cp, err := eng.Store.LatestCheckpoint(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, state.PhaseIssueProcessing, cp.Phase)
}

func TestForkCancellationAbortsLinkingPhase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newFakeJira("PROJ")
	a := makeIssue("PROJ-1", "a")
	a.Fields.IssueLinks = []jira.IssueLink{{
		ID:           "l1",
		Type:         jira.LinkType{Name: "Relates"},
		OutwardIssue: &jira.Issue{Key: "PROJ-2"},
	}}
	b := makeIssue("PROJ-2", "b")
	b.Fields.IssueLinks = []jira.IssueLink{{
		ID:           "l2",
		Type:         jira.LinkType{Name: "Relates"},
		OutwardIssue: &jira.Issue{Key: "PROJ-3"},
	}}
	source.issues = []jira.Issue{a, b, makeIssue("PROJ-3", "c")}

	dest := newFakeJira("FORK")
	dest.afterLink = cancel

	eng := newTestEngine(t, source, dest, testConfig())
	result := eng.Fork(ctx, "PROJ", "FORK")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "linking")

	// Links not attempted before cancellation are not counted failed.
	assert.Equal(t, 3, result.IssuesProcessed)
	assert.Equal(t, 1, result.LinksCreated)
	assert.Equal(t, 0, result.LinksFailed)
}

func TestForkLimit(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{
		makeIssue("PROJ-1", "one"),
		makeIssue("PROJ-2", "two"),
		makeIssue("PROJ-3", "three"),
	}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	eng.Limit = 2

	result := eng.Fork(ctx, "PROJ", "FORK")
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, 2, result.IssuesProcessed)
	require.Len(t, dest.created, 2)
}

func TestDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	issue := makeIssue("PROJ-1", "one")
	issue.Fields.Attachments = []jira.Attachment{{ID: "a1", Filename: "f"}}
	source.issues = []jira.Issue{issue, makeIssue("PROJ-3", "three")}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	report, err := eng.DryRun(ctx, "PROJ", "FORK")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalIssues)
	assert.Equal(t, 1, report.TotalAttachments)
	assert.Equal(t, 1, report.GapCount)
	assert.Equal(t, 1, report.MissingNumbers)
	assert.Empty(t, dest.created)

	sess, err := eng.Store.LastCompletedSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess, "dry run must not create sessions")
}

func TestDryRunReportsSchemaMappings(t *testing.T) {
	ctx := context.Background()
	source := newFakeJira("PROJ")
	source.issues = []jira.Issue{makeIssue("PROJ-1", "one")}
	source.statuses = []jira.StatusField{
		{ID: "1", Name: "To Do"},
		{ID: "3", Name: "Closed"},
	}
	dest := newFakeJira("FORK")

	eng := newTestEngine(t, source, dest, testConfig())
	report, err := eng.DryRun(ctx, "PROJ", "FORK")
	require.NoError(t, err)

	// Exact matches are reported bare; anything looser carries its tier.
	assert.Equal(t, "To Do", report.StatusMappings["To Do"])
	assert.Equal(t, "Done (synonym)", report.StatusMappings["Closed"])
	assert.Equal(t, "Task", report.IssueTypeMappings["Task"])
	assert.Contains(t, report.LinkTypeMappings, "Relates")
}
