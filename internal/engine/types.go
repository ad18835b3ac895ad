// Package engine orchestrates project forking between two Jira instances:
// sequential issue transfer with checkpointed resume, schema mapping,
// relationship replay, and validation.
//
// Execution is deliberately single-threaded and synchronous. Issues are
// processed one at a time in ascending key order so that resume-by-last-key
// is well defined and destination creation order mirrors source order.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/daviderichammer/jira-fork-tool/internal/gaps"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/mapping"
)

// Client is the subset of the Jira REST API the engine consumes. The source
// and destination are independent clients with independent credentials.
type Client interface {
	GetProject(ctx context.Context, projectKey string) (*jira.Project, error)
	Myself(ctx context.Context) (*jira.UserField, error)
	GetAllIssueKeys(ctx context.Context, projectKey string) ([]string, error)
	GetIssuesInOrder(ctx context.Context, projectKey string) ([]jira.Issue, error)
	SearchIssues(ctx context.Context, jql string) ([]jira.Issue, error)
	SearchIssueCount(ctx context.Context, jql string) (int, error)
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	CreateIssue(ctx context.Context, req *jira.CreateIssueRequest) (*jira.Issue, error)
	UpdateIssue(ctx context.Context, key string, req *jira.UpdateIssueRequest) error
	SetParent(ctx context.Context, key, parentKey string) error
	AddComment(ctx context.Context, key string, req *jira.AddCommentRequest) (*jira.Comment, error)
	DownloadAttachment(ctx context.Context, att *jira.Attachment) ([]byte, error)
	UploadAttachment(ctx context.Context, key, filename string, content []byte) error
	CreateIssueLink(ctx context.Context, req *jira.LinkRequest) error
	GetIssueLinkTypes(ctx context.Context) ([]jira.LinkType, error)
	GetStatuses(ctx context.Context, projectKey string) ([]jira.StatusField, error)
	GetFields(ctx context.Context) ([]jira.Field, error)
	GetAssignableUsers(ctx context.Context, projectKey string) ([]jira.UserField, error)
}

// Phase names recorded on checkpoints. Only issue processing is resumable.
const (
	PhaseAnalyzing     = "analyzing"
	PhaseMappingSchema = "mapping_schema"
	PhaseTransferring  = "issue_processing"
	PhaseLinking       = "linking"
	PhaseValidating    = "validating"
)

// SyncError is a phase-level failure: fatal to the current operation,
// reported in the result, never corrupting persisted state.
type SyncError struct {
	Phase   string
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Phase, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

func syncErrorf(phase string, err error, format string, args ...any) *SyncError {
	return &SyncError{Phase: phase, Message: fmt.Sprintf(format, args...), Err: err}
}

// Result is the structured outcome of a top-level operation. Item-level
// failures decrement counts; phase-level failures set ErrorMessage and clear
// Success.
type Result struct {
	Success                bool      `json:"success"`
	SessionID              string    `json:"session_id"`
	IssuesProcessed        int       `json:"issues_processed"`
	IssuesSkipped          int       `json:"issues_skipped"`
	PlaceholdersCreated    int       `json:"placeholders_created,omitempty"`
	AttachmentsTransferred int       `json:"attachments_transferred"`
	CommentsSynchronized   int       `json:"comments_synchronized"`
	LinksCreated           int       `json:"links_created"`
	LinksFailed            int       `json:"links_failed"`
	ChangesProcessed       int       `json:"changes_processed,omitempty"`
	ErrorMessage           string    `json:"error,omitempty"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time"`
}

// Duration returns the elapsed time of the operation.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Analysis summarizes the source project before transfer.
type Analysis struct {
	Project           *jira.Project  `json:"project"`
	Keys              []string       `json:"keys,omitempty"`
	TotalIssues       int            `json:"total_issues"`
	IssuesByType      map[string]int `json:"issues_by_type,omitempty"`
	Gaps              []gaps.Gap     `json:"gaps,omitempty"`
	CustomFields      []jira.Field   `json:"custom_fields,omitempty"`
	UnsupportedFields []string       `json:"unsupported_fields,omitempty"`
}

// session carries all session-scoped state through the phases: schema
// mappings computed once during setup, the in-memory issue key mapping, and
// the fetched issue list. Phases receive it explicitly so they stay testable
// in isolation.
type session struct {
	id            string
	sourceProject string
	destProject   string

	analysis *Analysis

	typeMap       mapping.Table
	statusMap     mapping.Table
	linkTypeMap   mapping.Table
	destLinkTypes []jira.LinkType
	defaultTypeID string

	// issueMap mirrors the durable mapping table for fast lookups during
	// the linking phase.
	issueMap map[string]string

	// issues is the ordered source issue list fetched for the transfer
	// phase and reused for relationship sync.
	issues []jira.Issue
}

// issueOutcome is the explicit result of processing one issue: transferred
// with counts, or skipped with a reason. The skip policy is visible to the
// caller instead of hidden in error handling.
type issueOutcome struct {
	destKey     string
	attachments int
	comments    int
	skipReason  error
}

func (o *issueOutcome) transferred() bool { return o.skipReason == nil }
