package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// jqlTimeFormat is the timestamp format JQL accepts in updated clauses.
const jqlTimeFormat = "2006-01-02 15:04"

// Incremental propagates source changes since the last completed session:
// updated issues are updated in place on the destination, new issues are
// created and mapped. It requires a completed baseline session.
func (e *Engine) Incremental(ctx context.Context) *Result {
	result := &Result{StartTime: e.now().UTC()}

	if e.Config.Sync.ChangeDetection == config.ChangeDetectionAuditLog {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = "audit log change detection is not supported"
		return result
	}

	last, err := e.Store.LastCompletedSession(ctx)
	if err != nil {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = fmt.Sprintf("loading last session: %v", err)
		return result
	}
	if last == nil {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = "no previous completed sync found for incremental update"
		return result
	}

	since := last.StartTime
	if last.EndTime != nil {
		since = *last.EndTime
	}
	jql := fmt.Sprintf("project = %s AND updated >= \"%s\" ORDER BY key ASC",
		last.SourceProject, since.Format(jqlTimeFormat))

	return e.runChanges(ctx, last, jql, "incremental", result)
}

// SyncDateRange propagates source changes whose update time falls inside
// [since, until]. The last completed session provides the issue mapping
// baseline.
func (e *Engine) SyncDateRange(ctx context.Context, since, until time.Time) *Result {
	result := &Result{StartTime: e.now().UTC()}

	last, err := e.Store.LastCompletedSession(ctx)
	if err != nil {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = fmt.Sprintf("loading last session: %v", err)
		return result
	}
	if last == nil {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = "no previous completed sync found to baseline the date range"
		return result
	}

	jql := fmt.Sprintf("project = %s AND updated >= \"%s\" AND updated <= \"%s\" ORDER BY key ASC",
		last.SourceProject, since.Format(jqlTimeFormat), until.Format(jqlTimeFormat))

	return e.runChanges(ctx, last, jql, "date_range", result)
}

// runChanges executes a change-propagation session: search, then per-issue
// update-or-create. Item failures are skipped; the session completes with
// whatever was processed.
func (e *Engine) runChanges(ctx context.Context, baseline *state.Session, jql, kind string, result *Result) *Result {
	result.SessionID = e.newID()

	sess := &state.Session{
		ID:            result.SessionID,
		SourceProject: baseline.SourceProject,
		DestProject:   baseline.DestProject,
		Kind:          kind,
	}
	if err := e.Store.CreateSession(ctx, sess); err != nil {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = fmt.Sprintf("create session: %v", err)
		return result
	}

	return e.finish(ctx, result, e.applyChanges(ctx, baseline, sess, jql, result))
}

func (e *Engine) applyChanges(ctx context.Context, baseline, sess *state.Session, jql string, result *Result) error {
	mappings, err := e.Store.GetMappings(ctx, baseline.ID)
	if err != nil {
		return syncErrorf(PhaseTransferring, err, "loading baseline mappings")
	}

	changed, err := e.Source.SearchIssues(ctx, jql)
	if err != nil {
		return syncErrorf(PhaseTransferring, err, "searching for changed issues")
	}
	e.msgf("%d changed issues since last sync", len(changed))

	sc := &session{
		id:            sess.ID,
		sourceProject: sess.SourceProject,
		destProject:   sess.DestProject,
		issueMap:      mappings,
	}

	// New issues need the schema mappings; resolve them lazily so pure
	// update runs skip the extra round trips.
	mappingsReady := false

	for i := range changed {
		issue := &changed[i]
		destKey, mapped := mappings[issue.Key]

		if mapped {
			if err := e.updateIssue(ctx, issue, destKey); err != nil {
				result.IssuesSkipped++
				e.warnf("update %s -> %s: %v", issue.Key, destKey, err)
				continue
			}
		} else {
			if !mappingsReady {
				analysis, aerr := e.Analyze(ctx, sc.sourceProject)
				if aerr != nil {
					return syncErrorf(PhaseAnalyzing, aerr, "analyzing project %s", sc.sourceProject)
				}
				sc.analysis = analysis
				if merr := e.buildMappings(ctx, sc); merr != nil {
					return merr
				}
				mappingsReady = true
			}
			outcome := e.processIssue(ctx, sc, issue)
			if !outcome.transferred() {
				result.IssuesSkipped++
				e.warnf("skipped %s: %v", issue.Key, outcome.skipReason)
				continue
			}
			destKey = outcome.destKey
			result.AttachmentsTransferred += outcome.attachments
			result.CommentsSynchronized += outcome.comments
		}

		if err := e.Store.UpsertMapping(ctx, sess.ID, issue.Key, destKey); err != nil {
			return syncErrorf(PhaseTransferring, err, "recording mapping for %s", issue.Key)
		}
		sc.issueMap[issue.Key] = destKey
		result.ChangesProcessed++
		e.pace()
	}

	// Carry unchanged mappings forward so this session is a complete
	// baseline for the next incremental run.
	for src, dst := range mappings {
		if err := e.Store.UpsertMapping(ctx, sess.ID, src, dst); err != nil {
			return syncErrorf(PhaseTransferring, err, "carrying forward mapping for %s", src)
		}
	}
	return nil
}

// updateIssue pushes the normalized summary and description of a changed
// source issue onto its destination counterpart.
func (e *Engine) updateIssue(ctx context.Context, issue *jira.Issue, destKey string) error {
	body := e.norm.NormalizeDescription(issue.Fields.Description)
	body = e.norm.MergeProvenance(issue.Key, body)

	req := &jira.UpdateIssueRequest{
		Fields: jira.UpdateIssueFields{
			Summary:     e.norm.NormalizeSummary(issue.Fields.Summary),
			Description: body,
			Labels:      issue.Fields.Labels,
		},
	}
	return e.withRetry(ctx, func() error {
		return e.Dest.UpdateIssue(ctx, destKey, req)
	})
}
