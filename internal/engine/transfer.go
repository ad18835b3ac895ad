package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/daviderichammer/jira-fork-tool/internal/adf"
	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// transferIssues copies source issues into the destination sequentially in
// ascending key order. A checkpoint is written at every batch boundary before
// the issue at that index is processed, so resume reprocesses at most one
// batch. Item-level failures skip the issue; only infrastructure failures
// (fetch, checkpoint write) abort the phase.
func (e *Engine) transferIssues(ctx context.Context, sc *session, result *Result, resume *state.Checkpoint) error {
	issues, err := e.Source.GetIssuesInOrder(ctx, sc.sourceProject)
	if err != nil {
		return syncErrorf(PhaseTransferring, err, "fetching issues from %s", sc.sourceProject)
	}
	sc.issues = issues
	total := len(issues)

	// Resume restarts at the checkpointed key, reprocessing it: the
	// checkpoint was written before that issue was handled. When the key
	// is no longer present, fall back to the recorded index.
	startIndex := 0
	if resume != nil {
		if idx := indexOfKey(issues, resume.ResumeKey); idx >= 0 {
			startIndex = idx
		} else if resume.Progress <= total {
			startIndex = resume.Progress
		}
		e.msgf("resuming at %d/%d (key %s)", startIndex, total, resume.ResumeKey)
	}

	end := total
	if e.Limit > 0 && startIndex+e.Limit < end {
		end = startIndex + e.Limit
		e.msgf("limiting transfer to %d issues", e.Limit)
	}

	batchSize := e.Config.Sync.BatchSize
	placeholders := e.Config.Sync.PreserveNumbering &&
		e.Config.Sync.GapStrategy == config.GapPlaceholder

	prevNumber := 0
	if placeholders && startIndex > 0 {
		prevNumber = keyNumber(issues[startIndex-1].Key)
	}

	for i := startIndex; i < end; i++ {
		issue := &issues[i]

		// Cancellation aborts the phase so remaining issues are not
		// miscounted as item-level skips. The last checkpoint stays valid.
		if err := ctx.Err(); err != nil {
			return syncErrorf(PhaseTransferring, err, "canceled at %d/%d", i, total)
		}

		if i%batchSize == 0 {
			cp := &state.Checkpoint{
				SessionID: sc.id,
				Phase:     state.PhaseIssueProcessing,
				Progress:  i,
				Total:     total,
				ResumeKey: issue.Key,
			}
			if err := e.Store.AddCheckpoint(ctx, cp); err != nil {
				return syncErrorf(PhaseTransferring, err, "writing checkpoint at %d/%d", i, total)
			}
			e.msgf("progress: %d/%d issues", i, total)
		}

		if placeholders {
			n := keyNumber(issue.Key)
			if prevNumber > 0 && n > prevNumber+1 {
				created, err := e.fillGap(ctx, sc, prevNumber+1, n-1)
				result.PlaceholdersCreated += created
				if err != nil {
					e.warnf("gap fill before %s stopped: %v", issue.Key, err)
				}
			}
			if n > 0 {
				prevNumber = n
			}
		}

		outcome := e.processIssue(ctx, sc, issue)
		if !outcome.transferred() {
			result.IssuesSkipped++
			e.warnf("skipped %s: %v", issue.Key, outcome.skipReason)
			continue
		}

		if err := e.Store.UpsertMapping(ctx, sc.id, issue.Key, outcome.destKey); err != nil {
			return syncErrorf(PhaseTransferring, err, "recording mapping for %s", issue.Key)
		}
		sc.issueMap[issue.Key] = outcome.destKey
		result.IssuesProcessed++
		result.AttachmentsTransferred += outcome.attachments
		result.CommentsSynchronized += outcome.comments

		e.pace()
	}

	e.msgf("transfer complete: %d processed, %d skipped of %d",
		result.IssuesProcessed, result.IssuesSkipped, total)
	return nil
}

// processIssue creates the destination counterpart of one source issue and
// copies its attachments and comments. Every failure is reported as a skip
// reason; the caller decides what a skip means for the run.
func (e *Engine) processIssue(ctx context.Context, sc *session, issue *jira.Issue) *issueOutcome {
	outcome := &issueOutcome{}

	typeID := sc.defaultTypeID
	if issue.Fields.IssueType != nil {
		if entry, ok := sc.typeMap[issue.Fields.IssueType.Name]; ok {
			typeID = entry.ID
		}
	}

	body := e.norm.NormalizeDescription(issue.Fields.Description)
	body = e.norm.MergeProvenance(issue.Key, body)

	req := &jira.CreateIssueRequest{
		Fields: jira.CreateIssueFields{
			Project:     jira.ProjectRef{Key: sc.destProject},
			Summary:     e.norm.NormalizeSummary(issue.Fields.Summary),
			IssueType:   jira.TypeRef{ID: typeID},
			Description: body,
			Labels:      issue.Fields.Labels,
		},
	}
	if err := req.Validate(); err != nil {
		outcome.skipReason = err
		return outcome
	}

	var created *jira.Issue
	err := e.withRetry(ctx, func() error {
		var cerr error
		created, cerr = e.Dest.CreateIssue(ctx, req)
		return cerr
	})
	if err != nil {
		outcome.skipReason = fmt.Errorf("creating issue: %w", err)
		return outcome
	}
	outcome.destKey = created.Key

	if e.Config.Sync.IncludeAttachments {
		outcome.attachments = e.copyAttachments(ctx, issue, created.Key)
	}
	if e.Config.Sync.IncludeComments {
		outcome.comments = e.copyComments(ctx, issue, created.Key)
	}
	return outcome
}

// copyAttachments transfers each attachment, counting successes. A failed
// attachment is logged and skipped; the issue itself stays transferred.
func (e *Engine) copyAttachments(ctx context.Context, issue *jira.Issue, destKey string) int {
	copied := 0
	for i := range issue.Fields.Attachments {
		att := &issue.Fields.Attachments[i]
		data, err := e.Source.DownloadAttachment(ctx, att)
		if err != nil {
			e.warnf("attachment %s on %s: download failed: %v", att.Filename, issue.Key, err)
			continue
		}
		err = e.withRetry(ctx, func() error {
			return e.Dest.UploadAttachment(ctx, destKey, att.Filename, data)
		})
		if err != nil {
			e.warnf("attachment %s on %s: upload failed: %v", att.Filename, issue.Key, err)
			continue
		}
		copied++
	}
	return copied
}

// copyComments replays source comments onto the destination issue, each
// prefixed with an author and date provenance header. Failed comments are
// logged and skipped.
func (e *Engine) copyComments(ctx context.Context, issue *jira.Issue, destKey string) int {
	if issue.Fields.Comment == nil {
		return 0
	}
	copied := 0
	for i := range issue.Fields.Comment.Comments {
		c := &issue.Fields.Comment.Comments[i]
		doc := e.norm.FormatComment(commentText(c))
		req := &jira.AddCommentRequest{Body: doc}
		err := e.withRetry(ctx, func() error {
			_, aerr := e.Dest.AddComment(ctx, destKey, req)
			return aerr
		})
		if err != nil {
			e.warnf("comment %s on %s: %v", c.ID, issue.Key, err)
			continue
		}
		copied++
	}
	return copied
}

// commentText renders a source comment as provenanced plain text.
func commentText(c *jira.Comment) string {
	author := "unknown"
	if c.Author != nil && c.Author.DisplayName != "" {
		author = c.Author.DisplayName
	}
	header := fmt.Sprintf("Comment by %s on %s:", author, c.Created)
	text := adf.TextFromRaw(c.Body)
	if text == "" {
		return header
	}
	return header + "\n\n" + text
}

// fillGap creates placeholder issues for the missing key numbers in
// [from, to]. Placeholder creation failures stop the fill but never abort the
// run: the destination simply will not preserve numbering past that point.
func (e *Engine) fillGap(ctx context.Context, sc *session, from, to int) (int, error) {
	created := 0
	for n := from; n <= to; n++ {
		body := e.norm.FormatBody(fmt.Sprintf(
			"Placeholder for missing source issue %s-%d.", sc.sourceProject, n))
		req := &jira.CreateIssueRequest{
			Fields: jira.CreateIssueFields{
				Project:     jira.ProjectRef{Key: sc.destProject},
				Summary:     e.Config.Sync.PlaceholderSummary,
				IssueType:   jira.TypeRef{ID: sc.defaultTypeID},
				Description: body,
			},
		}
		err := e.withRetry(ctx, func() error {
			_, cerr := e.Dest.CreateIssue(ctx, req)
			return cerr
		})
		if err != nil {
			return created, fmt.Errorf("placeholder for %s-%d: %w", sc.sourceProject, n, err)
		}
		created++
		e.pace()
	}
	return created, nil
}

// indexOfKey locates a key in the ordered issue list, -1 when absent.
func indexOfKey(issues []jira.Issue, key string) int {
	if key == "" {
		return -1
	}
	for i := range issues {
		if issues[i].Key == key {
			return i
		}
	}
	return -1
}

// keyNumber extracts the numeric suffix of an issue key, 0 when absent.
func keyNumber(key string) int {
	idx := strings.LastIndex(key, "-")
	if idx < 0 || idx == len(key)-1 {
		return 0
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
