package engine

import (
	"context"
	"fmt"

	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// Resume continues an interrupted fork from its latest checkpoint. Any
// session checkpointed during issue processing is resumable except a
// completed one; a failed session is reopened and continues under the same
// mapping table. The boundary issue is reprocessed and the mapping upsert
// absorbs the duplicate.
func (e *Engine) Resume(ctx context.Context, sessionID string) *Result {
	result := &Result{
		SessionID: sessionID,
		StartTime: e.now().UTC(),
	}

	fail := func(format string, args ...any) *Result {
		result.EndTime = e.now().UTC()
		result.ErrorMessage = fmt.Sprintf(format, args...)
		e.warnf("resume %s: %s", sessionID, result.ErrorMessage)
		return result
	}

	sess, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return fail("loading session: %v", err)
	}
	if sess == nil {
		return fail("session not found")
	}
	if sess.Status == state.StatusCompleted {
		return fail("session already completed")
	}

	cp, err := e.Store.LatestCheckpoint(ctx, sessionID)
	if err != nil {
		return fail("loading checkpoint: %v", err)
	}
	if cp == nil {
		return fail("session has no checkpoint to resume from")
	}
	if cp.Phase != PhaseTransferring {
		return fail("cannot resume from phase %q", cp.Phase)
	}

	// A failed session with a valid checkpoint goes back to running so the
	// continued run can reach its own terminal state.
	if sess.Status == state.StatusFailed {
		if err := e.Store.ReopenSession(ctx, sessionID); err != nil {
			return fail("reopening session: %v", err)
		}
		e.msgf("reopened failed session %s", sessionID)
	}

	sc := &session{
		id:            sessionID,
		sourceProject: sess.SourceProject,
		destProject:   sess.DestProject,
	}
	sc.issueMap, err = e.Store.GetMappings(ctx, sessionID)
	if err != nil {
		return fail("loading mappings: %v", err)
	}
	if sc.issueMap == nil {
		sc.issueMap = make(map[string]string)
	}

	e.msgf("resuming session %s: %s -> %s from checkpoint %d/%d",
		sessionID, sess.SourceProject, sess.DestProject, cp.Progress, cp.Total)

	return e.finish(ctx, result, e.runFork(ctx, sc, result, cp))
}
