package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/daviderichammer/jira-fork-tool/internal/adf"
	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/gaps"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/mapping"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

// basePacing is the nominal delay between issue operations, stretched by the
// configured rate limit buffer.
const basePacing = 100 * time.Millisecond

// Engine drives fork, resume, and incremental sync operations between a
// source and destination Jira instance.
type Engine struct {
	Source Client
	Dest   Client
	Store  *state.Store
	Config *config.Config
	Logger *slog.Logger

	// OnMessage and OnWarning receive human-readable progress updates.
	// Either may be nil.
	OnMessage func(string)
	OnWarning func(string)

	// Limit caps the number of issues processed in a transfer, 0 for all.
	// Useful for trial runs against large projects.
	Limit int

	norm *adf.Normalizer

	// Overridable in tests.
	sleep func(time.Duration)
	newID func() string
	now   func() time.Time
}

// New creates an engine. The logger must not be nil.
func New(source, dest Client, store *state.Store, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		Source: source,
		Dest:   dest,
		Store:  store,
		Config: cfg,
		Logger: logger,
		norm:   adf.NewNormalizer(logger),
		sleep:  time.Sleep,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

func (e *Engine) msgf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.Logger.Info(msg)
	if e.OnMessage != nil {
		e.OnMessage(msg)
	}
}

func (e *Engine) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.Logger.Warn(msg)
	if e.OnWarning != nil {
		e.OnWarning(msg)
	}
}

// Fork copies the configured source project into the destination project.
// It always returns a result; phase failures are captured in the result and
// the session record rather than propagated.
func (e *Engine) Fork(ctx context.Context, sourceProject, destProject string) *Result {
	result := &Result{
		SessionID: e.newID(),
		StartTime: e.now().UTC(),
	}
	sc := &session{
		id:            result.SessionID,
		sourceProject: sourceProject,
		destProject:   destProject,
		issueMap:      make(map[string]string),
	}

	sess := &state.Session{
		ID:            sc.id,
		SourceProject: sourceProject,
		DestProject:   destProject,
		Kind:          "fork",
	}
	if err := e.Store.CreateSession(ctx, sess); err != nil {
		return e.finish(ctx, result, fmt.Errorf("create session: %w", err))
	}

	return e.finish(ctx, result, e.runFork(ctx, sc, result, nil))
}

// finish records the terminal session state and stamps the result. A nil err
// completes the session; anything else fails it with the captured message.
func (e *Engine) finish(ctx context.Context, result *Result, err error) *Result {
	// The terminal state must be recorded even when the operation context
	// was canceled, otherwise an interrupted session is left running.
	ctx = context.WithoutCancel(ctx)
	result.EndTime = e.now().UTC()
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		e.warnf("sync %s failed: %v", result.SessionID, err)
		if ferr := e.Store.FailSession(ctx, result.SessionID, err.Error()); ferr != nil {
			e.Logger.Error("failed to record session failure", "session", result.SessionID, "error", ferr)
		}
		return result
	}
	if cerr := e.Store.CompleteSession(ctx, result.SessionID); cerr != nil {
		result.Success = false
		result.ErrorMessage = cerr.Error()
		return result
	}
	result.Success = true
	return result
}

// runFork executes the fork phases against an already-created session.
// resume carries the checkpoint to restart from, nil for a fresh run.
func (e *Engine) runFork(ctx context.Context, sc *session, result *Result, resume *state.Checkpoint) error {
	analysis, err := e.Analyze(ctx, sc.sourceProject)
	if err != nil {
		return syncErrorf(PhaseAnalyzing, err, "analyzing project %s", sc.sourceProject)
	}
	sc.analysis = analysis
	e.msgf("project %s: %d issues, %d numbering gaps",
		sc.sourceProject, analysis.TotalIssues, len(analysis.Gaps))

	if len(analysis.Gaps) > 0 && e.Config.Sync.GapStrategy == config.GapError {
		return syncErrorf(PhaseAnalyzing, nil,
			"source project has %d numbering gaps and gap strategy is %q",
			len(analysis.Gaps), config.GapError)
	}

	if err := e.buildMappings(ctx, sc); err != nil {
		return err
	}

	if err := e.transferIssues(ctx, sc, result, resume); err != nil {
		return err
	}

	if e.Config.Sync.IncludeLinks {
		if err := e.syncRelationships(ctx, sc, result); err != nil {
			return err
		}
	}

	return e.validate(ctx, sc, result)
}

// Analyze inspects the source project: issue inventory, per-type counts,
// numbering gaps, and custom field coverage.
func (e *Engine) Analyze(ctx context.Context, projectKey string) (*Analysis, error) {
	project, err := e.Source.GetProject(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", projectKey, err)
	}

	keys, err := e.Source.GetAllIssueKeys(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("listing issues in %s: %w", projectKey, err)
	}

	analysis := &Analysis{
		Project:     project,
		Keys:        keys,
		TotalIssues: len(keys),
		Gaps:        gaps.Detect(keys, e.Logger),
	}

	byType := make(map[string]int)
	for _, t := range project.IssueTypes {
		n, err := e.Source.SearchIssueCount(ctx,
			fmt.Sprintf("project = %s AND issuetype = %q", projectKey, t.Name))
		if err != nil {
			e.warnf("could not count %s issues in %s: %v", t.Name, projectKey, err)
			continue
		}
		byType[t.Name] = n
	}
	analysis.IssuesByType = byType

	fields, err := e.Source.GetFields(ctx)
	if err != nil {
		e.warnf("could not list fields for %s: %v", projectKey, err)
		return analysis, nil
	}
	for _, f := range fields {
		if !f.Custom {
			continue
		}
		analysis.CustomFields = append(analysis.CustomFields, f)
		if f.Schema.Type == "any" {
			analysis.UnsupportedFields = append(analysis.UnsupportedFields, f.Name)
		}
	}
	return analysis, nil
}

// buildMappings verifies the destination project and resolves issue type,
// status, and link type mappings between the two instances.
func (e *Engine) buildMappings(ctx context.Context, sc *session) error {
	destProject, err := e.Dest.GetProject(ctx, sc.destProject)
	if err != nil {
		return syncErrorf(PhaseMappingSchema, err, "fetching destination project %s", sc.destProject)
	}

	destTypes := make([]mapping.Target, 0, len(destProject.IssueTypes))
	for _, t := range destProject.IssueTypes {
		if t.Subtask {
			continue
		}
		destTypes = append(destTypes, mapping.Target{ID: t.ID, Name: t.Name})
	}
	sourceTypes := make([]string, 0, len(sc.analysis.Project.IssueTypes))
	for _, t := range sc.analysis.Project.IssueTypes {
		sourceTypes = append(sourceTypes, t.Name)
	}
	sc.typeMap = mapping.Build(mapping.IssueTypes, sourceTypes, destTypes, e.Logger)
	sc.defaultTypeID = pickDefaultType(destProject.IssueTypes)
	if sc.defaultTypeID == "" {
		if sc.defaultTypeID = e.Config.Sync.DefaultTypeID; sc.defaultTypeID == "" {
			return syncErrorf(PhaseMappingSchema, nil,
				"destination project %s has no usable issue types and no default_type_id is configured",
				sc.destProject)
		}
		e.warnf("destination project %s has no usable issue types, using configured type %s",
			sc.destProject, sc.defaultTypeID)
	}

	sourceStatuses, err := e.Source.GetStatuses(ctx, sc.sourceProject)
	if err != nil {
		return syncErrorf(PhaseMappingSchema, err, "listing source statuses")
	}
	destStatuses, err := e.Dest.GetStatuses(ctx, sc.destProject)
	if err != nil {
		return syncErrorf(PhaseMappingSchema, err, "listing destination statuses")
	}
	srcStatusNames := make([]string, 0, len(sourceStatuses))
	for _, s := range sourceStatuses {
		srcStatusNames = append(srcStatusNames, s.Name)
	}
	dstStatusTargets := make([]mapping.Target, 0, len(destStatuses))
	for _, s := range destStatuses {
		dstStatusTargets = append(dstStatusTargets, mapping.Target{ID: s.ID, Name: s.Name})
	}
	sc.statusMap = mapping.Build(mapping.Statuses, srcStatusNames, dstStatusTargets, e.Logger)

	sourceLinkTypes, err := e.Source.GetIssueLinkTypes(ctx)
	if err != nil {
		return syncErrorf(PhaseMappingSchema, err, "listing source link types")
	}
	destLinkTypes, err := e.Dest.GetIssueLinkTypes(ctx)
	if err != nil {
		return syncErrorf(PhaseMappingSchema, err, "listing destination link types")
	}
	sc.destLinkTypes = destLinkTypes

	srcLinkNames := make([]string, 0, len(sourceLinkTypes))
	for _, lt := range sourceLinkTypes {
		srcLinkNames = append(srcLinkNames, lt.Name)
	}
	dstLinkTargets := make([]mapping.Target, 0, len(destLinkTypes))
	for _, lt := range destLinkTypes {
		dstLinkTargets = append(dstLinkTargets, mapping.Target{
			ID:      lt.ID,
			Name:    lt.Name,
			Aliases: []string{lt.Inward, lt.Outward},
		})
	}
	sc.linkTypeMap = mapping.Build(mapping.LinkTypes, srcLinkNames, dstLinkTargets, e.Logger)

	e.msgf("schema mappings ready: %d issue types, %d statuses, %d link types",
		len(sc.typeMap), len(sc.statusMap), len(sc.linkTypeMap))
	return nil
}

// pickDefaultType chooses the hard-fallback issue type for the destination:
// Task when present, otherwise the first non-subtask type.
func pickDefaultType(types []jira.IssueTypeField) string {
	for _, t := range types {
		if !t.Subtask && strings.EqualFold(t.Name, "Task") {
			return t.ID
		}
	}
	for _, t := range types {
		if !t.Subtask {
			return t.ID
		}
	}
	return ""
}

// validate compares the destination issue count against the recorded
// mappings. Discrepancies are warnings, not failures: partial transfers with
// skipped issues are legitimate outcomes.
func (e *Engine) validate(ctx context.Context, sc *session, result *Result) error {
	mapped, err := e.Store.CountMappings(ctx, sc.id)
	if err != nil {
		return syncErrorf(PhaseValidating, err, "counting mappings")
	}

	destCount, err := e.Dest.SearchIssueCount(ctx,
		fmt.Sprintf("project = %s", sc.destProject))
	if err != nil {
		e.warnf("validation: could not count destination issues: %v", err)
		return nil
	}

	if destCount < mapped {
		e.warnf("validation: destination has %d issues but %d mappings were recorded",
			destCount, mapped)
	} else {
		e.msgf("validation: %d issues mapped, destination reports %d issues", mapped, destCount)
	}
	return nil
}

// withRetry runs op, honoring rate limit back-pressure. A RateLimitError
// pauses for the server-provided interval and retries up to the configured
// maximum; every other error is terminal for the operation.
func (e *Engine) withRetry(ctx context.Context, op func() error) error {
	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var rl *jira.RateLimitError
		if errors.As(err, &rl) {
			e.warnf("rate limited, pausing %s", rl.RetryAfter)
			e.sleep(rl.RetryAfter)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(e.retryBackOff(), uint64(e.Config.Sync.MaxRetries)),
		ctx)
	return backoff.Retry(attempt, bo)
}

// retryBackOff builds the exponential backoff for transient failures, seeded
// with the configured retry delay when one is set.
func (e *Engine) retryBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if d := e.Config.Sync.RetryDelay; d > 0 {
		bo.InitialInterval = time.Duration(d) * time.Second
	}
	return bo
}

// pace sleeps between write operations to stay under the instance rate
// limit. The configured buffer stretches the base delay: a buffer of 0.8
// means pacing at 125% of the nominal interval.
func (e *Engine) pace() {
	buffer := e.Config.Sync.RateLimitBuffer
	if buffer <= 0 || buffer > 1 {
		buffer = 1
	}
	e.sleep(time.Duration(float64(basePacing) / buffer))
}
