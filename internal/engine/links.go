package engine

import (
	"context"
	"strings"

	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/mapping"
)

// syncRelationships replays issue links and parent/child hierarchy among the
// mapped issues. Links whose endpoints were not both transferred are ignored;
// a link that cannot be created even through the fallback relation counts as
// failed. Item failures never fail the phase, so a partially linked fork
// still completes; only cancellation aborts it.
func (e *Engine) syncRelationships(ctx context.Context, sc *session, result *Result) error {
	seen := make(map[string]bool)

	for i := range sc.issues {
		if err := ctx.Err(); err != nil {
			return syncErrorf(PhaseLinking, err, "canceled")
		}
		issue := &sc.issues[i]
		destKey, ok := sc.issueMap[issue.Key]
		if !ok {
			continue
		}

		for j := range issue.Fields.IssueLinks {
			link := &issue.Fields.IssueLinks[j]
			// Each link appears on both endpoints; replay it once, from
			// the outward side so direction is preserved.
			if link.OutwardIssue == nil || seen[link.ID] {
				continue
			}
			seen[link.ID] = true

			otherDest, ok := sc.issueMap[link.OutwardIssue.Key]
			if !ok {
				continue
			}
			if e.createLink(ctx, sc, link.Type.Name, destKey, otherDest) {
				result.LinksCreated++
			} else {
				result.LinksFailed++
			}
		}

		if issue.Fields.Parent != nil {
			if parentDest, ok := sc.issueMap[issue.Fields.Parent.Key]; ok {
				if e.setParent(ctx, sc, destKey, parentDest) {
					result.LinksCreated++
				} else {
					result.LinksFailed++
				}
			}
		}
	}

	e.msgf("relationships: %d created, %d failed", result.LinksCreated, result.LinksFailed)
	return nil
}

// createLink creates a typed link between two destination issues, falling
// back to the generic relation when the mapped type is rejected. Reports
// whether any link was created.
func (e *Engine) createLink(ctx context.Context, sc *session, sourceType, inward, outward string) bool {
	typeName := ""
	if entry, ok := sc.linkTypeMap[sourceType]; ok {
		typeName = entry.Name
	} else if fb := e.fallbackLinkType(sc); fb != "" {
		typeName = fb
	} else {
		e.warnf("link %s -> %s: no destination link types available", inward, outward)
		return false
	}

	if e.tryLink(ctx, typeName, inward, outward) {
		return true
	}

	// The mapped type was rejected; try the generic relation before giving
	// up, unless that is what just failed.
	fb := e.fallbackLinkType(sc)
	if fb != "" && fb != typeName && e.tryLink(ctx, fb, inward, outward) {
		e.warnf("link %s -> %s: created with %q instead of %q", inward, outward, fb, typeName)
		return true
	}

	e.warnf("link %s -> %s (%s): failed", inward, outward, typeName)
	return false
}

func (e *Engine) tryLink(ctx context.Context, typeName, inward, outward string) bool {
	req := &jira.LinkRequest{
		Type:         jira.LinkTypeRef{Name: typeName},
		InwardIssue:  jira.IssueRef{Key: inward},
		OutwardIssue: jira.IssueRef{Key: outward},
	}
	err := e.withRetry(ctx, func() error {
		return e.Dest.CreateIssueLink(ctx, req)
	})
	return err == nil
}

// fallbackLinkType returns the generic destination relation: "relates to"
// when the destination has it, otherwise the first available link type.
func (e *Engine) fallbackLinkType(sc *session) string {
	for _, lt := range sc.destLinkTypes {
		if strings.EqualFold(lt.Name, "Relates") ||
			strings.EqualFold(lt.Outward, mapping.DefaultLinkRelation) {
			return lt.Name
		}
	}
	if len(sc.destLinkTypes) > 0 {
		return sc.destLinkTypes[0].Name
	}
	return ""
}

// setParent re-parents a destination issue. When the destination rejects the
// hierarchy (incompatible types, different hierarchy scheme) the relationship
// degrades to a generic link so it is at least visible.
func (e *Engine) setParent(ctx context.Context, sc *session, childDest, parentDest string) bool {
	err := e.withRetry(ctx, func() error {
		return e.Dest.SetParent(ctx, childDest, parentDest)
	})
	if err == nil {
		return true
	}
	e.warnf("parent %s -> %s: %v, falling back to link", childDest, parentDest, err)

	if fb := e.fallbackLinkType(sc); fb != "" && e.tryLink(ctx, fb, childDest, parentDest) {
		return true
	}
	return false
}
