package engine

import (
	"context"
	"fmt"

	"github.com/daviderichammer/jira-fork-tool/internal/mapping"
)

// DryRunReport estimates the scope of a fork without writing anything to the
// destination or the state store.
type DryRunReport struct {
	SourceProject     string   `json:"source_project"`
	DestProject       string   `json:"dest_project"`
	TotalIssues       int      `json:"total_issues"`
	TotalAttachments  int      `json:"total_attachments"`
	TotalComments     int      `json:"total_comments"`
	TotalLinks        int      `json:"total_links"`
	GapCount          int      `json:"gap_count"`
	MissingNumbers    int      `json:"missing_numbers"`
	UnsupportedFields []string `json:"unsupported_fields,omitempty"`

	// Schema mapping previews: source name to destination name, annotated
	// with the confidence tier when the match was not exact.
	IssueTypeMappings map[string]string `json:"issue_type_mappings,omitempty"`
	StatusMappings    map[string]string `json:"status_mappings,omitempty"`
	LinkTypeMappings  map[string]string `json:"link_type_mappings,omitempty"`
}

// DryRun analyzes the source project and reports what a fork would transfer,
// including the schema mappings the transfer would use. The destination is
// only read.
func (e *Engine) DryRun(ctx context.Context, sourceProject, destProject string) (*DryRunReport, error) {
	analysis, err := e.Analyze(ctx, sourceProject)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", sourceProject, err)
	}

	sc := &session{
		sourceProject: sourceProject,
		destProject:   destProject,
		analysis:      analysis,
	}
	if err := e.buildMappings(ctx, sc); err != nil {
		return nil, err
	}

	report := &DryRunReport{
		SourceProject:     sourceProject,
		DestProject:       destProject,
		TotalIssues:       analysis.TotalIssues,
		GapCount:          len(analysis.Gaps),
		UnsupportedFields: analysis.UnsupportedFields,
		IssueTypeMappings: mappingPreview(sc.typeMap),
		StatusMappings:    mappingPreview(sc.statusMap),
		LinkTypeMappings:  mappingPreview(sc.linkTypeMap),
	}
	for _, g := range analysis.Gaps {
		report.MissingNumbers += g.EndNumber - g.StartNumber + 1
	}

	issues, err := e.Source.GetIssuesInOrder(ctx, sourceProject)
	if err != nil {
		e.warnf("dry run: could not fetch issue details: %v", err)
		return report, nil
	}
	seen := make(map[string]bool)
	for i := range issues {
		f := &issues[i].Fields
		report.TotalAttachments += len(f.Attachments)
		if f.Comment != nil {
			report.TotalComments += len(f.Comment.Comments)
		}
		for _, link := range f.IssueLinks {
			if !seen[link.ID] {
				seen[link.ID] = true
				report.TotalLinks++
			}
		}
	}
	return report, nil
}

// mappingPreview renders a mapping table as source -> destination names.
// Matches below the exact tier carry their confidence so the operator can
// spot guesses before committing to a transfer.
func mappingPreview(table mapping.Table) map[string]string {
	if len(table) == 0 {
		return nil
	}
	preview := make(map[string]string, len(table))
	for src, entry := range table {
		if entry.Confidence == mapping.MatchExact {
			preview[src] = entry.Name
		} else {
			preview[src] = fmt.Sprintf("%s (%s)", entry.Name, entry.Confidence)
		}
	}
	return preview
}
