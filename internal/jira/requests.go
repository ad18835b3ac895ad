package jira

import (
	"fmt"

	"github.com/daviderichammer/jira-fork-tool/internal/adf"
)

// ProjectRef identifies a project in a mutation payload.
type ProjectRef struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// TypeRef identifies an issue type by ID (preferred) or name.
type TypeRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// IssueRef identifies an issue by key in a link payload.
type IssueRef struct {
	Key string `json:"key"`
}

// LinkTypeRef identifies a link type by name.
type LinkTypeRef struct {
	Name string `json:"name"`
}

// CreateIssueFields is the field set sent when creating an issue.
type CreateIssueFields struct {
	Project     ProjectRef    `json:"project"`
	Summary     string        `json:"summary"`
	IssueType   TypeRef       `json:"issuetype"`
	Description *adf.Document `json:"description,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	Parent      *IssueRef     `json:"parent,omitempty"`
}

// CreateIssueRequest is the payload for POST /issue.
type CreateIssueRequest struct {
	Fields CreateIssueFields `json:"fields"`
}

// Validate checks the request for the fields Jira rejects when missing.
func (r *CreateIssueRequest) Validate() error {
	if r.Fields.Project.Key == "" && r.Fields.Project.ID == "" {
		return fmt.Errorf("create issue: project is required")
	}
	if r.Fields.Summary == "" {
		return fmt.Errorf("create issue: summary is required")
	}
	if r.Fields.IssueType.ID == "" && r.Fields.IssueType.Name == "" {
		return fmt.Errorf("create issue: issue type is required")
	}
	return nil
}

// UpdateIssueFields is the field set sent when updating an issue. Nil fields
// are omitted and left unchanged.
type UpdateIssueFields struct {
	Summary     string        `json:"summary,omitempty"`
	Description *adf.Document `json:"description,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	Parent      *IssueRef     `json:"parent,omitempty"`
}

// UpdateIssueRequest is the payload for PUT /issue/{key}.
type UpdateIssueRequest struct {
	Fields UpdateIssueFields `json:"fields"`
}

// AddCommentRequest is the payload for POST /issue/{key}/comment.
type AddCommentRequest struct {
	Body *adf.Document `json:"body"`
}

// Validate checks that the comment carries a body.
func (r *AddCommentRequest) Validate() error {
	if r.Body == nil {
		return fmt.Errorf("add comment: body is required")
	}
	return nil
}

// LinkRequest is the payload for POST /issueLink.
type LinkRequest struct {
	Type         LinkTypeRef `json:"type"`
	InwardIssue  IssueRef    `json:"inwardIssue"`
	OutwardIssue IssueRef    `json:"outwardIssue"`
}

// Validate checks the link endpoints and type.
func (r *LinkRequest) Validate() error {
	if r.Type.Name == "" {
		return fmt.Errorf("create link: link type is required")
	}
	if r.InwardIssue.Key == "" || r.OutwardIssue.Key == "" {
		return fmt.Errorf("create link: both issue keys are required")
	}
	return nil
}
