package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// defaultRetryAfter is used when a 429 response has no Retry-After header.
const defaultRetryAfter = 60 * time.Second

// searchFields is the default set of fields requested in search/get queries.
const searchFields = "summary,description,status,priority,issuetype,project,assignee,reporter,parent,labels,created,updated,attachment,comment,issuelinks"

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a new Jira client for the given instance.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(url, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// GetProject fetches project metadata including its issue types.
func (c *Client) GetProject(ctx context.Context, projectKey string) (*Project, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/project/%s", c.URL, url.PathEscape(projectKey))

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectKey, err)
	}

	var project Project
	if err := json.Unmarshal(body, &project); err != nil {
		return nil, fmt.Errorf("parse project response: %w", err)
	}
	return &project, nil
}

// Myself verifies the client credentials by fetching the current user.
func (c *Client) Myself(ctx context.Context) (*UserField, error) {
	body, err := c.doRequest(ctx, "GET", c.URL+"/rest/api/3/myself", nil)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	var user UserField
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("parse user response: %w", err)
	}
	return &user, nil
}

// SearchIssues queries Jira using JQL and returns all matching issues,
// handling pagination. Results preserve the order the API returned them in,
// so an ORDER BY clause in the JQL gives a stable total order.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	var allIssues []Issue
	startAt := 0
	maxResults := 100

	for {
		params := url.Values{
			"jql":        {jql},
			"fields":     {searchFields},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(maxResults)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, "GET", apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		allIssues = append(allIssues, result.Issues...)

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return allIssues, nil
}

// SearchIssueCount returns the total number of issues matching a JQL query
// without fetching issue bodies.
func (c *Client) SearchIssueCount(ctx context.Context, jql string) (int, error) {
	params := url.Values{
		"jql":        {jql},
		"maxResults": {"0"},
	}
	apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.URL, params.Encode())

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("parse search response: %w", err)
	}
	return result.Total, nil
}

// GetAllIssueKeys returns every issue key in a project in ascending key
// order. Only the key field is requested, so this stays cheap even for large
// projects.
func (c *Client) GetAllIssueKeys(ctx context.Context, projectKey string) ([]string, error) {
	var allKeys []string
	startAt := 0
	maxResults := 1000

	for {
		params := url.Values{
			"jql":        {fmt.Sprintf("project = %q ORDER BY key ASC", projectKey)},
			"fields":     {"key"},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(maxResults)},
		}
		apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, "GET", apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("get issue keys: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, issue := range result.Issues {
			allKeys = append(allKeys, issue.Key)
		}

		// The server may return fewer results per page than requested, so
		// completion is judged against the reported total, never the page size.
		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return allKeys, nil
}

// GetIssuesInOrder returns all issues in a project in ascending key order,
// with attachments, comments, and links expanded.
func (c *Client) GetIssuesInOrder(ctx context.Context, projectKey string) ([]Issue, error) {
	return c.SearchIssues(ctx, fmt.Sprintf("project = %q ORDER BY key ASC", projectKey))
}

// GetIssue fetches a single issue by key (e.g., "PROJ-123").
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", c.URL, url.PathEscape(key), searchFields)

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return &issue, nil
}

// CreateIssue creates a new issue and returns its id, key, and self URL.
func (c *Client) CreateIssue(ctx context.Context, req *CreateIssueRequest) (*Issue, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	body, err := c.doRequest(ctx, "POST", c.URL+"/rest/api/3/issue", data)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	// Create response only returns id, key, self.
	var created Issue
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	return &created, nil
}

// UpdateIssue updates an existing issue by key.
func (c *Client) UpdateIssue(ctx context.Context, key string, req *UpdateIssueRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s", c.URL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, "PUT", apiURL, data); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// SetParent assigns a parent issue, establishing the hierarchy (subtask or
// epic child) relation.
func (c *Client) SetParent(ctx context.Context, key, parentKey string) error {
	req := &UpdateIssueRequest{Fields: UpdateIssueFields{Parent: &IssueRef{Key: parentKey}}}
	if err := c.UpdateIssue(ctx, key, req); err != nil {
		return fmt.Errorf("set parent of %s to %s: %w", key, parentKey, err)
	}
	return nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, key string, req *AddCommentRequest) (*Comment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal comment request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.URL, url.PathEscape(key))
	body, err := c.doRequest(ctx, "POST", apiURL, data)
	if err != nil {
		return nil, fmt.Errorf("add comment to %s: %w", key, err)
	}

	var comment Comment
	if err := json.Unmarshal(body, &comment); err != nil {
		return nil, fmt.Errorf("parse comment response: %w", err)
	}
	return &comment, nil
}

// GetComments returns all comments on an issue.
func (c *Client) GetComments(ctx context.Context, key string) ([]Comment, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.URL, url.PathEscape(key))

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get comments for %s: %w", key, err)
	}

	var page CommentPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse comments response: %w", err)
	}
	return page.Comments, nil
}

// DownloadAttachment fetches attachment content from its download URL.
func (c *Client) DownloadAttachment(ctx context.Context, att *Attachment) ([]byte, error) {
	body, err := c.doRequest(ctx, "GET", att.Content, nil)
	if err != nil {
		return nil, fmt.Errorf("download attachment %s: %w", att.Filename, err)
	}
	return body, nil
}

// UploadAttachment attaches a file to an issue via multipart upload.
func (c *Client) UploadAttachment(ctx context.Context, key, filename string, content []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build attachment form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write attachment form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close attachment form: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments", c.URL, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	// Required by Jira for multipart endpoints.
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := responseError(resp, respBody); err != nil {
		return fmt.Errorf("upload attachment %s: %w", filename, err)
	}
	return nil
}

// CreateIssueLink creates a typed link between two issues.
func (c *Client) CreateIssueLink(ctx context.Context, req *LinkRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal link request: %w", err)
	}

	if _, err := c.doRequest(ctx, "POST", c.URL+"/rest/api/3/issueLink", data); err != nil {
		return fmt.Errorf("create link %s -> %s: %w", req.InwardIssue.Key, req.OutwardIssue.Key, err)
	}
	return nil
}

// GetIssueLinkTypes returns the link types configured on this instance.
func (c *Client) GetIssueLinkTypes(ctx context.Context) ([]LinkType, error) {
	body, err := c.doRequest(ctx, "GET", c.URL+"/rest/api/3/issueLinkType", nil)
	if err != nil {
		return nil, fmt.Errorf("get link types: %w", err)
	}

	var result struct {
		IssueLinkTypes []LinkType `json:"issueLinkTypes"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse link types response: %w", err)
	}
	return result.IssueLinkTypes, nil
}

// GetStatuses returns the statuses available per issue type for a project.
// The returned slice is deduplicated by status ID but preserves the order the
// API returned them in.
func (c *Client) GetStatuses(ctx context.Context, projectKey string) ([]StatusField, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/project/%s/statuses", c.URL, url.PathEscape(projectKey))

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get statuses for %s: %w", projectKey, err)
	}

	var perType []struct {
		Statuses []StatusField `json:"statuses"`
	}
	if err := json.Unmarshal(body, &perType); err != nil {
		return nil, fmt.Errorf("parse statuses response: %w", err)
	}

	seen := make(map[string]bool)
	var statuses []StatusField
	for _, t := range perType {
		for _, s := range t.Statuses {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			statuses = append(statuses, s)
		}
	}
	return statuses, nil
}

// GetFields returns all field definitions, used to enumerate custom fields.
func (c *Client) GetFields(ctx context.Context) ([]Field, error) {
	body, err := c.doRequest(ctx, "GET", c.URL+"/rest/api/3/field", nil)
	if err != nil {
		return nil, fmt.Errorf("get fields: %w", err)
	}

	var fields []Field
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("parse fields response: %w", err)
	}
	return fields, nil
}

// GetAssignableUsers returns the users assignable to issues in a project.
func (c *Client) GetAssignableUsers(ctx context.Context, projectKey string) ([]UserField, error) {
	params := url.Values{
		"project":    {projectKey},
		"maxResults": {"1000"},
	}
	apiURL := fmt.Sprintf("%s/rest/api/3/user/assignable/search?%s", c.URL, params.Encode())

	body, err := c.doRequest(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get assignable users for %s: %w", projectKey, err)
	}

	var users []UserField
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse users response: %w", err)
	}
	return users, nil
}

// doRequest executes an authenticated HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "jira-fork-tool/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// PUT returns 204 No Content on success
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if err := responseError(resp, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// responseError maps a non-2xx response to the error taxonomy.
func responseError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	default:
		return &RequestError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
}

// errorMessage extracts Jira's errorMessages array when present, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		ErrorMessages []string `json:"errorMessages"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.ErrorMessages) > 0 {
		return strings.Join(parsed.ErrorMessages, "; ")
	}
	return string(body)
}

// setAuth sets the appropriate authentication header on the request.
func (c *Client) setAuth(req *http.Request) {
	isCloud := strings.Contains(c.URL, "atlassian.net")
	if (isCloud || c.Username != "") && c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// jiraTimestampFormats are the timestamp layouts Jira emits.
var jiraTimestampFormats = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
}

// ParseTimestamp parses a Jira timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range jiraTimestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
