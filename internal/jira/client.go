package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tuannvm/jira-issues-creator/internal/config"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/telemetry"
)

// maxResponseLogSize is the largest response body dumped to the debug log.
const maxResponseLogSize = 2500

const agileAPIPath = "/rest/agile/1.0"

// Request describes one call to the tracker.
type Request struct {
	Method   string
	Resource string // resource under the API base, e.g. "issue" or "issueLink"
	IssueKey string // appended to Resource for GET and PUT
	URL      string // fully-qualified URL; overrides Resource and IssueKey
	Query    url.Values
	Payload  interface{} // JSON body for POST/PUT, query parameters for GET
}

// Response is a 2xx reply. Body holds JSON, Text holds a non-JSON body, and
// both are empty when the tracker sent no content.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
	Text       string
}

// Empty reports whether the response carried no body at all.
func (r *Response) Empty() bool {
	return len(r.Body) == 0 && r.Text == ""
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		if r.Text != "" {
			return &ValidationError{Reason: fmt.Sprintf("expected a JSON response, got text: %s", truncate(r.Text))}
		}
		return &ValidationError{Reason: "expected a JSON response, got an empty body"}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IssuePayload is the body of issue create and update calls.
type IssuePayload struct {
	Fields map[string]interface{} `json:"fields"`
}

// BoardPage is one page of the agile board search.
type BoardPage struct {
	StartAt    int                      `json:"startAt"`
	MaxResults int                      `json:"maxResults"`
	IsLast     *bool                    `json:"isLast"`
	Values     []*atlassian.BoardScheme `json:"values"`
}

// Last reports whether this is the final page. A missing flag counts as last.
func (p *BoardPage) Last() bool { return p.IsLast == nil || *p.IsLast }

// SprintPage is one page of a board's sprint listing.
type SprintPage struct {
	StartAt    int                       `json:"startAt"`
	MaxResults int                       `json:"maxResults"`
	IsLast     *bool                     `json:"isLast"`
	Values     []*atlassian.SprintScheme `json:"values"`
}

// Last reports whether this is the final page. A missing flag counts as last.
func (p *SprintPage) Last() bool { return p.IsLast == nil || *p.IsLast }

// Client is a Jira REST client. It is immutable after construction.
type Client struct {
	baseURL    string
	apiBase    string
	agileBase  string
	authHeader string
	httpClient *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Jira client and validates the credentials against the
// "myself" endpoint. A client is never returned unvalidated.
func NewClient(ctx context.Context, cfg *config.Config, opts ...ClientOption) (*Client, error) {
	if cfg.JiraURL == "" {
		return nil, &ValidationError{Reason: "jira_url is required"}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.JiraURL, "/")
	c := &Client{
		baseURL:    base,
		apiBase:    joinURL(base, cfg.JiraAPIBaseURL),
		agileBase:  base + agileAPIPath,
		authHeader: authHeader(cfg),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validateCredentials(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) validateCredentials(ctx context.Context) error {
	log.Debugf("Validating Jira URL and token")
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, Resource: "myself"})
	if err == nil && resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err != nil {
		authErr := &AuthenticationError{URL: c.apiBase + "/myself", StatusCode: StatusCode(err), Err: err}
		log.Errorf("Failed to validate Jira URL or token: %v", err)
		log.Infof("Make sure the Jira URL and token are set correctly.")
		log.Infof("You can get a Jira API token from - %s/secure/ViewProfile.jspa?selectedTab=com.atlassian.pats.pats-plugin:jira-user-personal-access-tokens", c.baseURL)
		return authErr
	}
	var me atlassian.UserScheme
	if err := resp.Decode(&me); err == nil && me.DisplayName != "" {
		log.Debugf("Authenticated to Jira as %s", me.DisplayName)
	}
	return nil
}

// BrowseURL returns the human-navigable URL of an issue.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// Send issues one request and translates the reply. Non-2xx statuses become
// *APIError; transport failures are wrapped and returned unchanged in kind.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("invalid HTTP method %q: allowed methods are GET, POST, PUT", req.Method)
	}

	endpoint, err := c.endpoint(method, req)
	if err != nil {
		return nil, err
	}
	resource := req.Resource
	if req.URL != "" {
		resource = "agile"
	}

	var body io.Reader
	var payload []byte
	if req.Payload != nil && method != http.MethodGet {
		payload, err = json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	ctx, span := telemetry.StartSpan(ctx, "jira "+method+" "+resource,
		attribute.String("http.method", method),
		attribute.String("jira.resource", resource),
	)
	defer span.End()

	log.Debugf("Sending a Jira %s request to %q with the following DATA: %s", method, endpoint, payload)

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		telemetry.EndSpan(span, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		httpReq.Header.Set("Authorization", c.authHeader)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Errorf("Error in Jira API request %s %s: %v", method, endpoint, err)
		telemetry.RecordAPIRequest(ctx, method, resource, 0, time.Since(start))
		telemetry.EndSpan(span, err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	telemetry.RecordAPIRequest(ctx, method, resource, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		telemetry.EndSpan(span, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, endpoint, resp.StatusCode, raw)
		log.Errorf("Error in Jira API request: %v", apiErr)
		if len(apiErr.Messages) > 0 {
			log.Errorf("Request response JSON: %s", truncate(string(raw)))
		} else {
			log.Errorf("Request response: %s", truncate(string(raw)))
		}
		telemetry.EndSpan(span, apiErr)
		return nil, apiErr
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		log.Debugf("Request response: empty body (status %d)", resp.StatusCode)
	case !json.Valid(trimmed):
		log.Errorf("Return non-JSON response as text: %s", truncate(string(raw)))
		out.Text = string(raw)
	default:
		out.Body = json.RawMessage(trimmed)
		logResponse(trimmed)
	}
	return out, nil
}

func (c *Client) endpoint(method string, req Request) (string, error) {
	var endpoint string
	switch {
	case req.URL != "":
		endpoint = req.URL
	case req.Resource == "":
		return "", &ValidationError{Reason: "request needs a resource or a full URL"}
	case (method == http.MethodPut || method == http.MethodGet) && req.IssueKey != "":
		endpoint = c.apiBase + "/" + req.Resource + "/" + url.PathEscape(req.IssueKey)
	default:
		endpoint = c.apiBase + "/" + req.Resource
	}

	query := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if params, ok := req.Payload.(map[string]interface{}); ok && method == http.MethodGet {
		for k, v := range params {
			query.Set(k, fmt.Sprint(v))
		}
	}
	if len(query) == 0 {
		return endpoint, nil
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + query.Encode(), nil
}

// CreateIssue posts a new issue. A reply without an issue key is a ValidationError.
func (c *Client) CreateIssue(ctx context.Context, payload *IssuePayload) (*atlassian.IssueResponseScheme, error) {
	resp, err := c.Send(ctx, Request{Method: http.MethodPost, Resource: "issue", Payload: payload})
	if err != nil {
		return nil, err
	}
	var created atlassian.IssueResponseScheme
	if err := resp.Decode(&created); err != nil {
		return nil, &ValidationError{Reason: "failed to retrieve issue key from the Jira response: " + err.Error()}
	}
	if created.Key == "" {
		return nil, &ValidationError{Reason: "failed to retrieve issue key from the Jira response"}
	}
	return &created, nil
}

// UpdateIssue puts fields on an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, payload *IssuePayload) error {
	_, err := c.Send(ctx, Request{Method: http.MethodPut, Resource: "issue", IssueKey: key, Payload: payload})
	return err
}

// GetIssue fetches an issue as raw JSON.
func (c *Client) GetIssue(ctx context.Context, key string) (json.RawMessage, error) {
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, Resource: "issue", IssueKey: key})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// LinkIssues links inwardKey to outwardKey with the named relationship.
func (c *Client) LinkIssues(ctx context.Context, inwardKey, outwardKey, linkType string) error {
	if linkType == "" {
		linkType = "Related"
	}
	payload := &atlassian.LinkPayloadSchemeV2{
		Type:         &atlassian.LinkTypeScheme{Name: linkType},
		InwardIssue:  &atlassian.LinkedIssueScheme{Key: inwardKey},
		OutwardIssue: &atlassian.LinkedIssueScheme{Key: outwardKey},
	}
	_, err := c.Send(ctx, Request{Method: http.MethodPost, Resource: "issueLink", Payload: payload})
	return err
}

// ProjectID resolves a project key to its numeric id.
func (c *Client) ProjectID(ctx context.Context, projectKey string) (string, error) {
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, Resource: "project"})
	if err != nil {
		return "", err
	}
	var projects []*atlassian.ProjectScheme
	if err := resp.Decode(&projects); err != nil {
		return "", err
	}
	for _, p := range projects {
		if p != nil && p.Key == projectKey {
			return p.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "project", Name: projectKey}
}

// Boards returns one page of the boards attached to a project.
func (c *Client) Boards(ctx context.Context, projectID string, startAt int) (*BoardPage, error) {
	query := url.Values{}
	query.Set("projectKeyOrId", projectID)
	if startAt > 0 {
		query.Set("startAt", strconv.Itoa(startAt))
	}
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, URL: c.agileBase + "/board", Query: query})
	if err != nil {
		return nil, err
	}
	var page BoardPage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Sprints returns one page of a board's sprints in the given states.
func (c *Client) Sprints(ctx context.Context, boardID int, states []string, startAt, maxResults int) (*SprintPage, error) {
	query := url.Values{}
	query.Set("state", strings.Join(states, ","))
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(maxResults))
	endpoint := fmt.Sprintf("%s/board/%d/sprint", c.agileBase, boardID)
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, URL: endpoint, Query: query})
	if err != nil {
		return nil, err
	}
	var page SprintPage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, URL: endpoint, StatusCode: status, Body: truncate(string(body))}
	var parsed struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Messages = append(apiErr.Messages, parsed.ErrorMessages...)
		keys := make([]string, 0, len(parsed.Errors))
		for k := range parsed.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			apiErr.Messages = append(apiErr.Messages, k+": "+parsed.Errors[k])
		}
	}
	return apiErr
}

func logResponse(body []byte) {
	if len(body) <= maxResponseLogSize {
		log.Debugf("Request response: %s", body)
		return
	}
	log.Debugf("Request response is too large to log (size: %d bytes)", len(body))
}

// authHeader prefers basic auth when a username is configured, otherwise the
// token is sent as a bearer personal access token.
func authHeader(cfg *config.Config) string {
	switch {
	case cfg.JiraToken == "":
		return ""
	case cfg.JiraUsername != "":
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.JiraUsername+":"+cfg.JiraToken))
	default:
		return "Bearer " + cfg.JiraToken
	}
}

func joinURL(base, path string) string {
	path = strings.TrimRight(path, "/")
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		return path
	case strings.HasPrefix(path, "/"):
		return base + path
	default:
		return base + "/" + path
	}
}

// truncate shortens text for log lines and error messages.
func truncate(s string) string {
	if len(s) <= maxResponseLogSize {
		return s
	}
	return s[:maxResponseLogSize] + "... [truncated]"
}
