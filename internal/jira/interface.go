package jira

import (
	"context"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// IssueService defines the issue operations the creation engine drives.
type IssueService interface {
	CreateIssue(ctx context.Context, payload *IssuePayload) (*atlassian.IssueResponseScheme, error)
	UpdateIssue(ctx context.Context, key string, payload *IssuePayload) error
	LinkIssues(ctx context.Context, inwardKey, outwardKey, linkType string) error
	BrowseURL(key string) string
}

// AgileService defines the project and agile lookups the sprint resolver needs.
type AgileService interface {
	ProjectID(ctx context.Context, projectKey string) (string, error)
	Boards(ctx context.Context, projectID string, startAt int) (*BoardPage, error)
	Sprints(ctx context.Context, boardID int, states []string, startAt, maxResults int) (*SprintPage, error)
}

// SprintLookup resolves a sprint name to its id within a project.
type SprintLookup interface {
	ResolveSprintID(ctx context.Context, projectKey, sprintName string) (int, error)
}

var (
	_ IssueService = (*Client)(nil)
	_ AgileService = (*Client)(nil)
	_ SprintLookup = (*SprintResolver)(nil)
)
