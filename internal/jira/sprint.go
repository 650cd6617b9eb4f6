package jira

import (
	"context"
	"fmt"
	"strings"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/telemetry"
)

// DefaultSprintPageSize is the maxResults used when paging through sprints.
const DefaultSprintPageSize = 50

const scrumBoardType = "scrum"

var sprintStates = []string{"active", "future"}

// SprintResolver finds a sprint id by name across the scrum boards of a project.
// Nothing is cached between calls.
type SprintResolver struct {
	agile    AgileService
	pageSize int
}

// NewSprintResolver creates a resolver. A non-positive pageSize uses DefaultSprintPageSize.
func NewSprintResolver(agile AgileService, pageSize int) *SprintResolver {
	if pageSize <= 0 {
		pageSize = DefaultSprintPageSize
	}
	return &SprintResolver{agile: agile, pageSize: pageSize}
}

// ResolveSprintID returns the id of the first active or future sprint whose
// name matches sprintName, ignoring case and surrounding whitespace. Boards are
// searched in enumeration order and kanban boards are skipped.
func (r *SprintResolver) ResolveSprintID(ctx context.Context, projectKey, sprintName string) (int, error) {
	id, err := r.resolve(ctx, projectKey, sprintName)
	telemetry.RecordSprintLookup(ctx, projectKey, err == nil)
	return id, err
}

func (r *SprintResolver) resolve(ctx context.Context, projectKey, sprintName string) (int, error) {
	projectID, err := r.agile.ProjectID(ctx, projectKey)
	if err != nil {
		return 0, err
	}

	boards, err := r.scrumBoards(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(boards) == 0 {
		return 0, &NotFoundError{Kind: "scrum board", Name: projectKey}
	}

	want := normalizeSprintName(sprintName)
	for _, board := range boards {
		id, ok, err := r.searchBoard(ctx, board.ID, want)
		if err != nil {
			return 0, err
		}
		if ok {
			log.Debugf("Resolved sprint %q to id %d on board %d", sprintName, id, board.ID)
			return id, nil
		}
	}
	return 0, &NotFoundError{Kind: "sprint", Name: sprintName, In: fmt.Sprintf("project %s", projectKey)}
}

func (r *SprintResolver) scrumBoards(ctx context.Context, projectID string) ([]*atlassian.BoardScheme, error) {
	var scrum []*atlassian.BoardScheme
	startAt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := r.agile.Boards(ctx, projectID, startAt)
		if err != nil {
			return nil, err
		}
		for _, b := range page.Values {
			if b == nil {
				continue
			}
			if !strings.EqualFold(b.Type, scrumBoardType) {
				log.Debugf("Skipping %s board %d: only scrum boards have sprints", b.Type, b.ID)
				continue
			}
			scrum = append(scrum, b)
		}
		if page.Last() || len(page.Values) == 0 {
			return scrum, nil
		}
		startAt += len(page.Values)
	}
}

// searchBoard pages until the tracker flags the last page. An empty page does
// not end the search.
func (r *SprintResolver) searchBoard(ctx context.Context, boardID int, want string) (int, bool, error) {
	startAt := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		page, err := r.agile.Sprints(ctx, boardID, sprintStates, startAt, r.pageSize)
		if err != nil {
			return 0, false, err
		}
		for _, s := range page.Values {
			if s != nil && normalizeSprintName(s.Name) == want {
				return s.ID, true, nil
			}
		}
		if page.Last() {
			return 0, false, nil
		}
		startAt += r.pageSize
	}
}

func normalizeSprintName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
