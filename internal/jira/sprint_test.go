package jira

import (
	"context"
	"errors"
	"fmt"
	"testing"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sprintCall struct {
	BoardID    int
	StartAt    int
	MaxResults int
}

// fakeAgile serves boards and sprints from memory and records sprint page requests.
type fakeAgile struct {
	projects map[string]string
	boards   []*atlassian.BoardScheme
	sprints  map[int][]*atlassian.SprintScheme
	calls    []sprintCall
	failOn   int
}

func (f *fakeAgile) ProjectID(_ context.Context, key string) (string, error) {
	id, ok := f.projects[key]
	if !ok {
		return "", &NotFoundError{Kind: "project", Name: key}
	}
	return id, nil
}

func (f *fakeAgile) Boards(_ context.Context, _ string, _ int) (*BoardPage, error) {
	last := true
	return &BoardPage{IsLast: &last, Values: f.boards}, nil
}

func (f *fakeAgile) Sprints(_ context.Context, boardID int, states []string, startAt, maxResults int) (*SprintPage, error) {
	f.calls = append(f.calls, sprintCall{BoardID: boardID, StartAt: startAt, MaxResults: maxResults})
	if f.failOn != 0 && f.failOn == boardID {
		return nil, &APIError{Method: "GET", StatusCode: 500}
	}
	all := f.sprints[boardID]
	end := startAt + maxResults
	if end > len(all) {
		end = len(all)
	}
	var values []*atlassian.SprintScheme
	if startAt < len(all) {
		values = all[startAt:end]
	}
	last := end >= len(all)
	return &SprintPage{StartAt: startAt, MaxResults: maxResults, IsLast: &last, Values: values}, nil
}

func makeSprints(n, firstID int) []*atlassian.SprintScheme {
	out := make([]*atlassian.SprintScheme, n)
	for i := range out {
		out[i] = &atlassian.SprintScheme{ID: firstID + i, Name: fmt.Sprintf("Sprint %d", i+1), State: "future"}
	}
	return out
}

func TestResolveSprintID_PaginatesUntilLastFlag(t *testing.T) {
	agile := &fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards:   []*atlassian.BoardScheme{{ID: 1, Type: "scrum"}},
		sprints:  map[int][]*atlassian.SprintScheme{1: makeSprints(120, 1000)},
	}
	r := NewSprintResolver(agile, 50)

	_, err := r.ResolveSprintID(context.Background(), "PROJ", "no such sprint")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, []sprintCall{
		{BoardID: 1, StartAt: 0, MaxResults: 50},
		{BoardID: 1, StartAt: 50, MaxResults: 50},
		{BoardID: 1, StartAt: 100, MaxResults: 50},
	}, agile.calls)
}

// emptyThenLast returns an empty non-last page before the page holding the sprint.
type emptyThenLast struct {
	fakeAgile
}

func (f *emptyThenLast) Sprints(_ context.Context, boardID int, _ []string, startAt, maxResults int) (*SprintPage, error) {
	f.calls = append(f.calls, sprintCall{BoardID: boardID, StartAt: startAt, MaxResults: maxResults})
	notLast, last := false, true
	if startAt == 0 {
		return &SprintPage{IsLast: &notLast}, nil
	}
	return &SprintPage{IsLast: &last, Values: []*atlassian.SprintScheme{{ID: 77, Name: "Target"}}}, nil
}

func TestResolveSprintID_EmptyPageIsNotTerminal(t *testing.T) {
	agile := &emptyThenLast{fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards:   []*atlassian.BoardScheme{{ID: 1, Type: "scrum"}},
	}}
	id, err := NewSprintResolver(agile, 10).ResolveSprintID(context.Background(), "PROJ", "target")
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.Len(t, agile.calls, 2)
}

func TestResolveSprintID_SkipsKanbanBoards(t *testing.T) {
	agile := &fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards: []*atlassian.BoardScheme{
			{ID: 1, Type: "kanban"},
			{ID: 2, Type: "scrum"},
			{ID: 3, Type: "scrum"},
		},
		sprints: map[int][]*atlassian.SprintScheme{
			1: {{ID: 11, Name: "Release Sprint"}},
			2: {{ID: 21, Name: "Other"}},
			3: {{ID: 31, Name: "  release sprint "}},
		},
	}
	id, err := NewSprintResolver(agile, 0).ResolveSprintID(context.Background(), "PROJ", "RELEASE SPRINT")
	require.NoError(t, err)
	assert.Equal(t, 31, id)

	for _, c := range agile.calls {
		assert.NotEqual(t, 1, c.BoardID, "kanban board must not be searched")
		assert.Equal(t, DefaultSprintPageSize, c.MaxResults)
	}
}

func TestResolveSprintID_FirstMatchShortCircuits(t *testing.T) {
	agile := &fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards:   []*atlassian.BoardScheme{{ID: 1, Type: "scrum"}, {ID: 2, Type: "scrum"}},
		sprints: map[int][]*atlassian.SprintScheme{
			1: {{ID: 11, Name: "Sprint A"}},
			2: {{ID: 21, Name: "Sprint A"}},
		},
	}
	id, err := NewSprintResolver(agile, 50).ResolveSprintID(context.Background(), "PROJ", "sprint a")
	require.NoError(t, err)
	assert.Equal(t, 11, id)
	assert.Len(t, agile.calls, 1)
}

func TestResolveSprintID_NotFoundCases(t *testing.T) {
	tests := []struct {
		name    string
		project string
		boards  []*atlassian.BoardScheme
		kind    string
	}{
		{name: "unknown project", project: "NOPE", kind: "project"},
		{name: "no scrum boards", project: "PROJ", boards: []*atlassian.BoardScheme{{ID: 1, Type: "kanban"}}, kind: "scrum board"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agile := &fakeAgile{projects: map[string]string{"PROJ": "10"}, boards: tt.boards}
			_, err := NewSprintResolver(agile, 50).ResolveSprintID(context.Background(), tt.project, "x")
			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.kind, nf.Kind)
		})
	}
}

func TestResolveSprintID_APIErrorIsHard(t *testing.T) {
	agile := &fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards:   []*atlassian.BoardScheme{{ID: 1, Type: "scrum"}},
		failOn:   1,
	}
	_, err := NewSprintResolver(agile, 50).ResolveSprintID(context.Background(), "PROJ", "x")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, 500, StatusCode(err))
}

func TestResolveSprintID_Cancelled(t *testing.T) {
	agile := &fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards:   []*atlassian.BoardScheme{{ID: 1, Type: "scrum"}},
		sprints:  map[int][]*atlassian.SprintScheme{1: makeSprints(5, 1)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSprintResolver(agile, 50).ResolveSprintID(ctx, "PROJ", "Sprint 1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, agile.calls)
}

// pagedBoards serves boards two per page and records each startAt.
type pagedBoards struct {
	fakeAgile
	boardStarts []int
}

func (f *pagedBoards) Boards(_ context.Context, _ string, startAt int) (*BoardPage, error) {
	f.boardStarts = append(f.boardStarts, startAt)
	end := startAt + 2
	if end > len(f.boards) {
		end = len(f.boards)
	}
	last := end >= len(f.boards)
	return &BoardPage{StartAt: startAt, IsLast: &last, Values: f.boards[startAt:end]}, nil
}

func TestResolveSprintID_ScrumBoardOnSecondPage(t *testing.T) {
	agile := &pagedBoards{fakeAgile: fakeAgile{
		projects: map[string]string{"PROJ": "10"},
		boards: []*atlassian.BoardScheme{
			{ID: 1, Type: "kanban"},
			{ID: 2, Type: "kanban"},
			{ID: 3, Type: "scrum"},
		},
		sprints: map[int][]*atlassian.SprintScheme{3: {{ID: 33, Name: "Sprint 9"}}},
	}}
	id, err := NewSprintResolver(agile, 50).ResolveSprintID(context.Background(), "PROJ", "Sprint 9")
	require.NoError(t, err)
	assert.Equal(t, 33, id)
	assert.Equal(t, []int{0, 2}, agile.boardStarts)
}
