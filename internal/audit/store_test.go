package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-issues-creator/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	runID, err := s.StartRun(ctx, "PROJ", "create")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	issues := []models.CreatedIssue{
		{Key: "PROJ-1", URL: "https://jira/browse/PROJ-1", IssueType: "Epic", Summary: "Epic"},
		{Key: "PROJ-2", URL: "https://jira/browse/PROJ-2", IssueType: "Story", EpicKey: "PROJ-1", ParentKey: "PROJ-1"},
	}
	for _, ci := range issues {
		require.NoError(t, s.RecordIssue(ctx, runID, ci))
	}
	require.NoError(t, s.FinishRun(ctx, runID, nil, []string{"sprint \"x\" not set"}))

	got, err := s.Issues(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, issues, got)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].IssueCount)
	assert.Equal(t, []string{"sprint \"x\" not set"}, runs[0].Warnings)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestStoreFailedRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	runID, err := s.StartRun(ctx, "PROJ", "a2a")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, runID, errors.New("boom"), nil))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Empty(t, runs[0].Warnings)
}

func TestStoreFinishUnknownRun(t *testing.T) {
	s := openStore(t)
	err := s.FinishRun(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}
