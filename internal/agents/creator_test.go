package agents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-issues-creator/internal/creator"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

type fakeSink struct {
	states    []protocol.TaskState
	last      *protocol.Message
	artifacts []protocol.Artifact
}

func (s *fakeSink) UpdateStatus(state protocol.TaskState, msg *protocol.Message) error {
	s.states = append(s.states, state)
	if msg != nil {
		s.last = msg
	}
	return nil
}

func (s *fakeSink) AddArtifact(artifact protocol.Artifact) error {
	s.artifacts = append(s.artifacts, artifact)
	return nil
}

type fakeRunner struct {
	observer func(models.CreatedIssue)
	created  []models.CreatedIssue
	err      error
	got      *models.IssuesFile
}

func (r *fakeRunner) Run(_ context.Context, f *models.IssuesFile) (*creator.RunReport, error) {
	r.got = f
	report := &creator.RunReport{ProjectKey: f.ProjectKey, Warnings: []string{"sprint skipped"}}
	for _, issue := range r.created {
		r.observer(issue)
		report.Created = append(report.Created, issue)
	}
	return report, r.err
}

type fakeRecorder struct {
	issues   []string
	finished error
	done     bool
}

func (r *fakeRecorder) StartRun(context.Context, string, string) (string, error) { return "run-1", nil }

func (r *fakeRecorder) RecordIssue(_ context.Context, _ string, issue models.CreatedIssue) error {
	r.issues = append(r.issues, issue.Key)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, _ string, runErr error, _ []string) error {
	r.finished, r.done = runErr, true
	return nil
}

func newAgent(runner *fakeRunner, rec Recorder) *IssueCreatorAgent {
	return NewIssueCreatorAgent(func(observer func(models.CreatedIssue)) Runner {
		runner.observer = observer
		return runner
	}, rec)
}

func specMessage() protocol.Message {
	return protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart("projectKey: PROJ\nissues:\n  - summary: one\n    issuetype: Task\n"),
	}}
}

func decodeResult(t *testing.T, msg *protocol.Message) models.IssuesCreatedResult {
	t.Helper()
	require.NotNil(t, msg)
	require.Len(t, msg.Parts, 1)
	var text string
	switch p := msg.Parts[0].(type) {
	case protocol.TextPart:
		text = p.Text
	case *protocol.TextPart:
		text = p.Text
	default:
		t.Fatalf("unexpected part %T", p)
	}
	var result models.IssuesCreatedResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	return result
}

func TestProcess_Completed(t *testing.T) {
	runner := &fakeRunner{created: []models.CreatedIssue{
		{Key: "PROJ-1", URL: "https://jira.example.com/browse/PROJ-1", IssueType: "Task", Summary: "one"},
	}}
	rec := &fakeRecorder{}
	sink := &fakeSink{}

	err := newAgent(runner, rec).process(context.Background(), "task-1", specMessage(), sink)
	require.NoError(t, err)

	assert.Equal(t, []protocol.TaskState{StateProcessing, StateCreating, StateCompleted}, sink.states)
	assert.Equal(t, "PROJ", runner.got.ProjectKey)

	require.Len(t, sink.artifacts, 1)
	assert.Equal(t, "PROJ-1", sink.artifacts[0].Metadata["key"])
	assert.Equal(t, "https://jira.example.com/browse/PROJ-1", sink.artifacts[0].Metadata["url"])

	result := decodeResult(t, sink.last)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "PROJ", result.ProjectKey)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, []string{"sprint skipped"}, result.Warnings)
	assert.Empty(t, result.Error)

	assert.Equal(t, []string{"PROJ-1"}, rec.issues)
	assert.True(t, rec.done)
	assert.NoError(t, rec.finished)
}

func TestProcess_RunFailureKeepsPartialResult(t *testing.T) {
	runErr := errors.New("boom")
	runner := &fakeRunner{created: []models.CreatedIssue{{Key: "PROJ-1"}}, err: runErr}
	rec := &fakeRecorder{}
	sink := &fakeSink{}

	err := newAgent(runner, rec).process(context.Background(), "task-2", specMessage(), sink)
	assert.ErrorIs(t, err, runErr)
	assert.Equal(t, StateFailed, sink.states[len(sink.states)-1])

	result := decodeResult(t, sink.last)
	assert.Equal(t, "boom", result.Error)
	assert.Len(t, result.Created, 1)
	assert.ErrorIs(t, rec.finished, runErr)
}

func TestProcess_InvalidMessage(t *testing.T) {
	runner := &fakeRunner{}
	sink := &fakeSink{}
	msg := protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("issues: []")}}

	err := newAgent(runner, nil).process(context.Background(), "task-3", msg, sink)
	require.Error(t, err)
	assert.Nil(t, runner.got)
	assert.Equal(t, []protocol.TaskState{StateProcessing, StateFailed}, sink.states)
	assert.NotEmpty(t, decodeResult(t, sink.last).Error)
}
