// Package agents exposes the issue creator as an A2A task processor.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/jira-issues-creator/internal/common"
	"github.com/tuannvm/jira-issues-creator/internal/creator"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// Task states reported while an issues file is processed.
const (
	StateProcessing = protocol.TaskState("processing")
	StateCreating   = protocol.TaskState("creating_issues")
	StateCompleted  = protocol.TaskState("completed")
	StateFailed     = protocol.TaskState("failed")
)

// Runner creates the issues of an issues file.
type Runner interface {
	Run(ctx context.Context, f *models.IssuesFile) (*creator.RunReport, error)
}

// RunnerFactory builds a Runner that reports every created issue to observer.
type RunnerFactory func(observer func(models.CreatedIssue)) Runner

// Recorder persists runs. *audit.Store implements it.
type Recorder interface {
	StartRun(ctx context.Context, projectKey, source string) (string, error)
	RecordIssue(ctx context.Context, runID string, issue models.CreatedIssue) error
	FinishRun(ctx context.Context, runID string, runErr error, warnings []string) error
}

// taskSink is the part of taskmanager.TaskHandle the agent uses.
type taskSink interface {
	UpdateStatus(state protocol.TaskState, msg *protocol.Message) error
	AddArtifact(artifact protocol.Artifact) error
}

// IssueCreatorAgent implements the TaskProcessor interface from trpc-a2a-go
type IssueCreatorAgent struct {
	newRunner RunnerFactory
	recorder  Recorder
}

// NewIssueCreatorAgent creates an agent. recorder may be nil.
func NewIssueCreatorAgent(newRunner RunnerFactory, recorder Recorder) *IssueCreatorAgent {
	return &IssueCreatorAgent{newRunner: newRunner, recorder: recorder}
}

// Process implements the TaskProcessor interface from trpc-a2a-go
func (a *IssueCreatorAgent) Process(ctx context.Context, taskID string, message protocol.Message, handle taskmanager.TaskHandle) error {
	return a.process(ctx, taskID, message, handle)
}

func (a *IssueCreatorAgent) process(ctx context.Context, taskID string, message protocol.Message, handle taskSink) error {
	log.Infof("Received task with ID: %s", taskID)
	if err := handle.UpdateStatus(StateProcessing, nil); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	file, err := common.ExtractIssuesFile(message)
	if err != nil {
		log.Errorf("Failed to extract issues file: %v", err)
		return a.fail(handle, &models.IssuesCreatedResult{}, fmt.Errorf("failed to extract issues file: %w", err))
	}
	log.Infof("Task %s: creating %d issue(s) in project %s", taskID, file.Count(), file.ProjectKey)

	result := &models.IssuesCreatedResult{ProjectKey: file.ProjectKey}
	if a.recorder != nil {
		runID, err := a.recorder.StartRun(ctx, file.ProjectKey, "a2a")
		if err != nil {
			log.Warnf("Failed to record run start: %v", err)
		}
		result.RunID = runID
	}

	if err := handle.UpdateStatus(StateCreating, nil); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	runner := a.newRunner(func(issue models.CreatedIssue) {
		if err := handle.AddArtifact(issueArtifact(issue)); err != nil {
			log.Warnf("Failed to record artifact for %s: %v", issue.Key, err)
		}
		if a.recorder != nil && result.RunID != "" {
			if err := a.recorder.RecordIssue(ctx, result.RunID, issue); err != nil {
				log.Warnf("Failed to record issue %s: %v", issue.Key, err)
			}
		}
	})
	report, runErr := runner.Run(ctx, file)
	if report != nil {
		result.Created = report.Created
		result.Warnings = report.Warnings
	}
	if a.recorder != nil && result.RunID != "" {
		if err := a.recorder.FinishRun(context.WithoutCancel(ctx), result.RunID, runErr, result.Warnings); err != nil {
			log.Warnf("Failed to record run end: %v", err)
		}
	}
	if runErr != nil {
		log.Errorf("Task %s failed after %d issue(s): %v", taskID, len(result.Created), runErr)
		return a.fail(handle, result, runErr)
	}

	msg, err := resultMessage(result)
	if err != nil {
		return err
	}
	if err := handle.UpdateStatus(StateCompleted, msg); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	log.Infof("Task %s completed successfully", taskID)
	return nil
}

// fail reports the partial result with its error and returns runErr.
func (a *IssueCreatorAgent) fail(handle taskSink, result *models.IssuesCreatedResult, runErr error) error {
	result.Error = runErr.Error()
	msg, err := resultMessage(result)
	if err != nil {
		return err
	}
	if err := handle.UpdateStatus(StateFailed, msg); err != nil {
		log.Warnf("Failed to update status: %v", err)
	}
	return runErr
}

func issueArtifact(issue models.CreatedIssue) protocol.Artifact {
	return protocol.Artifact{
		Name:        common.StringPtr(issue.Key),
		Description: common.StringPtr(fmt.Sprintf("Jira %s: %s", issue.IssueType, issue.Summary)),
		Parts:       []protocol.Part{},
		Metadata: map[string]interface{}{
			"key": issue.Key,
			"url": issue.URL,
		},
	}
}

func resultMessage(result *models.IssuesCreatedResult) (*protocol.Message, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &protocol.Message{
		Parts: []protocol.Part{protocol.NewTextPart(string(resultJSON))},
	}, nil
}
