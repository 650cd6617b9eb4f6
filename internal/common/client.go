package common

import (
	"context"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-issues-creator/internal/config"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
)

// SetupA2AClient creates and configures an A2A client with appropriate authentication
func SetupA2AClient(cfg *config.Config, targetURL string) (*client.A2AClient, error) {
	var a2aClient *client.A2AClient
	var err error

	switch cfg.AuthType {
	case "apikey":
		log.Debugf("Using API key authentication for A2A client (API key length: %d)", len(cfg.APIKey))
		a2aClient, err = client.NewA2AClient(targetURL, client.WithAPIKeyAuth(cfg.APIKey, "X-API-Key"))
	default:
		log.Warnf("No authentication configured for A2A client")
		a2aClient, err = client.NewA2AClient(targetURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create A2A client: %w", err)
	}
	return a2aClient, nil
}

// SubmitAndWait sends a message as a new task and polls until the task
// completes or fails.
func SubmitAndWait(ctx context.Context, a2aClient *client.A2AClient, message protocol.Message, interval time.Duration) (*protocol.Task, error) {
	task, err := a2aClient.SendTasks(ctx, protocol.SendTaskParams{Message: message})
	if err != nil {
		return nil, fmt.Errorf("SendTasks RPC failed: %w", err)
	}
	log.Infof("Task sent successfully! Task ID: %s", task.ID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		switch task.Status.State {
		case protocol.TaskState("completed"):
			return task, nil
		case protocol.TaskState("failed"):
			return task, fmt.Errorf("task %s failed", task.ID)
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
		task, err = a2aClient.GetTasks(ctx, protocol.TaskQueryParams{ID: task.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		log.Debugf("Task status: %s", task.Status.State)
	}
}

// TextParts returns the text of every TextPart in a message.
func TextParts(message *protocol.Message) []string {
	if message == nil {
		return nil
	}
	var out []string
	for _, part := range message.Parts {
		switch p := part.(type) {
		case protocol.TextPart:
			out = append(out, p.Text)
		case *protocol.TextPart:
			if p != nil {
				out = append(out, p.Text)
			}
		}
	}
	return out
}
