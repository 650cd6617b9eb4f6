package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-issues-creator/internal/common"
	"github.com/tuannvm/jira-issues-creator/internal/config"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

func submitCmd() *cobra.Command {
	var (
		file, project, agentURL string
		timeout, interval       time.Duration
	)
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Send an issues file to a running agent and wait for the result",
		Example: `  jira-issues-creator submit -f issues.yaml --agent-url http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readIssuesFile(file, project); err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if project != "" {
				if raw, err = setProjectKey(raw, project); err != nil {
					return err
				}
			}

			// Only the A2A client settings are needed here, and they come from the environment.
			cfg := &config.Config{AuthType: os.Getenv("AUTH_TYPE"), APIKey: os.Getenv("API_KEY")}
			if cfg.AuthType == "" && cfg.APIKey != "" {
				cfg.AuthType = "apikey"
			}
			a2aClient, err := common.SetupA2AClient(cfg, agentURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			message := protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(string(raw))}}
			task, err := common.SubmitAndWait(ctx, a2aClient, message, interval)
			if task == nil {
				return err
			}
			for _, artifact := range task.Artifacts {
				log.Debugf("Artifact %s: %s", common.MetadataString(artifact.Metadata, "key"), common.MetadataString(artifact.Metadata, "url"))
			}
			if printErr := printTaskResult(task); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "issues file file")
	cmd.Flags().StringVarP(&project, "project", "j", "", "project key (overrides projectKey in the file)")
	cmd.Flags().StringVar(&agentURL, "agent-url", "http://localhost:8080", "agent base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up waiting after this long")
	cmd.Flags().DurationVar(&interval, "poll-interval", time.Second, "task status poll interval")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// setProjectKey rewrites the top-level projectKey of an issues file,
// keeping the order of everything else.
func setProjectKey(raw []byte, project string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid issues file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("issues file must be a mapping")
	}
	root := doc.Content[0]
	content := root.Content[:0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		switch root.Content[i].Value {
		case "projectKey", "project_key":
			continue
		}
		content = append(content, root.Content[i], root.Content[i+1])
	}
	root.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "projectKey"},
		{Kind: yaml.ScalarNode, Value: project},
	}, content...)
	return yaml.Marshal(&doc)
}

// printTaskResult prints the IssuesCreatedResult carried by the final task status.
func printTaskResult(task *protocol.Task) error {
	for _, text := range common.TextParts(task.Status.Message) {
		var result models.IssuesCreatedResult
		if err := json.Unmarshal([]byte(text), &result); err != nil {
			continue
		}
		return printResult(result)
	}
	log.Warnf("Task %s finished in state %s without a result", task.ID, task.Status.State)
	return nil
}
