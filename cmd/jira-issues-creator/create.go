package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-issues-creator/internal/models"
)

func createCmd() *cobra.Command {
	var file, project string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the issues described in a YAML or JSON file",
		Example: `  jira-issues-creator create -f issues.yaml
  jira-issues-creator create -f issues.yaml --project PROJ --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			spec, err := readIssuesFile(file, project)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFile(ctx, cfg, spec, "create")
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "issues file file")
	cmd.Flags().StringVarP(&project, "project", "j", "", "project key (overrides projectKey in the file)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readIssuesFile(path, project string) (*models.IssuesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read issues file %q: %w", path, err)
	}
	spec, err := models.ParseIssuesFile(raw)
	if err != nil {
		return nil, err
	}
	if project != "" {
		spec.ProjectKey = project
	}
	if spec.ProjectKey == "" {
		return nil, fmt.Errorf("%s: projectKey is required", path)
	}
	if spec.Count() == 0 {
		return nil, fmt.Errorf("%s: no epics or issues to create", path)
	}
	return spec, nil
}
