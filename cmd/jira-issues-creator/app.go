package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/tuannvm/jira-issues-creator/internal/audit"
	"github.com/tuannvm/jira-issues-creator/internal/config"
	"github.com/tuannvm/jira-issues-creator/internal/creator"
	"github.com/tuannvm/jira-issues-creator/internal/jira"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// engine wires the tracker client, sprint resolver and field transformer
// behind a creator factory.
type engine struct {
	cfg         *config.Config
	client      *jira.Client
	transformer *jira.FieldTransformer
	concurrency int
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	client, err := jira.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sprints := jira.NewSprintResolver(client, cfg.SprintPageSize)
	return &engine{
		cfg:         cfg,
		client:      client,
		transformer: jira.NewFieldTransformer(cfg.Fields, sprints),
		concurrency: viper.GetInt("concurrency"),
	}, nil
}

func (e *engine) creator(observer func(models.CreatedIssue)) *creator.Creator {
	opts := []creator.Option{creator.WithConcurrency(e.concurrency)}
	if observer != nil {
		opts = append(opts, creator.WithObserver(observer))
	}
	return creator.New(e.client, e.transformer, e.cfg.Fields, opts...)
}

// openAudit opens the --audit-db store, or returns nil when it is not set.
func openAudit() (*audit.Store, error) {
	path := viper.GetString("audit-db")
	if path == "" {
		return nil, nil
	}
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	store, err := audit.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	return store, nil
}

// runFile creates every issue of file and prints the result.
func runFile(ctx context.Context, cfg *config.Config, file *models.IssuesFile, source string) error {
	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openAudit()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var runID string
	if store != nil {
		if runID, err = store.StartRun(ctx, file.ProjectKey, source); err != nil {
			log.Warnf("Failed to record run start: %v", err)
		}
	}
	observer := func(issue models.CreatedIssue) {
		if runID == "" {
			return
		}
		if err := store.RecordIssue(ctx, runID, issue); err != nil {
			log.Warnf("Failed to record issue %s: %v", issue.Key, err)
		}
	}

	log.Infof("Creating %d issue(s) in project %s", file.Count(), file.ProjectKey)
	report, runErr := eng.creator(observer).Run(ctx, file)
	if runID != "" {
		if err := store.FinishRun(context.WithoutCancel(ctx), runID, runErr, report.Warnings); err != nil {
			log.Warnf("Failed to record run end: %v", err)
		}
	}
	for _, w := range report.Warnings {
		log.Warnf("%s", w)
	}

	result := models.IssuesCreatedResult{
		RunID:      runID,
		ProjectKey: report.ProjectKey,
		Created:    report.Created,
		Warnings:   report.Warnings,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if err := printResult(result); err != nil {
		return err
	}
	return runErr
}
