// Package creator turns a tree of issue definitions into Jira issues.
//
// Each node is realized in a fixed order: create, update post-creation
// fields, explicit links, the implicit link to its parent node, then its
// children depth-first. Nothing is rolled back when a node fails.
package creator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tuannvm/jira-issues-creator/internal/config"
	"github.com/tuannvm/jira-issues-creator/internal/jira"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
	"github.com/tuannvm/jira-issues-creator/internal/telemetry"
)

// Option configures a Creator.
type Option func(*Creator)

// WithObserver registers a callback invoked once per issue, right after it is created.
// Calls are serialized.
func WithObserver(fn func(models.CreatedIssue)) Option {
	return func(c *Creator) { c.observer = fn }
}

// WithConcurrency lets up to n issues be realized at once across the whole
// tree. The default of 1 keeps every call strictly sequential.
func WithConcurrency(n int) Option {
	return func(c *Creator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Creator creates issue trees through an IssueService.
type Creator struct {
	client      jira.IssueService
	transformer *jira.FieldTransformer
	fields      config.FieldMapping
	observer    func(models.CreatedIssue)
	concurrency int
}

// New creates a Creator.
func New(client jira.IssueService, transformer *jira.FieldTransformer, fields config.FieldMapping, opts ...Option) *Creator {
	c := &Creator{
		client:      client,
		transformer: transformer,
		fields:      fields,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunReport lists what a run created and the soft failures it met. It is
// returned even when the run stops early.
type RunReport struct {
	ProjectKey string
	Created    []models.CreatedIssue
	Warnings   []string
}

// scope is what a node inherits from its ancestors. It is passed by value.
type scope struct {
	ProjectKey string
	EpicKey    string
	ParentKey  string
}

// under returns the scope for the children of the issue key.
func (s scope) under(key string, epicRoot bool) scope {
	child := s
	child.ParentKey = key
	if epicRoot {
		child.EpicKey = key
	}
	return child
}

type run struct {
	c      *Creator
	mu     sync.Mutex
	report *RunReport
	// slots bounds in-flight nodes over the whole run; nil when sequential.
	slots *semaphore.Weighted
}

// Run creates every epic and then every standalone issue of the file.
func (c *Creator) Run(ctx context.Context, f *models.IssuesFile) (*RunReport, error) {
	if f == nil {
		return &RunReport{}, &jira.ValidationError{Reason: "no issues file"}
	}
	return c.execute(ctx, f.ProjectKey, func(ctx context.Context, r *run, root scope) error {
		if err := r.createEpics(ctx, f.Epics, root); err != nil {
			return err
		}
		return r.createNodes(ctx, f.Issues, root)
	})
}

// CreateEpicsAndIssues creates each epic, then its issues with the epic link set.
func (c *Creator) CreateEpicsAndIssues(ctx context.Context, projectKey string, epics []models.IssueSpec) (*RunReport, error) {
	return c.execute(ctx, projectKey, func(ctx context.Context, r *run, root scope) error {
		return r.createEpics(ctx, epics, root)
	})
}

// CreateIssues creates issues without any epic association.
func (c *Creator) CreateIssues(ctx context.Context, projectKey string, issues []models.IssueSpec) (*RunReport, error) {
	return c.execute(ctx, projectKey, func(ctx context.Context, r *run, root scope) error {
		return r.createNodes(ctx, issues, root)
	})
}

func (c *Creator) execute(ctx context.Context, projectKey string, fn func(context.Context, *run, scope) error) (*RunReport, error) {
	projectKey = strings.TrimSpace(projectKey)
	r := &run{c: c, report: &RunReport{ProjectKey: projectKey}}
	if c.concurrency > 1 {
		r.slots = semaphore.NewWeighted(int64(c.concurrency))
	}
	if projectKey == "" {
		return r.report, &jira.ValidationError{Reason: "projectKey is required"}
	}
	if c.fields.EpicLinkFieldID() == "" {
		return r.report, &jira.ValidationError{Reason: "no custom field is mapped for epicLink"}
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "creator.run", attribute.String(telemetry.KeyProject, projectKey))
	defer span.End()

	err := fn(ctx, r, scope{ProjectKey: projectKey})
	outcome := "completed"
	if err != nil {
		outcome = "failed"
		telemetry.EndSpan(span, err)
	}
	telemetry.RecordRun(ctx, projectKey, outcome, time.Since(start))
	log.Infof("Run %s: %d issue(s) created in project %s", outcome, len(r.report.Created), projectKey)
	return r.report, err
}

func (r *run) createEpics(ctx context.Context, epics []models.IssueSpec, root scope) error {
	for _, epic := range epics {
		if err := r.createNode(ctx, epic, root, true); err != nil {
			return err
		}
	}
	return nil
}

// createNodes creates siblings in input order, or concurrently when the run
// has slots. The group only propagates the first error; the run-wide slots
// do the bounding.
func (r *run) createNodes(ctx context.Context, specs []models.IssueSpec, sc scope) error {
	if r.slots == nil || len(specs) < 2 {
		for _, spec := range specs {
			if err := r.createNode(ctx, spec, sc, false); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			return r.createNode(gctx, spec, sc, false)
		})
	}
	return g.Wait()
}

func (r *run) createNode(ctx context.Context, spec models.IssueSpec, sc scope, epicRoot bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "creator.issue",
		attribute.String(telemetry.KeyProject, sc.ProjectKey),
		attribute.String(telemetry.KeyIssueType, spec.IssueType),
	)
	defer span.End()

	if epicRoot {
		log.Infof("Creating a Jira Epic %q", epicName(spec))
	} else {
		log.Infof("Creating a Jira Issue type %s: %q", spec.IssueType, spec.Summary())
	}

	key, err := r.realizeAndLink(ctx, spec, sc)
	if err != nil {
		telemetry.EndSpan(span, err)
		return err
	}
	span.SetAttributes(attribute.String(telemetry.KeyIssueKey, key))

	if err := r.createNodes(ctx, spec.Children, sc.under(key, epicRoot)); err != nil {
		return err
	}
	return nil
}

// realizeAndLink holds a run slot while the node's own calls are made. The
// slot is released before the children start.
func (r *run) realizeAndLink(ctx context.Context, spec models.IssueSpec, sc scope) (string, error) {
	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer r.slots.Release(1)
	}

	key, err := r.realize(ctx, spec, sc)
	if err != nil {
		return "", err
	}
	if sc.ParentKey != "" && !spec.IsSubtask() {
		linkType := spec.ParentLinkType()
		log.Debugf("Requesting a %q link between %s --> %s", linkType, key, sc.ParentKey)
		if err := r.c.client.LinkIssues(ctx, key, sc.ParentKey, linkType); err != nil {
			return key, err
		}
	}
	return key, nil
}

// realize creates one issue, sets its post-creation fields and its explicit
// links, and returns the new key.
func (r *run) realize(ctx context.Context, spec models.IssueSpec, sc scope) (string, error) {
	initial, err := r.c.transformer.Build(ctx, sc.ProjectKey, spec.Fields, func(f string) bool {
		return !r.c.fields.IsPostCreation(f)
	})
	if err != nil {
		return "", err
	}
	r.warn(initial.Warnings)

	fields := initial.Fields
	fields["project"] = map[string]interface{}{"key": sc.ProjectKey}
	switch {
	case sc.EpicKey != "" && !spec.IsSubtask():
		fields[r.c.fields.EpicLinkFieldID()] = sc.EpicKey
	case spec.IsSubtask() && sc.ParentKey != "":
		fields["parent"] = map[string]interface{}{"key": sc.ParentKey}
	}

	created, err := r.c.client.CreateIssue(ctx, &jira.IssuePayload{Fields: fields})
	if err != nil {
		return "", err
	}
	if created == nil || created.Key == "" {
		return "", &jira.ValidationError{Reason: "failed to retrieve issue key from the Jira response"}
	}
	key := created.Key
	r.record(ctx, spec, sc, key)

	update, err := r.c.transformer.Build(ctx, sc.ProjectKey, spec.Fields, r.c.fields.IsPostCreation)
	if err != nil {
		return key, err
	}
	r.warn(update.Warnings)
	if len(update.Fields) > 0 {
		log.Debugf("Update the issue %s with the post-creation fields", key)
		if err := r.c.client.UpdateIssue(ctx, key, &jira.IssuePayload{Fields: update.Fields}); err != nil {
			return key, err
		}
	}

	for _, link := range spec.IssueLinks {
		linkType := link.Type
		if linkType == "" {
			linkType = models.DefaultLinkType
		}
		log.Debugf("Requesting a %q link between %s --> %s", linkType, key, link.TargetKey)
		if err := r.c.client.LinkIssues(ctx, key, link.TargetKey, linkType); err != nil {
			return key, err
		}
	}
	return key, nil
}

func (r *run) record(ctx context.Context, spec models.IssueSpec, sc scope, key string) {
	issue := models.CreatedIssue{
		Key:       key,
		URL:       r.c.client.BrowseURL(key),
		IssueType: spec.IssueType,
		Summary:   spec.Summary(),
		EpicKey:   sc.EpicKey,
		ParentKey: sc.ParentKey,
	}
	if sc.EpicKey != "" {
		log.Infof("Issue created successfully under Epic %s: %s", sc.EpicKey, issue.URL)
	} else {
		log.Infof("Issue created successfully: %s", issue.URL)
	}
	telemetry.RecordIssueCreated(ctx, sc.ProjectKey, spec.IssueType)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Created = append(r.report.Created, issue)
	if r.c.observer != nil {
		r.c.observer(issue)
	}
}

func (r *run) warn(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	r.mu.Lock()
	r.report.Warnings = append(r.report.Warnings, warnings...)
	r.mu.Unlock()
}

func epicName(spec models.IssueSpec) string {
	if v, ok := spec.Fields["epicName"].(string); ok && v != "" {
		return v
	}
	return spec.Summary()
}
