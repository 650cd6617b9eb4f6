package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by spans and metrics.
const (
	KeyHTTPMethod  = "http.method"
	KeyHTTPStatus  = "http.status_code"
	KeyResource    = "jira.resource"
	KeyProject     = "jira.project"
	KeyIssueType   = "jira.issue_type"
	KeyIssueKey    = "jira.issue_key"
	KeySprintFound = "jira.sprint.found"
	KeyRunOutcome  = "jira.run.outcome"
)

var (
	apiRequestsCounter   metric.Int64Counter
	apiErrorsCounter     metric.Int64Counter
	issuesCreatedCounter metric.Int64Counter
	sprintLookupsCounter metric.Int64Counter
	apiLatencyHistogram  metric.Float64Histogram
	runDurationHistogram metric.Float64Histogram
)

// initMetrics initializes all metric instruments.
// Must be called after Init() has set up the global meter provider.
func initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error

	if apiRequestsCounter, err = meter.Int64Counter(
		"jira_api_requests_total",
		metric.WithDescription("Total number of Jira REST API requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if apiErrorsCounter, err = meter.Int64Counter(
		"jira_api_errors_total",
		metric.WithDescription("Total number of Jira REST API requests that failed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if issuesCreatedCounter, err = meter.Int64Counter(
		"jira_issues_created_total",
		metric.WithDescription("Total number of issues created"),
		metric.WithUnit("{issue}"),
	); err != nil {
		return err
	}

	if sprintLookupsCounter, err = meter.Int64Counter(
		"jira_sprint_lookups_total",
		metric.WithDescription("Total number of sprint name lookups"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return err
	}

	if apiLatencyHistogram, err = meter.Float64Histogram(
		"jira_api_request_duration_seconds",
		metric.WithDescription("Duration of Jira REST API requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if runDurationHistogram, err = meter.Float64Histogram(
		"jira_creator_run_duration_seconds",
		metric.WithDescription("Duration of an issue creation run in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	return nil
}

// RecordAPIRequest records one Jira request. A zero status means the request
// never got a response.
func RecordAPIRequest(ctx context.Context, method, resource string, status int, duration time.Duration) {
	if apiRequestsCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(KeyHTTPMethod, method),
		attribute.String(KeyResource, resource),
		attribute.String(KeyHTTPStatus, strconv.Itoa(status)),
	)
	apiRequestsCounter.Add(ctx, 1, attrs)
	if status < 200 || status > 299 {
		apiErrorsCounter.Add(ctx, 1, attrs)
	}
	apiLatencyHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String(KeyHTTPMethod, method),
			attribute.String(KeyResource, resource),
		),
	)
}

// RecordIssueCreated records a created issue
func RecordIssueCreated(ctx context.Context, project, issueType string) {
	if issuesCreatedCounter == nil {
		return
	}
	issuesCreatedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyProject, project),
			attribute.String(KeyIssueType, issueType),
		),
	)
}

// RecordSprintLookup records a sprint name lookup and whether it matched
func RecordSprintLookup(ctx context.Context, project string, found bool) {
	if sprintLookupsCounter == nil {
		return
	}
	sprintLookupsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyProject, project),
			attribute.Bool(KeySprintFound, found),
		),
	)
}

// RecordRun records the duration and outcome of a creation run
func RecordRun(ctx context.Context, project, outcome string, duration time.Duration) {
	if runDurationHistogram == nil {
		return
	}
	runDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String(KeyProject, project),
			attribute.String(KeyRunOutcome, outcome),
		),
	)
}
