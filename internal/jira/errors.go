package jira

import (
	"errors"
	"fmt"
	"strings"
)

// AuthenticationError means the tracker rejected the configured URL or token.
type AuthenticationError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to validate Jira URL or token at %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to validate Jira URL or token at %s: status %d", e.URL, e.StatusCode)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ValidationError reports structurally invalid input or an unusable response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

// NotFoundError reports a project, board set or sprint that could not be resolved.
type NotFoundError struct {
	Kind string // "project", "scrum board", "sprint"
	Name string
	In   string
}

func (e *NotFoundError) Error() string {
	if e.In != "" {
		return fmt.Sprintf("%s %q not found in %s", e.Kind, e.Name, e.In)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// APIError wraps a non-2xx tracker response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Messages   []string // errorMessages and errors parsed from a JSON body
}

func (e *APIError) Error() string {
	detail := e.Body
	if len(e.Messages) > 0 {
		detail = strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("jira API %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, detail)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
