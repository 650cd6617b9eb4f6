package draft

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tuannvm/jira-issues-creator/internal/llm"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// ErrNotAccepted is returned when every attempt was rejected.
var ErrNotAccepted = errors.New("no draft was accepted")

// Reviewer decides whether a generated draft is good enough to create.
type Reviewer interface {
	Review(ctx context.Context, draft string) (bool, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, draft string) (bool, error)

// Review calls f.
func (f ReviewerFunc) Review(ctx context.Context, draft string) (bool, error) { return f(ctx, draft) }

// AcceptAll accepts the first draft that parses.
var AcceptAll = ReviewerFunc(func(context.Context, string) (bool, error) { return true, nil })

// Generator drafts issues files with an LLM.
type Generator struct {
	llm         llm.LLMClient
	maxAttempts int
}

// NewGenerator creates a Generator. maxAttempts <= 0 retries until a draft is accepted.
func NewGenerator(client llm.LLMClient, maxAttempts int) *Generator {
	return &Generator{llm: client, maxAttempts: maxAttempts}
}

// Generate returns one raw draft for req.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	return g.llm.Complete(ctx, prompt)
}

// Draft generates drafts until the reviewer accepts one that parses, and
// returns the parsed issues file with the accepted text.
func (g *Generator) Draft(ctx context.Context, req Request, reviewer Reviewer) (*models.IssuesFile, string, error) {
	for attempt := 1; g.maxAttempts <= 0 || attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		raw, err := g.Generate(ctx, req)
		if err != nil {
			return nil, "", err
		}
		text := ExtractYAML(raw)
		file, err := Parse(text, req.Project)
		if err != nil {
			log.Warnf("Draft %d is not a valid issues file, trying again: %v", attempt, err)
			continue
		}
		ok, err := reviewer.Review(ctx, text)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return file, text, nil
		}
		log.Infof("Draft %d rejected, trying again", attempt)
	}
	return nil, "", fmt.Errorf("%w after %d attempt(s)", ErrNotAccepted, g.maxAttempts)
}

var fencePattern = regexp.MustCompile("(?s)```(?:ya?ml)?\\s*\\n(.*?)```")

// ExtractYAML returns the body of the first fenced code block, or the trimmed
// text when there is none.
func ExtractYAML(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// Parse decodes a draft. A non-empty project overrides the drafted project key.
func Parse(text, project string) (*models.IssuesFile, error) {
	file, err := models.ParseIssuesFile([]byte(text))
	if err != nil {
		return nil, err
	}
	if project != "" {
		file.ProjectKey = project
	}
	if file.Count() == 0 {
		return nil, errors.New("draft contains no issues")
	}
	return file, nil
}

// PromptReviewer shows each draft on out and reads a y/n answer from in.
type PromptReviewer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptReviewer creates a PromptReviewer.
func NewPromptReviewer(in io.Reader, out io.Writer) *PromptReviewer {
	return &PromptReviewer{in: bufio.NewReader(in), out: out}
}

// Review prints the draft and asks whether to keep it.
func (r *PromptReviewer) Review(_ context.Context, draft string) (bool, error) {
	fmt.Fprintf(r.out, "Please review the generated ticket:\n\n%s\n\nAre you satisfied with the ticket? [y/n]: ", draft)
	answer, err := r.in.ReadString('\n')
	if err != nil && answer == "" {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		return true, nil
	}
	fmt.Fprintln(r.out, "Let's try again.")
	return false, nil
}
