package draft

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	replies []string
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

const goodDraft = "```yaml\nproject_key: \"myproject\"\nissues:\n  - summary: \"Fix login\"\n    issuetype: \"Bug\"\n    priority: \"Major\"\n```"

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(Request{TicketType: "story", Project: "PROJ", Description: "users cannot log in"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "You are a jira ticket generator")
	assert.Contains(t, prompt, "Please create a jira story in the project PROJ for the following issue:\nusers cannot log in")
	assert.Contains(t, prompt, "storyPoints: 3")
	assert.Less(t, strings.Index(prompt, "Please use yaml format"), strings.Index(prompt, "Here is an example"))
}

func TestExtractYAML(t *testing.T) {
	assert.Equal(t, "a: 1", ExtractYAML("Here you go:\n```yaml\na: 1\n```\nthanks"))
	assert.Equal(t, "a: 1", ExtractYAML("```\na: 1\n```"))
	assert.Equal(t, "a: 1", ExtractYAML("\n a: 1 \n"))
}

func TestDraft_RetriesUntilAccepted(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"not: [valid", goodDraft, goodDraft}}
	reviews := 0
	reviewer := ReviewerFunc(func(_ context.Context, draft string) (bool, error) {
		reviews++
		return reviews == 2, nil
	})

	file, text, err := NewGenerator(llm, 5).Draft(context.Background(), Request{TicketType: "bug", Project: "PROJ"}, reviewer)
	require.NoError(t, err)
	assert.Len(t, llm.prompts, 3)
	assert.Equal(t, 2, reviews)
	assert.Equal(t, "PROJ", file.ProjectKey)
	require.Len(t, file.Issues, 1)
	assert.Equal(t, "Fix login", file.Issues[0].Summary())
	assert.NotContains(t, text, "```")
}

func TestDraft_GivesUp(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodDraft, goodDraft}}
	reject := ReviewerFunc(func(context.Context, string) (bool, error) { return false, nil })

	_, _, err := NewGenerator(llm, 2).Draft(context.Background(), Request{Project: "PROJ"}, reject)
	assert.ErrorIs(t, err, ErrNotAccepted)
}

func TestDraft_LLMErrorIsReturned(t *testing.T) {
	_, _, err := NewGenerator(&scriptedLLM{}, 0).Draft(context.Background(), Request{}, AcceptAll)
	assert.EqualError(t, err, "no more replies")
}

func TestParse_RejectsEmptyDraft(t *testing.T) {
	_, err := Parse("project_key: X\n", "")
	assert.Error(t, err)
}

func TestPromptReviewer(t *testing.T) {
	var out bytes.Buffer
	r := NewPromptReviewer(strings.NewReader("n\nY\n"), &out)

	ok, err := r.Review(context.Background(), "draft one")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Review(context.Background(), "draft two")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Contains(t, out.String(), "draft one")
	assert.Contains(t, out.String(), "Let's try again.")

	_, err = r.Review(context.Background(), "draft three")
	assert.Error(t, err, "closed input is an error, not a rejection")
}
