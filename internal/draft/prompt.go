// Package draft turns a free-text issue description into an issues file with
// an LLM, and loops until a reviewer accepts the draft.
package draft

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Request describes the ticket to draft.
type Request struct {
	TicketType  string
	Description string
	Project     string
}

var introductionPrompt = prompts.NewPromptTemplate(`
You are a jira ticket generator. You will be provided with an issue description and you need to create a jira ticket in the proper format.
`, nil)

var formatPrompt = prompts.NewPromptTemplate(`
Please use yaml format and include the following fields in the jira ticket:
- summary - which is a short description of the issue
- description - which is a detailed description of the issue
- issuetype - which is the type of the issue (e.g. bug, task, story)
- epicLink - which is the link to the epic if applicable
- assignee - the person assigned to the issue if not empty
- priority - the priority of the issue from the following options: Normal, Major, Critical
- storyPoints - the story points for the issue if applicable

if you are missing any of the above fields, please omit the field in the output.
Please do not include any other fields in the output.
`, nil)

var examplePrompt = prompts.NewPromptTemplate(`
Here is an example of a jira ticket in yaml format:

project_key: "myproject"
issues:
  - summary: "convert reboot test to run in ansible"
    description: |
      Convert the reboot test to run in new ansible testing plugin.
    issuetype: "Story"
    epicLink: "myproject-1234"
    assignee: "eshulman"
    priority: "Normal"
    storyPoints: 3
`, nil)

var createPrompt = prompts.NewPromptTemplate(`
Please create a jira {{.ticket_type}} in the project {{.project}} for the following issue:
{{.issue_description}}
`, []string{"ticket_type", "project", "issue_description"})

var fullPrompt = prompts.NewPromptTemplate(`
{{.introduction}}

{{.format}}

{{.example}}

{{.create}}
`, []string{"introduction", "format", "example", "create"})

// BuildPrompt renders the four prompt sections and joins them into the final prompt.
func BuildPrompt(req Request) (string, error) {
	values := map[string]any{
		"ticket_type":       req.TicketType,
		"project":           req.Project,
		"issue_description": req.Description,
	}
	parts := map[string]any{}
	for name, tmpl := range map[string]prompts.PromptTemplate{
		"introduction": introductionPrompt,
		"format":       formatPrompt,
		"example":      examplePrompt,
		"create":       createPrompt,
	} {
		text, err := tmpl.Format(values)
		if err != nil {
			return "", fmt.Errorf("render %s prompt: %w", name, err)
		}
		parts[name] = text
	}
	return fullPrompt.Format(parts)
}
