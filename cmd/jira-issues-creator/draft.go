package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-issues-creator/internal/draft"
	"github.com/tuannvm/jira-issues-creator/internal/llm"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
)

const defaultModel = "o4-mini-2025-04-16"

func draftCmd() *cobra.Command {
	var (
		prompt, ticketType, project, model string
		useOllama, yes                     bool
		attempts                           int
	)
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft issues from a prompt with an LLM, review them, then create them",
		Example: `  jira-issues-creator draft -p "Add SSO login" -t story -j PROJ
  jira-issues-creator draft -p "Migrate CI" -t epic -j PROJ --use-ollama --model-name llama3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if useOllama {
				cfg.LLMProvider = "ollama"
			}
			if cmd.Flags().Changed("model-name") || useOllama || cfg.LLMModel == "" {
				cfg.LLMModel = model
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := llm.NewClient(cfg)
			if err != nil {
				return err
			}

			var reviewer draft.Reviewer = draft.NewPromptReviewer(os.Stdin, os.Stdout)
			if yes {
				reviewer = draft.AcceptAll
			}
			req := draft.Request{TicketType: ticketType, Description: prompt, Project: project}
			log.Infof("Drafting a %s for project %s with %s (%s)", ticketType, project, cfg.LLMModel, cfg.LLMProvider)
			spec, _, err := draft.NewGenerator(client, attempts).Draft(ctx, req, reviewer)
			if err != nil {
				return err
			}
			return runFile(ctx, cfg, spec, "draft")
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "prompt describing the issue to create")
	cmd.Flags().StringVarP(&ticketType, "ticket-type", "t", "", "type of the ticket to create (e.g., story, epic)")
	cmd.Flags().StringVarP(&project, "jira-project", "j", "", "Jira project key where the issue will be created")
	cmd.Flags().BoolVar(&useOllama, "use-ollama", false, "use a local ollama instance instead of OpenAI")
	cmd.Flags().StringVar(&model, "model-name", defaultModel, "name of the model used to generate tickets")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept the first valid draft without asking")
	cmd.Flags().IntVar(&attempts, "max-attempts", 0, "give up after this many drafts (0 = no limit)")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("ticket-type")
	_ = cmd.MarkFlagRequired("jira-project")
	return cmd
}
