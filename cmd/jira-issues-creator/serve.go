package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-a2a-go/server"

	"github.com/tuannvm/jira-issues-creator/internal/agents"
	"github.com/tuannvm/jira-issues-creator/internal/common"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

func serveCmd() *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an A2A agent that creates issues from submitted issues files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.ServerHost = host
			}
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			store, err := openAudit()
			if err != nil {
				return err
			}
			var recorder agents.Recorder
			if store != nil {
				defer store.Close()
				recorder = store
			}

			agent := agents.NewIssueCreatorAgent(func(observer func(models.CreatedIssue)) agents.Runner {
				return eng.creator(observer)
			}, recorder)

			srv, err := common.SetupServer(common.SetupServerOptions{
				AgentName:    cfg.AgentName,
				AgentVersion: cfg.AgentVersion,
				AgentURL:     cfg.AgentURL,
				AuthType:     cfg.AuthType,
				JWTSecret:    cfg.JWTSecret,
				APIKey:       cfg.APIKey,
				Processor:    agent,
				Skills:       []server.AgentSkill{common.IssueCreationSkill()},
			})
			if err != nil {
				return err
			}

			log.Infof("%s listening on %s:%d", cfg.AgentName, cfg.ServerHost, cfg.ServerPort)
			if err := common.StartServer(ctx, srv, cfg.ServerHost, cfg.ServerPort); err != nil {
				return err
			}
			if ctx.Err() == context.Canceled {
				log.Infof("Server shutdown complete")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "listen host (overrides SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides SERVER_PORT)")
	return cmd
}
