package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/auth"
	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	log "github.com/tuannvm/jira-issues-creator/internal/logging"
)

// Organization is advertised on the agent card.
const Organization = "jira-issues-creator"

// SetupServerOptions contains options for setting up an A2A server
type SetupServerOptions struct {
	AgentName    string
	AgentVersion string
	AgentURL     string
	AuthType     string
	JWTSecret    string
	APIKey       string
	Processor    taskmanager.TaskProcessor
	Skills       []server.AgentSkill
	Timeout      time.Duration // read and write timeout, 2 minutes when zero
}

// IssueCreationSkill describes the create_issues skill of the creator agent.
func IssueCreationSkill() server.AgentSkill {
	return server.AgentSkill{
		ID:          "create_issues",
		Name:        "Create Jira issues",
		Description: StringPtr("Creates a tree of epics, issues and sub-tasks from a YAML or JSON issues file"),
		Tags:        []string{"jira", "issues", "epics"},
		Examples:    []string{"projectKey: PROJ\nissues:\n  - summary: Set up CI\n    issuetype: Task"},
		InputModes:  []string{"text", "data"},
		OutputModes: []string{"text", "data"},
	}
}

// SetupServer creates and configures an A2A server with common settings
func SetupServer(opts SetupServerOptions) (*server.A2AServer, error) {
	agentCard := server.AgentCard{
		Name:        opts.AgentName,
		Description: StringPtr(fmt.Sprintf("%s agent", opts.AgentName)),
		URL:         opts.AgentURL,
		Version:     opts.AgentVersion,
		Provider: &server.AgentProvider{
			Organization: Organization,
		},
		DefaultInputModes:  []string{"text", "data"},
		DefaultOutputModes: []string{"text", "data"},
		Skills:             opts.Skills,
	}

	// Create task manager, inject processor
	taskManager, err := taskmanager.NewMemoryTaskManager(opts.Processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	// Enable JSON-RPC at root so A2AClient.SendTasks will POST to "/"
	serverOpts := []server.Option{
		server.WithJSONRPCEndpoint("/"),
		server.WithReadTimeout(timeout),
		server.WithWriteTimeout(timeout),
	}

	authProvider, err := newAuthProvider(opts)
	if err != nil {
		return nil, err
	}
	if authProvider != nil {
		serverOpts = append(serverOpts, server.WithAuthProvider(authProvider))
	} else {
		log.Warnf("No authentication configured for %s, running unauthenticated", opts.AgentName)
	}

	srv, err := server.NewA2AServer(agentCard, taskManager, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}

func newAuthProvider(opts SetupServerOptions) (auth.Provider, error) {
	switch opts.AuthType {
	case "":
		return nil, nil
	case "jwt":
		if opts.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required for jwt authentication")
		}
		log.Infof("Configuring JWT authentication for %s", opts.AgentName)
		return auth.NewJWTAuthProvider([]byte(opts.JWTSecret), "", "", 24*time.Hour), nil
	case "apikey":
		if opts.APIKey == "" {
			return nil, errors.New("API_KEY is required for apikey authentication")
		}
		log.Infof("Configuring API key authentication for %s (API key length: %d)", opts.AgentName, len(opts.APIKey))
		return auth.NewAPIKeyAuthProvider(map[string]string{opts.APIKey: "user"}, "X-API-Key"), nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", opts.AuthType)
	}
}

// StartServer starts the A2A server and stops it when ctx is done.
func StartServer(ctx context.Context, srv *server.A2AServer, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting A2A server on %s", addr)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Infof("Shutting down server...")
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
