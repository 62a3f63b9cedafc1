// Package cli provides the interactive teaching-assistant command-line
// client.
//
// It wires configuration, the local credential database, the API gateway
// client, the session manager, and an interactive REPL. Typical flow:
// restore any persisted session, then execute user commands until exit.
package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/cache"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/config"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/repositories/credentials"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/services"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/session"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/logging"
)

type App struct {
	config      *config.Config
	client      *api.HTTPClient
	manager     *session.Manager
	assignments services.AssignmentService
	log         logging.Logger
	reader      *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewSlogLogger(slog.Default())

	db, err := credentials.Open(ctx, c.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "error initializing local database", "error", err)
		return nil, err
	}

	apiClient := api.NewHTTPClient(c.APIBaseURL, c.RequestTimeout, nil)
	store := credentials.NewStore(db, apiClient)
	manager := session.NewManager(apiClient, store, log, c.RefreshMargin)

	responseCache := cache.New(c.DefaultCacheTTL)

	return &App{
		config:      c,
		client:      apiClient,
		manager:     manager,
		assignments: services.NewAssignmentService(apiClient, responseCache),
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.manager.Close()

	if err := a.manager.Restore(ctx); err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) isLoggedIn() bool {
	return a.manager.Snapshot().Authenticated
}

// status renders the prompt segment: who is logged in, or "guest".
func (a *App) status() string {
	snap := a.manager.Snapshot()
	if snap.Authenticated && snap.User != nil {
		return snap.User.Name
	}
	return "guest"
}
