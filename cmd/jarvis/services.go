package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hpungsan/jarvis/internal/assistant"
	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/mcp"
	"github.com/hpungsan/jarvis/internal/oauth"
	"github.com/hpungsan/jarvis/internal/orchestrator"
	"github.com/hpungsan/jarvis/internal/web"
)

// services owns the long-lived clients of one process: a single token cache,
// calendar gateway, assistant client and orchestrator shared by every surface.
type services struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *slog.Logger
	tokens   *oauth.TokenCache
	calendar *calendar.Gateway
	client   *assistant.Client
	orch     *orchestrator.Orchestrator
}

func newServices(db *sql.DB, cfg *config.Config, logger *slog.Logger) *services {
	tokens := oauth.NewTokenCache(cfg.Calendar)
	client := assistant.New(cfg.Assistant)
	return &services{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		tokens:   tokens,
		calendar: calendar.New(cfg.Calendar, tokens, calendar.WithLogger(logger.With("component", "calendar"))),
		client:   client,
		orch: orchestrator.New(client,
			orchestrator.WithLogger(logger.With("component", "orchestrator")),
			orchestrator.WithInterval(cfg.Assistant.HealthInterval()),
			orchestrator.WithAssumeConnected(cfg.Assistant.AssumeConnected),
		),
	}
}

// probe runs one health check so one-shot commands use the assistant
// service when it is reachable.
func (s *services) probe(ctx context.Context) {
	if s.client.Configured() && s.orch.State() != orchestrator.Connected {
		s.orch.CheckHealth(ctx)
	}
}

func (s *services) mcp() mcp.Services {
	return mcp.Services{DB: s.db, Config: s.cfg, Assistant: s.orch, Calendar: s.calendar}
}

func (s *services) web() web.Services {
	return web.Services{DB: s.db, Config: s.cfg, Assistant: s.orch, Calendar: s.calendar, Logger: s.logger}
}

// close waits for background syncs.
func (s *services) close() {
	s.orch.Stop()
}
