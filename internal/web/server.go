package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/jarvis/internal/assistant"
	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/ops"
	"github.com/hpungsan/jarvis/internal/orchestrator"
	"github.com/hpungsan/jarvis/internal/triage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Assistant is the orchestrator surface the API needs.
type Assistant interface {
	ops.Analyzer
	AnalyzeType(ctx context.Context, content, captureType string) *triage.Result
	Status() orchestrator.Status
	Sync(ctx context.Context, data any)
	SyncNow(ctx context.Context, data any) (*assistant.SyncResponse, error)
}

// Calendar is the calendar gateway surface the API needs.
type Calendar interface {
	FetchEvents(ctx context.Context) *calendar.EventsResult
	CreateEvent(ctx context.Context, in calendar.EventInput) (json.RawMessage, error)
}

// Services bundles the dependencies of the HTTP handlers.
type Services struct {
	DB        *sql.DB
	Config    *config.Config
	Assistant Assistant
	Calendar  Calendar
	Logger    *slog.Logger
}

// NewHandler builds the JSON API routes.
func NewHandler(svc Services, version string) http.Handler {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		db:        svc.DB,
		cfg:       svc.Config,
		assistant: svc.Assistant,
		calendar:  svc.Calendar,
		logger:    logger,
		version:   version,
		now:       time.Now,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/openclaw/capture", h.HandleAnalyze)
	mux.HandleFunc("POST /api/openclaw/sync", h.HandleSync)
	mux.HandleFunc("GET /api/captures", h.HandleListCaptures)
	mux.HandleFunc("POST /api/captures", h.HandleStoreCapture)
	mux.HandleFunc("POST /api/captures/purge", h.HandlePurge)
	mux.HandleFunc("GET /api/captures/{id}", h.HandleFetchCapture)
	mux.HandleFunc("DELETE /api/captures/{id}", h.HandleDeleteCapture)
	mux.HandleFunc("GET /api/captures/{id}/html", h.HandleCaptureHTML)
	mux.HandleFunc("POST /api/captures/{id}/promote", h.HandlePromote)
	mux.HandleFunc("GET /api/calendar", h.HandleEvents)
	mux.HandleFunc("POST /api/calendar", h.HandleCreateEvent)

	return securityHeaders(mux)
}

// NewServer creates and configures the HTTP server for the JSON API.
func NewServer(svc Services, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(svc, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("jarvis api listening", "addr", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
