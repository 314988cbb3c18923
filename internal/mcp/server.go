package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/jarvis/internal/assistant"
	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/ops"
	"github.com/hpungsan/jarvis/internal/orchestrator"
)

// Assistant is the orchestrator surface the tools need.
type Assistant interface {
	ops.Analyzer
	Status() orchestrator.Status
	Sync(ctx context.Context, data any)
	SyncNow(ctx context.Context, data any) (*assistant.SyncResponse, error)
}

// Calendar is the calendar gateway surface the tools need.
type Calendar interface {
	FetchEvents(ctx context.Context) *calendar.EventsResult
	CreateEvent(ctx context.Context, in calendar.EventInput) (json.RawMessage, error)
}

// Services bundles the process-owned dependencies shared by every tool.
type Services struct {
	DB        *sql.DB
	Config    *config.Config
	Assistant Assistant
	Calendar  Calendar
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"triage_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"capture_store": {
		def:     storeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStore },
	},
	"capture_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"capture_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"capture_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"capture_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"capture_promote": {
		def:     promoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromote },
	},
	"calendar_events": {
		def:     eventsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEvents },
	},
	"calendar_create": {
		def:     createEventToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateEvent },
	},
	"assistant_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"assistant_sync": {
		def:     syncToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSync },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the Jarvis tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(svc Services, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jarvis",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(svc)

	disabled := make(map[string]bool)
	if svc.Config != nil {
		for _, name := range svc.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(svc Services, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
