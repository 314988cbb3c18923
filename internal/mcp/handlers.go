package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	assistant Assistant
	calendar  Calendar
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services) *Handlers {
	return &Handlers{
		db:        svc.DB,
		cfg:       svc.Config,
		assistant: svc.Assistant,
		calendar:  svc.Calendar,
	}
}

func (h *Handlers) analyzer() ops.Analyzer {
	if h.assistant == nil {
		return ops.LocalAnalyzer{}
	}
	return h.assistant
}

// Request types for each tool

// ClassifyRequest represents the arguments for triage_classify.
type ClassifyRequest struct {
	Content string `json:"content"`
}

// StoreRequest represents the arguments for capture_store.
type StoreRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Source  *string  `json:"source,omitempty"`
}

// FetchRequest represents the arguments for capture_fetch.
type FetchRequest struct {
	ID          string `json:"id"`
	IncludeHTML bool   `json:"include_html,omitempty"`
}

// ListRequest represents the arguments for capture_list.
type ListRequest struct {
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	Processed *bool  `json:"processed,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// SearchRequest represents the arguments for capture_search.
type SearchRequest struct {
	Query    string `json:"query"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// DeleteRequest represents the arguments for capture_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// PromoteRequest represents the arguments for capture_promote.
type PromoteRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// CreateEventRequest represents the arguments for calendar_create.
type CreateEventRequest struct {
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
}

// SyncRequest represents the arguments for assistant_sync.
type SyncRequest struct {
	Data json.RawMessage `json:"data"`
}

// Handler implementations

// HandleClassify handles the triage_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Content) == "" {
		return errorResult(errors.NewInvalidRequest("content is required")), nil
	}

	return successResult(h.analyzer().Analyze(ctx, input.Content))
}

// HandleStore handles the capture_store tool call.
func (h *Handlers) HandleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	source := input.Source
	if source == nil {
		s := "mcp"
		source = &s
	}

	result, err := ops.Store(ctx, h.db, h.cfg, h.analyzer(), ops.StoreInput{
		Content: input.Content,
		Tags:    input.Tags,
		Source:  source,
	})
	if err != nil {
		return errorResult(err), nil
	}
	h.pushCapture(ctx, result)

	return successResult(result)
}

// pushCapture hands a stored capture to the assistant service in the
// background when it is configured.
func (h *Handlers) pushCapture(ctx context.Context, out *ops.StoreOutput) {
	if h.assistant == nil || !h.assistant.Status().Configured {
		return
	}
	h.assistant.Sync(ctx, map[string]any{"type": "capture", "capture": out})
}

// HandleFetch handles the capture_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(h.db, ops.FetchInput{
		ID:          input.ID,
		IncludeHTML: input.IncludeHTML,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the capture_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Type:      input.Type,
		Category:  input.Category,
		Processed: input.Processed,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the capture_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.db, ops.SearchInput{
		Query:    input.Query,
		Type:     input.Type,
		Category: input.Category,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the capture_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePromote handles the capture_promote tool call.
func (h *Handlers) HandlePromote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PromoteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Promote(ctx, h.db, ops.PromoteInput{
		ID:   input.ID,
		Kind: ops.PromoteKind(input.Kind),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEvents handles the calendar_events tool call. It never reports a
// tool error; failures are carried in the result's status field.
func (h *Handlers) HandleEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.calendar.FetchEvents(ctx))
}

// HandleCreateEvent handles the calendar_create tool call.
func (h *Handlers) HandleCreateEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateEventRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	in := calendar.EventInput{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
	}
	if in.Start, err = parseTime("start", input.Start); err != nil {
		return errorResult(err), nil
	}
	if in.End, err = parseTime("end", input.End); err != nil {
		return errorResult(err), nil
	}

	created, err := h.calendar.CreateEvent(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"status": "success", "event": created})
}

// HandleStatus handles the assistant_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.assistant == nil {
		return errorResult(errors.NewConfiguration("assistant service not configured")), nil
	}
	return successResult(h.assistant.Status())
}

// HandleSync handles the assistant_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Data) == 0 || string(input.Data) == "null" {
		return errorResult(errors.NewInvalidRequest("data is required")), nil
	}
	if h.assistant == nil {
		return errorResult(errors.NewConfiguration("assistant service not configured")), nil
	}

	result, err := h.assistant.SyncNow(ctx, input.Data)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// parseTime parses an optional RFC 3339 timestamp.
func parseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be an RFC 3339 timestamp", field))
	}
	return &t, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if jErr, ok := errors.As(err); ok && jErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    jErr.Code,
			"message": jErr.Message,
			"status":  jErr.Status,
		}
		if jErr.Details != nil {
			errorObj["details"] = jErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
