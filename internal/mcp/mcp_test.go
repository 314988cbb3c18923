package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/jarvis/internal/assistant"
	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/orchestrator"
	"github.com/hpungsan/jarvis/internal/triage"
)

type fakeAssistant struct {
	syncErr  error
	synced   []any
	pushed   []any
	analyzed []string
}

func (f *fakeAssistant) Analyze(_ context.Context, content string) *triage.Result {
	f.analyzed = append(f.analyzed, content)
	r := triage.Analyze(content)
	r.Source = triage.SourceRemote
	return r
}

func (f *fakeAssistant) Status() orchestrator.Status {
	return orchestrator.Status{State: "CONNECTED", Connected: true, Configured: true}
}

func (f *fakeAssistant) Sync(_ context.Context, data any) {
	f.pushed = append(f.pushed, data)
}

func (f *fakeAssistant) SyncNow(_ context.Context, data any) (*assistant.SyncResponse, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	f.synced = append(f.synced, data)
	return &assistant.SyncResponse{Status: "success"}, nil
}

type fakeCalendar struct {
	created []calendar.EventInput
	err     error
}

func (f *fakeCalendar) FetchEvents(_ context.Context) *calendar.EventsResult {
	return &calendar.EventsResult{Status: "success", Demo: true, Events: calendar.DemoEvents(time.Now())}
}

func (f *fakeCalendar) CreateEvent(_ context.Context, in calendar.EventInput) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return json.RawMessage(`{"id":"evt-1","summary":"` + in.Summary + `"}`), nil
}

type testEnv struct {
	db        *sql.DB
	cfg       *config.Config
	assistant *fakeAssistant
	calendar  *fakeCalendar
	h         *Handlers
}

// testSetup creates a temporary database, config and fakes for testing.
func testSetup(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		db:        database,
		cfg:       config.DefaultConfig(),
		assistant: &fakeAssistant{},
		calendar:  &fakeCalendar{},
	}
	env.h = NewHandlers(env.services())
	return env
}

func (e *testEnv) services() Services {
	return Services{DB: e.db, Config: e.cfg, Assistant: e.assistant, Calendar: e.calendar}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// storeCapture stores content through the tool and returns its ID.
func storeCapture(t *testing.T, env *testEnv, content string) string {
	t.Helper()
	result, err := env.h.HandleStore(context.Background(), makeRequest(map[string]any{"content": content}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func TestHandleClassify(t *testing.T) {
	env := testSetup(t)

	result, err := env.h.HandleClassify(context.Background(), makeRequest(map[string]any{"content": "comprar leite hoje"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	analysis := out["analysis"].(map[string]any)
	if analysis["detected_type"] != "task" || analysis["priority"] != "alta" {
		t.Errorf("analysis = %v", analysis)
	}
	if out["source"] != "remote" {
		t.Errorf("source = %v", out["source"])
	}

	// nothing stored
	var n int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&n); err != nil || n != 0 {
		t.Errorf("captures = %d, %v", n, err)
	}

	result, _ = env.h.HandleClassify(context.Background(), makeRequest(map[string]any{"content": "  "}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleClassify_LocalWithoutAssistant(t *testing.T) {
	env := testSetup(t)
	h := NewHandlers(Services{DB: env.db, Config: env.cfg, Calendar: env.calendar})

	result, _ := h.HandleClassify(context.Background(), makeRequest(map[string]any{"content": "estudar go"}))
	if out := parseOutput(t, result); out["source"] != "local" {
		t.Errorf("source = %v, want local", out["source"])
	}
}

func TestHandleStore(t *testing.T) {
	env := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "store valid capture",
			args:      map[string]any{"content": "consulta médica urgente", "tags": []any{"saude"}},
			wantError: false,
		},
		{
			name:      "store without content",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "tags of the wrong type",
			args:      map[string]any{"content": "x", "tags": "saude"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.h.HandleStore(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleStore_DefaultsSourceToMCP(t *testing.T) {
	env := testSetup(t)
	id := storeCapture(t, env, "ligar para o cliente")

	result, _ := env.h.HandleFetch(context.Background(), makeRequest(map[string]any{"id": id}))
	out := parseOutput(t, result)
	if out["source"] != "mcp" {
		t.Errorf("source = %v, want mcp", out["source"])
	}
	if out["analyzed_by"] != "remote" {
		t.Errorf("analyzed_by = %v", out["analyzed_by"])
	}
	if len(env.assistant.analyzed) != 1 {
		t.Errorf("assistant analyzed %d times, want 1", len(env.assistant.analyzed))
	}
	if len(env.assistant.pushed) != 1 {
		t.Errorf("assistant received %d background syncs, want 1", len(env.assistant.pushed))
	}
}

func TestHandleFetch(t *testing.T) {
	env := testSetup(t)
	id := storeCapture(t, env, "**comprar** pão")

	result, _ := env.h.HandleFetch(context.Background(), makeRequest(map[string]any{"id": id, "include_html": true}))
	out := parseOutput(t, result)
	if out["plain_text"] != "comprar pão" {
		t.Errorf("plain_text = %v", out["plain_text"])
	}
	if out["html"] != "<p><strong>comprar</strong> pão</p>\n" {
		t.Errorf("html = %v", out["html"])
	}

	result, _ = env.h.HandleFetch(context.Background(), makeRequest(map[string]any{"id": "01UNKNOWN"}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = env.h.HandleFetch(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleListAndSearch(t *testing.T) {
	env := testSetup(t)
	storeCapture(t, env, "comprar remédio")
	storeCapture(t, env, "estudar golang")
	storeCapture(t, env, "comprar leite")

	result, _ := env.h.HandleList(context.Background(), makeRequest(map[string]any{"type": "task", "limit": 1}))
	out := parseOutput(t, result)
	items := out["items"].([]any)
	pagination := out["pagination"].(map[string]any)
	if len(items) != 1 || pagination["total"] != float64(2) || pagination["has_more"] != true {
		t.Errorf("list = %v", out)
	}

	result, _ = env.h.HandleList(context.Background(), makeRequest(map[string]any{"type": "chore"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = env.h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "COMPRAR"}))
	out = parseOutput(t, result)
	if n := len(out["items"].([]any)); n != 2 {
		t.Errorf("search hits = %d, want 2", n)
	}

	result, _ = env.h.HandleSearch(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleDeleteAndPromote(t *testing.T) {
	env := testSetup(t)
	first := storeCapture(t, env, "comprar leite hoje")
	second := storeCapture(t, env, "ideia solta")

	result, _ := env.h.HandlePromote(context.Background(), makeRequest(map[string]any{"id": first, "kind": "task"}))
	out := parseOutput(t, result)
	task := out["task"].(map[string]any)
	if task["title"] != "comprar leite hoje" || task["priority"] != "alta" {
		t.Errorf("task = %v", task)
	}

	result, _ = env.h.HandlePromote(context.Background(), makeRequest(map[string]any{"id": second, "kind": "project"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = env.h.HandleDelete(context.Background(), makeRequest(map[string]any{"id": second}))
	if out := parseOutput(t, result); out["deleted"] != true {
		t.Errorf("delete = %v", out)
	}
	result, _ = env.h.HandleDelete(context.Background(), makeRequest(map[string]any{"id": second}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleEvents(t *testing.T) {
	env := testSetup(t)

	result, err := env.h.HandleEvents(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["demo"] != true || len(out["events"].([]any)) != 2 {
		t.Errorf("events = %v", out)
	}
}

func TestHandleCreateEvent(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleCreateEvent(context.Background(), makeRequest(map[string]any{
		"summary": "Plantão",
		"start":   "2026-05-01T08:00:00-03:00",
		"end":     "2026-05-01T20:00:00-03:00",
	}))
	out := parseOutput(t, result)
	if out["status"] != "success" || out["event"].(map[string]any)["id"] != "evt-1" {
		t.Errorf("create = %v", out)
	}
	if len(env.calendar.created) != 1 || env.calendar.created[0].Start == nil || env.calendar.created[0].End.Hour() != 20 {
		t.Errorf("created = %+v", env.calendar.created)
	}

	result, _ = env.h.HandleCreateEvent(context.Background(), makeRequest(map[string]any{"start": "amanhã"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	env.calendar.err = errors.NewConfiguration("calendar credentials not configured")
	result, _ = env.h.HandleCreateEvent(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "CONFIGURATION")
}

func TestHandleStatusAndSync(t *testing.T) {
	env := testSetup(t)

	result, _ := env.h.HandleStatus(context.Background(), makeRequest(nil))
	if out := parseOutput(t, result); out["state"] != "CONNECTED" {
		t.Errorf("status = %v", out)
	}

	result, _ = env.h.HandleSync(context.Background(), makeRequest(map[string]any{"data": map[string]any{"tasks": 3}}))
	if out := parseOutput(t, result); out["status"] != "success" {
		t.Errorf("sync = %v", out)
	}
	if len(env.assistant.synced) != 1 {
		t.Fatalf("synced %d payloads, want 1", len(env.assistant.synced))
	}
	if got := string(env.assistant.synced[0].(json.RawMessage)); got != `{"tasks":3}` {
		t.Errorf("payload = %s", got)
	}

	result, _ = env.h.HandleSync(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	env.assistant.syncErr = errors.NewRemoteService("openclaw", 503, nil)
	result, _ = env.h.HandleSync(context.Background(), makeRequest(map[string]any{"data": map[string]any{}}))
	assertErrorCode(t, result, "REMOTE_SERVICE")
}

func TestServerRegistration(t *testing.T) {
	env := testSetup(t)

	s := NewServer(env.services(), "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"triage_classify",
		"capture_store",
		"capture_fetch",
		"capture_list",
		"capture_search",
		"capture_delete",
		"capture_promote",
		"calendar_events",
		"calendar_create",
		"assistant_status",
		"assistant_sync",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = []string{"capture_delete", "assistant_sync", "assistant_sync"}
	tools := NewServer(env.services(), "test").ListTools()

	if len(tools) != 9 {
		t.Errorf("registered tool count = %d, want 9", len(tools))
	}
	for _, name := range []string{"capture_delete", "assistant_sync"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env := testSetup(t)

	env.cfg.DisabledTools = AllToolNames()
	if tools := NewServer(env.services(), "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"capture_delete", "assistant_sync"}, 0},
		{"one unknown", []string{"capture_delete", "notes_store"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 11 {
		t.Errorf("AllToolNames() returned %d names, want 11", len(names))
	}
	if names[0] != "assistant_status" {
		t.Errorf("names not sorted: %v", names)
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message leaked: %v", errObj["message"])
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	r := errorResult(fmt.Errorf("store: %w", errors.NewNotFound("abc")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] == "boom" {
		t.Errorf("error = %v", errObj)
	}
}

func TestErrorResult_RemoteServiceIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewRemoteService("google_calendar", 401, nil)))

	details, ok := errObj["details"].(map[string]any)
	if !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
	if details["service"] != "google_calendar" || details["upstream_status"] != float64(401) {
		t.Errorf("details = %v", details)
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success: %s", extractErrorMessage(result))
		return
	}
	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
