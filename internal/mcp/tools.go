package mcp

import "github.com/mark3labs/mcp-go/mcp"

var (
	typeEnum     = mcp.Enum("task", "event", "study", "project", "idea")
	categoryEnum = mcp.Enum("saude", "trabalho", "negocio", "pessoal", "dev", "geral")
)

var classifyToolDef = mcp.NewTool("triage_classify",
	mcp.WithDescription("Classify text into type, priority and category and suggest follow-ups. "+
		"Uses the assistant service when it is reachable and the local rules otherwise. Nothing is stored."),
	mcp.WithString("content", mcp.Required(), mcp.Description("Text to classify")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var storeToolDef = mcp.NewTool("capture_store",
	mcp.WithDescription("Store a capture (markdown allowed), classify it and return the analysis and suggestions."),
	mcp.WithString("content", mcp.Required(), mcp.Description("Capture text")),
	mcp.WithArray("tags", mcp.Description("Optional tags"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("source", mcp.Description("Where the capture came from, e.g. mcp")),
)

var fetchToolDef = mcp.NewTool("capture_fetch",
	mcp.WithDescription("Fetch a capture by ID, with its stored analysis."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capture ULID")),
	mcp.WithBoolean("include_html", mcp.Description("Also render the content to HTML")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("capture_list",
	mcp.WithDescription("List capture summaries, newest first."),
	mcp.WithString("type", typeEnum),
	mcp.WithString("category", categoryEnum),
	mcp.WithBoolean("processed", mcp.Description("Filter by processed state")),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100")),
	mcp.WithNumber("offset"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var searchToolDef = mcp.NewTool("capture_search",
	mcp.WithDescription("Search captures by case-insensitive substring, newest first."),
	mcp.WithString("query", mcp.Required()),
	mcp.WithString("type", typeEnum),
	mcp.WithString("category", categoryEnum),
	mcp.WithNumber("limit"),
	mcp.WithNumber("offset"),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("capture_delete",
	mcp.WithDescription("Permanently delete a capture."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithDestructiveHintAnnotation(true),
)

var promoteToolDef = mcp.NewTool("capture_promote",
	mcp.WithDescription("Turn a capture into a task or note draft and mark it processed."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("kind", mcp.Required(), mcp.Enum("task", "note")),
)

var eventsToolDef = mcp.NewTool("calendar_events",
	mcp.WithDescription("Upcoming calendar events for the next 30 days. "+
		"Falls back to demo events when the calendar is not configured or unreachable."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var createEventToolDef = mcp.NewTool("calendar_create",
	mcp.WithDescription("Create a calendar event. Times are RFC 3339; start defaults to now and end to one hour after start."),
	mcp.WithString("summary"),
	mcp.WithString("description"),
	mcp.WithString("location"),
	mcp.WithString("start", mcp.Description("RFC 3339 start time")),
	mcp.WithString("end", mcp.Description("RFC 3339 end time")),
)

var statusToolDef = mcp.NewTool("assistant_status",
	mcp.WithDescription("Connectivity state of the assistant service and the last successful sync."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var syncToolDef = mcp.NewTool("assistant_sync",
	mcp.WithDescription("Push data to the assistant service and wait for the answer."),
	mcp.WithObject("data", mcp.Required(), mcp.Description("Arbitrary JSON payload")),
)
