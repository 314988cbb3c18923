package web

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/ops"
	"github.com/hpungsan/jarvis/internal/triage"
)

// Handlers contains HTTP route handlers for the JSON API.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	assistant Assistant
	calendar  Calendar
	logger    *slog.Logger
	version   string
	now       func() time.Time
}

func (h *Handlers) analyzer() ops.Analyzer {
	if h.assistant == nil {
		return ops.LocalAnalyzer{}
	}
	return h.assistant
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"message":   "Jarvis está online",
		"version":   h.version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if h.assistant != nil {
		body["assistant"] = h.assistant.Status()
	}
	renderJSON(w, http.StatusOK, body)
}

type analyzeRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// HandleAnalyze handles POST /api/openclaw/capture: classify without storing.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[analyzeRequest](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		renderError(w, h.logger, errors.NewInvalidRequest("Conteúdo é obrigatório"))
		return
	}
	var result *triage.Result
	if h.assistant != nil {
		result = h.assistant.AnalyzeType(r.Context(), req.Content, req.Type)
	} else {
		result = triage.Analyze(req.Content)
	}
	typ := req.Type
	if typ == "" {
		typ = "idea"
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "Captura processada pelo Jarvis",
		"content":     req.Content,
		"type":        typ,
		"analysis":    result.Analysis,
		"suggestions": result.Suggestions,
		"source":      result.Source,
		"timestamp":   h.now().UTC().Format(time.RFC3339),
	})
}

// HandleSync handles POST /api/openclaw/sync: forward the body to the
// assistant service and wait for its answer.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	data, err := decodeBody[json.RawMessage](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	if len(data) == 0 || string(data) == "null" {
		renderError(w, h.logger, errors.NewInvalidRequest("request body is required"))
		return
	}
	if h.assistant == nil {
		renderError(w, h.logger, errors.NewConfiguration("assistant service not configured"))
		return
	}

	resp, err := h.assistant.SyncNow(r.Context(), data)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, resp)
}

// HandleListCaptures handles GET /api/captures. With q it searches instead
// of listing.
func (h *Handlers) HandleListCaptures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntParam(r, "limit", ops.DefaultListLimit)
	offset := parseIntParam(r, "offset", 0)

	if query := q.Get("q"); query != "" {
		result, err := ops.Search(r.Context(), h.db, ops.SearchInput{
			Query:    query,
			Type:     q.Get("type"),
			Category: q.Get("category"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			renderError(w, h.logger, err)
			return
		}
		renderJSON(w, http.StatusOK, result)
		return
	}

	processed, err := parseOptionalBool(r, "processed")
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	result, err := ops.List(r.Context(), h.db, ops.ListInput{
		Type:      q.Get("type"),
		Category:  q.Get("category"),
		Processed: processed,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

type storeRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Source  *string  `json:"source"`
}

// HandleStoreCapture handles POST /api/captures.
func (h *Handlers) HandleStoreCapture(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[storeRequest](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	if req.Source == nil {
		s := "api"
		req.Source = &s
	}

	result, err := ops.Store(r.Context(), h.db, h.cfg, h.analyzer(), ops.StoreInput{
		Content: req.Content,
		Tags:    req.Tags,
		Source:  req.Source,
	})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	if h.assistant != nil && h.assistant.Status().Configured {
		h.assistant.Sync(r.Context(), map[string]any{"type": "capture", "capture": result})
	}
	renderJSON(w, http.StatusCreated, result)
}

// HandleFetchCapture handles GET /api/captures/{id}.
func (h *Handlers) HandleFetchCapture(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(h.db, ops.FetchInput{
		ID:          r.PathValue("id"),
		IncludeHTML: parseBoolParam(r, "html"),
	})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleCaptureHTML handles GET /api/captures/{id}/html: the capture content
// rendered from markdown. Raw HTML in the content is not passed through.
func (h *Handlers) HandleCaptureHTML(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(h.db, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	html, err := capture.RenderHTML(result.Content)
	if err != nil {
		renderError(w, h.logger, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// HandleDeleteCapture handles DELETE /api/captures/{id}.
func (h *Handlers) HandleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: r.PathValue("id")})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

type promoteRequest struct {
	Kind string `json:"kind"`
}

// HandlePromote handles POST /api/captures/{id}/promote.
func (h *Handlers) HandlePromote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[promoteRequest](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	result, err := ops.Promote(r.Context(), h.db, ops.PromoteInput{
		ID:   r.PathValue("id"),
		Kind: ops.PromoteKind(req.Kind),
	})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

type purgeRequest struct {
	Confirm       bool `json:"confirm"`
	OlderThanDays *int `json:"older_than_days"`
}

// HandlePurge handles POST /api/captures/purge: permanently deletes
// processed captures. Requires {"confirm": true}.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[purgeRequest](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	if !req.Confirm {
		renderError(w, h.logger, errors.NewInvalidRequest(`confirm must be true`))
		return
	}

	result, err := ops.Purge(r.Context(), h.db, ops.PurgeInput{OlderThanDays: req.OlderThanDays})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleEvents handles GET /api/calendar. It always answers 200; degraded
// reads are reported in the body.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.calendar.FetchEvents(r.Context()))
}

type createEventRequest struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

// HandleCreateEvent handles POST /api/calendar.
func (h *Handlers) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBody[createEventRequest](w, r)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	created, err := h.calendar.CreateEvent(r.Context(), calendar.EventInput{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		renderError(w, h.logger, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"event":  created,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// parseOptionalBool parses a tri-state boolean query parameter.
func parseOptionalBool(r *http.Request, name string) (*bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errors.NewInvalidRequest(name + " must be true or false")
	}
	return &v, nil
}
