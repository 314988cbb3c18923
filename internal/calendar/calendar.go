// Package calendar reads and creates events on the calendar provider. Reads
// never fail: when the provider is unconfigured or unreachable a fixed demo
// set is returned and flagged as such.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
)

const (
	serviceName = "calendar"

	StatusSuccess = "success"
	StatusError   = "error"

	// Window is how far ahead FetchEvents looks.
	Window = 30 * 24 * time.Hour

	defaultSummary      = "Sem título"
	defaultColorID      = "1"
	defaultNewSummary   = "Novo Evento"
	defaultEventLength  = time.Hour
	maxResponseBytes    = 4 << 20
	demoMessage         = "Eventos carregados (modo simulação)"
	liveMessage         = "Eventos carregados"
	fallbackMessage     = "Erro ao buscar eventos, exibindo dados de demonstração"
	notConfiguredPrefix = "calendar credentials not configured"
)

// TokenSource yields bearer tokens for the provider API.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// EventTime is a point in time as the provider encodes it. All-day events
// carry Date instead of DateTime.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is a normalized calendar event: every field is populated.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    string    `json:"location"`
	ColorID     string    `json:"colorId"`
}

// EventsResult is what FetchEvents returns. Demo is true whenever Events is
// the placeholder set; Error carries the cause when Status is "error".
type EventsResult struct {
	Status  string  `json:"status"`
	Demo    bool    `json:"demo"`
	Events  []Event `json:"events"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// EventInput holds the fields for CreateEvent. Zero values take defaults:
// summary "Novo Evento", start now, end one hour after start.
type EventInput struct {
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// Gateway is the calendar provider client.
type Gateway struct {
	cfg     config.CalendarConfig
	tokens  TokenSource
	client  *http.Client
	now     func() time.Time
	logger  *slog.Logger
	baseURL string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger for degraded reads.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Gateway. tokens is only consulted when cfg is configured.
func New(cfg config.CalendarConfig, tokens TokenSource, opts ...Option) *Gateway {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = config.DefaultCalendarAPIURL
	}
	if strings.TrimSpace(cfg.CalendarID) == "" {
		cfg.CalendarID = config.DefaultCalendarID
	}
	if strings.TrimSpace(cfg.TimeZone) == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}
	g := &Gateway{
		cfg:     cfg,
		tokens:  tokens,
		client:  &http.Client{Timeout: cfg.Timeout()},
		now:     time.Now,
		logger:  slog.Default(),
		baseURL: base,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether OAuth credentials are present.
func (g *Gateway) Configured() bool {
	return g.cfg.Configured()
}

// FetchEvents lists events in [now, now+30 days], ordered by start time with
// recurring events expanded. It never returns an error.
func (g *Gateway) FetchEvents(ctx context.Context) *EventsResult {
	now := g.now()
	if !g.Configured() {
		return &EventsResult{
			Status:  StatusSuccess,
			Demo:    true,
			Events:  DemoEvents(now),
			Message: demoMessage,
		}
	}

	events, err := g.listEvents(ctx, now)
	if err != nil {
		g.logger.Warn("calendar fetch failed, serving demo events",
			"calendar_id", g.cfg.CalendarID,
			"error", err,
		)
		return &EventsResult{
			Status:  StatusError,
			Demo:    true,
			Events:  DemoEvents(now),
			Message: fallbackMessage,
			Error:   err.Error(),
		}
	}
	return &EventsResult{
		Status:  StatusSuccess,
		Events:  events,
		Message: liveMessage,
	}
}

// CreateEvent posts a new event and returns the provider's representation
// unchanged. Unlike reads, failures are returned to the caller.
func (g *Gateway) CreateEvent(ctx context.Context, in EventInput) (json.RawMessage, error) {
	if !g.Configured() {
		return nil, errors.NewConfiguration(notConfiguredPrefix + ": set GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN")
	}

	body, err := g.buildCreateBody(in)
	if err != nil {
		return nil, err
	}

	token, err := g.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := g.request(ctx, http.MethodPost, g.eventsPath(), nil, token, body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("create event: response is not JSON"))
	}
	return json.RawMessage(payload), nil
}

type createBody struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    string    `json:"location"`
}

func (g *Gateway) buildCreateBody(in EventInput) (*createBody, error) {
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		summary = defaultNewSummary
	}

	start := g.now()
	if in.Start != nil {
		start = *in.Start
	}
	end := start.Add(defaultEventLength)
	if in.End != nil {
		end = *in.End
	}
	if !end.After(start) {
		return nil, errors.NewInvalidRequest("event end must be after start")
	}

	return &createBody{
		Summary:     summary,
		Description: in.Description,
		Start:       EventTime{DateTime: start.Format(time.RFC3339), TimeZone: g.cfg.TimeZone},
		End:         EventTime{DateTime: end.Format(time.RFC3339), TimeZone: g.cfg.TimeZone},
		Location:    in.Location,
	}, nil
}

// rawEvent mirrors the provider's event resource; every field may be absent.
type rawEvent struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Start       *EventTime `json:"start"`
	End         *EventTime `json:"end"`
	Location    string     `json:"location"`
	ColorID     string     `json:"colorId"`
}

type listResponse struct {
	Items []rawEvent `json:"items"`
}

func (g *Gateway) listEvents(ctx context.Context, now time.Time) ([]Event, error) {
	token, err := g.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("timeMin", now.UTC().Format(time.RFC3339))
	query.Set("timeMax", now.Add(Window).UTC().Format(time.RFC3339))
	query.Set("orderBy", "startTime")
	query.Set("singleEvents", "true")

	payload, err := g.request(ctx, http.MethodGet, g.eventsPath(), query, token, nil)
	if err != nil {
		return nil, err
	}

	var lr listResponse
	if err := json.Unmarshal(payload, &lr); err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("decode events: %w", err))
	}

	events := make([]Event, 0, len(lr.Items))
	for _, raw := range lr.Items {
		events = append(events, normalize(raw, now))
	}
	return events, nil
}

// normalize fills every missing field with its default. Date-only times are
// carried in DateTime so callers read one field.
func normalize(raw rawEvent, now time.Time) Event {
	ev := Event{
		ID:          raw.ID,
		Summary:     raw.Summary,
		Description: raw.Description,
		Start:       EventTime{DateTime: resolveTime(raw.Start, now)},
		End:         EventTime{DateTime: resolveTime(raw.End, now.Add(defaultEventLength))},
		Location:    raw.Location,
		ColorID:     raw.ColorID,
	}
	if ev.ID == "" {
		ev.ID = "event-" + uuid.NewString()
	}
	if ev.Summary == "" {
		ev.Summary = defaultSummary
	}
	if ev.ColorID == "" {
		ev.ColorID = defaultColorID
	}
	return ev
}

func resolveTime(t *EventTime, fallback time.Time) string {
	if t != nil {
		if t.DateTime != "" {
			return t.DateTime
		}
		if t.Date != "" {
			return t.Date
		}
	}
	return fallback.UTC().Format(time.RFC3339)
}

func (g *Gateway) eventsPath() string {
	return "/calendars/" + url.PathEscape(g.cfg.CalendarID) + "/events"
}

func (g *Gateway) request(ctx context.Context, method, path string, query url.Values, token string, body any) ([]byte, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("encode request body: %w", err))
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewRemoteService(serviceName, resp.StatusCode, nil)
	}
	return payload, nil
}
