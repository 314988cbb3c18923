package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAssistantURL       = "https://api.openclaw.ai"
	DefaultTokenURL           = "https://oauth2.googleapis.com/token"
	DefaultCalendarAPIURL     = "https://www.googleapis.com/calendar/v3"
	DefaultCalendarID         = "primary"
	DefaultTimeZone           = "America/Sao_Paulo"
	DefaultRequestTimeoutSecs = 10
	DefaultHealthIntervalSecs = 30
	DefaultCaptureMaxChars    = 4000
	DefaultWebBind            = "127.0.0.1"
	DefaultWebPort            = 8765
)

// Config holds application configuration.
type Config struct {
	Assistant AssistantConfig `json:"assistant"`
	Calendar  CalendarConfig  `json:"calendar"`
	Logging   LoggingConfig   `json:"logging"`
	Web       WebConfig       `json:"web"`

	// CaptureMaxChars is the maximum character count for capture content.
	CaptureMaxChars int `json:"capture_max_chars"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// AssistantConfig configures the external assistant service.
// The API key has no default and must come from the file or OPENCLAW_API_KEY.
type AssistantConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	UserID  string `json:"user_id,omitempty"`

	TimeoutSeconds        int `json:"timeout_seconds,omitempty"`
	HealthIntervalSeconds int `json:"health_interval_seconds,omitempty"`

	// AssumeConnected starts the orchestrator in the connected state instead
	// of waiting for the first successful health check.
	AssumeConnected bool `json:"assume_connected,omitempty"`
}

// Configured reports whether the assistant can be called at all.
func (a AssistantConfig) Configured() bool {
	return strings.TrimSpace(a.BaseURL) != "" && strings.TrimSpace(a.APIKey) != ""
}

// Timeout returns the per-request timeout.
func (a AssistantConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSecs * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// HealthInterval returns the period of the recurring health check.
func (a AssistantConfig) HealthInterval() time.Duration {
	if a.HealthIntervalSeconds <= 0 {
		return DefaultHealthIntervalSecs * time.Second
	}
	return time.Duration(a.HealthIntervalSeconds) * time.Second
}

// CalendarConfig configures the calendar provider and its OAuth client.
type CalendarConfig struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	CalendarID   string `json:"calendar_id,omitempty"`
	TimeZone     string `json:"time_zone,omitempty"`

	TokenURL       string `json:"token_url,omitempty"`
	APIBaseURL     string `json:"api_base_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Configured reports whether all three OAuth credentials are present.
func (c CalendarConfig) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

// Timeout returns the per-request timeout.
func (c CalendarConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSecs * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug|info|warn|error
	Format string `json:"format,omitempty"` // text|json
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Assistant: AssistantConfig{
			BaseURL:               DefaultAssistantURL,
			TimeoutSeconds:        DefaultRequestTimeoutSecs,
			HealthIntervalSeconds: DefaultHealthIntervalSecs,
		},
		Calendar: CalendarConfig{
			CalendarID:     DefaultCalendarID,
			TimeZone:       DefaultTimeZone,
			TokenURL:       DefaultTokenURL,
			APIBaseURL:     DefaultCalendarAPIURL,
			TimeoutSeconds: DefaultRequestTimeoutSecs,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Web: WebConfig{
			Bind: DefaultWebBind,
			Port: DefaultWebPort,
		},
		CaptureMaxChars: DefaultCaptureMaxChars,
	}
}

// Load loads configuration from baseDir/config.json and applies environment
// overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.jarvis.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.jarvis) and repo (.jarvis) directories.
// Repo config is found by walking upward from startDir to find the nearest .jarvis/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	ApplyEnv(cfg)
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .jarvis/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".jarvis", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays environment variables onto cfg.
// Secrets are only ever taken from here or from the config file.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Assistant.APIKey, "OPENCLAW_API_KEY")
	setString(&cfg.Assistant.BaseURL, "OPENCLAW_API_URL")
	setString(&cfg.Assistant.UserID, "OPENCLAW_USER_ID")

	setString(&cfg.Calendar.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Calendar.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Calendar.RefreshToken, "GOOGLE_REFRESH_TOKEN")
	setString(&cfg.Calendar.CalendarID, "GOOGLE_CALENDAR_ID")

	setString(&cfg.Logging.Level, "JARVIS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "JARVIS_LOG_FORMAT")

	if strings.TrimSpace(cfg.Calendar.CalendarID) == "" {
		cfg.Calendar.CalendarID = DefaultCalendarID
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Assistant = AssistantConfig{
		BaseURL:               pickString(overlay.Assistant.BaseURL, base.Assistant.BaseURL),
		APIKey:                pickString(overlay.Assistant.APIKey, base.Assistant.APIKey),
		UserID:                pickString(overlay.Assistant.UserID, base.Assistant.UserID),
		TimeoutSeconds:        pickInt(overlay.Assistant.TimeoutSeconds, base.Assistant.TimeoutSeconds),
		HealthIntervalSeconds: pickInt(overlay.Assistant.HealthIntervalSeconds, base.Assistant.HealthIntervalSeconds),
		AssumeConnected:       base.Assistant.AssumeConnected || overlay.Assistant.AssumeConnected,
	}

	result.Calendar = CalendarConfig{
		ClientID:       pickString(overlay.Calendar.ClientID, base.Calendar.ClientID),
		ClientSecret:   pickString(overlay.Calendar.ClientSecret, base.Calendar.ClientSecret),
		RefreshToken:   pickString(overlay.Calendar.RefreshToken, base.Calendar.RefreshToken),
		CalendarID:     pickString(overlay.Calendar.CalendarID, base.Calendar.CalendarID),
		TimeZone:       pickString(overlay.Calendar.TimeZone, base.Calendar.TimeZone),
		TokenURL:       pickString(overlay.Calendar.TokenURL, base.Calendar.TokenURL),
		APIBaseURL:     pickString(overlay.Calendar.APIBaseURL, base.Calendar.APIBaseURL),
		TimeoutSeconds: pickInt(overlay.Calendar.TimeoutSeconds, base.Calendar.TimeoutSeconds),
	}

	result.Logging = LoggingConfig{
		Level:  pickString(overlay.Logging.Level, base.Logging.Level),
		Format: pickString(overlay.Logging.Format, base.Logging.Format),
	}

	result.Web = WebConfig{
		Bind: pickString(overlay.Web.Bind, base.Web.Bind),
		Port: pickInt(overlay.Web.Port, base.Web.Port),
	}

	result.CaptureMaxChars = pickInt(overlay.CaptureMaxChars, base.CaptureMaxChars)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
