package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

// StoreInput contains parameters for the Store operation.
type StoreInput struct {
	Content string // required, markdown allowed
	Tags    []string
	Source  *string
}

// StoreOutput contains the result of the Store operation.
type StoreOutput struct {
	ID          string              `json:"id"`
	Analysis    triage.Analysis     `json:"analysis"`
	Suggestions []triage.Suggestion `json:"suggestions"`
	Source      triage.Source       `json:"source"`
	CreatedAt   int64               `json:"created_at"`
}

// Store validates a capture, classifies it and persists it. Classification
// never fails; only validation and storage errors are returned.
func Store(ctx context.Context, database *sql.DB, cfg *config.Config, analyzer Analyzer, input StoreInput) (*StoreOutput, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}

	maxChars := config.DefaultCaptureMaxChars
	if cfg != nil && cfg.CaptureMaxChars > 0 {
		maxChars = cfg.CaptureMaxChars
	}
	if n := capture.CountChars(content); n > maxChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("content exceeds maximum of %d characters (got %d)", maxChars, n))
	}

	plain := capture.PlainText(content)
	if plain == "" {
		plain = content
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	result := analyzer.Analyze(ctx, content)

	c := &capture.Capture{
		ID:          id,
		Content:     content,
		PlainText:   plain,
		Source:      cleanOptionalString(input.Source),
		Tags:        capture.NormalizeTags(input.Tags),
		Analysis:    result.Analysis,
		Suggestions: result.Suggestions,
		AnalyzedBy:  result.Source,
		CreatedAt:   time.Now().Unix(),
	}
	if c.Suggestions == nil {
		c.Suggestions = []triage.Suggestion{}
	}

	if err := db.Insert(database, c); err != nil {
		return nil, err
	}

	return &StoreOutput{
		ID:          c.ID,
		Analysis:    c.Analysis,
		Suggestions: c.Suggestions,
		Source:      c.AnalyzedBy,
		CreatedAt:   c.CreatedAt,
	}, nil
}
