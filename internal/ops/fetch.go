package ops

import (
	"database/sql"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/triage"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID          string
	IncludeHTML bool
}

// FetchOutput is a full capture.
type FetchOutput struct {
	ID          string              `json:"id"`
	Content     string              `json:"content"`
	PlainText   string              `json:"plain_text"`
	HTML        string              `json:"html,omitempty"`
	Source      *string             `json:"source,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Analysis    triage.Analysis     `json:"analysis"`
	Suggestions []triage.Suggestion `json:"suggestions"`
	AnalyzedBy  triage.Source       `json:"analyzed_by"`
	Processed   bool                `json:"processed"`
	CreatedAt   int64               `json:"created_at"`
	ProcessedAt *int64              `json:"processed_at,omitempty"`
}

// Fetch retrieves a capture by ID.
func Fetch(database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}

	c, err := db.GetByID(database, id)
	if err != nil {
		return nil, err
	}

	out := toFetchOutput(c)
	if input.IncludeHTML {
		// goldmark only fails on writer errors, which a buffer never returns.
		out.HTML, _ = capture.RenderHTML(c.Content)
	}
	return out, nil
}

func toFetchOutput(c *capture.Capture) *FetchOutput {
	return &FetchOutput{
		ID:          c.ID,
		Content:     c.Content,
		PlainText:   c.PlainText,
		Source:      c.Source,
		Tags:        c.Tags,
		Analysis:    c.Analysis,
		Suggestions: c.Suggestions,
		AnalyzedBy:  c.AnalyzedBy,
		Processed:   c.Processed,
		CreatedAt:   c.CreatedAt,
		ProcessedAt: c.ProcessedAt,
	}
}
