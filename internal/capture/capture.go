// Package capture holds the persisted capture record and the text helpers
// used to store, search and display it.
package capture

import (
	"github.com/hpungsan/jarvis/internal/triage"
)

// Capture is a raw note submitted for triage together with the classification
// it received when it was stored.
type Capture struct {
	// ID is a ULID; it also correlates concurrent analyze calls.
	ID string

	// Content is the text as submitted (may be markdown).
	Content string

	// PlainText is Content flattened from markdown, used for search and triage.
	PlainText string

	// Source is where the capture came from (e.g. "cli", "web", "mcp").
	Source *string

	Tags []string

	Analysis    triage.Analysis
	Suggestions []triage.Suggestion

	// AnalyzedBy records whether the assistant service or local rules answered.
	AnalyzedBy triage.Source

	Processed bool

	// CreatedAt is the Unix timestamp when the capture was stored.
	CreatedAt int64

	// ProcessedAt is set once the capture has been promoted or marked done.
	ProcessedAt *int64
}

// Summary is a capture without its full content, for list views.
type Summary struct {
	ID           string              `json:"id"`
	Preview      string              `json:"preview"`
	Source       *string             `json:"source,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	DetectedType triage.DetectedType `json:"detected_type"`
	Priority     triage.Priority     `json:"priority"`
	Category     triage.Category     `json:"category"`
	AnalyzedBy   triage.Source       `json:"analyzed_by"`
	Processed    bool                `json:"processed"`
	CreatedAt    int64               `json:"created_at"`
	ProcessedAt  *int64              `json:"processed_at,omitempty"`
}

// PreviewChars is the length of Summary.Preview.
const PreviewChars = 80

// ToSummary strips the content down to a short preview.
func (c *Capture) ToSummary() Summary {
	return Summary{
		ID:           c.ID,
		Preview:      Preview(c.PlainText, PreviewChars),
		Source:       c.Source,
		Tags:         c.Tags,
		DetectedType: c.Analysis.DetectedType,
		Priority:     c.Analysis.Priority,
		Category:     c.Analysis.Category,
		AnalyzedBy:   c.AnalyzedBy,
		Processed:    c.Processed,
		CreatedAt:    c.CreatedAt,
		ProcessedAt:  c.ProcessedAt,
	}
}
