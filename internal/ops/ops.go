package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Analyzer classifies capture text. Implementations must always return a
// fully populated result.
type Analyzer interface {
	Analyze(ctx context.Context, content string) *triage.Result
}

// LocalAnalyzer classifies with the local rule tables only.
type LocalAnalyzer struct{}

// Analyze implements Analyzer.
func (LocalAnalyzer) Analyze(_ context.Context, content string) *triage.Result {
	return triage.Analyze(content)
}

// ValidateID trims and checks a capture ID.
func ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

// pageBounds applies limit defaults and bounds and clamps offset.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// buildFilters validates the optional type/category filters.
func buildFilters(typ, category string, processed *bool) (db.ListFilters, error) {
	var f db.ListFilters
	if t := strings.TrimSpace(strings.ToLower(typ)); t != "" {
		dt := triage.DetectedType(t)
		if !dt.Valid() {
			return f, errors.NewInvalidRequest(fmt.Sprintf("invalid type %q: must be one of task, event, study, project, idea", typ))
		}
		f.Type = &dt
	}
	if c := strings.TrimSpace(strings.ToLower(category)); c != "" {
		cat := triage.Category(c)
		if !cat.Valid() {
			return f, errors.NewInvalidRequest(fmt.Sprintf("invalid category %q: must be one of saude, trabalho, negocio, pessoal, dev, geral", category))
		}
		f.Category = &cat
	}
	f.Processed = processed
	return f, nil
}

// cleanOptionalString trims a string pointer and returns nil for empty/whitespace-only values.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// generateULID generates a new ULID. IDs from one process sort in creation
// order even within the same millisecond.
func generateULID() (string, error) {
	return ulid.Make().String(), nil
}
