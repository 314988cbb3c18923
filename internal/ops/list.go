package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Type      string // optional filter
	Category  string // optional filter
	Processed *bool  // optional filter
	Limit     int    // default: 20, max: 100
	Offset    int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []capture.Summary `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Sort       string            `json:"sort"`
}

// List retrieves capture summaries, newest first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	filters, err := buildFilters(input.Type, input.Category, input.Processed)
	if err != nil {
		return nil, err
	}

	limit, offset := pageBounds(input.Limit, input.Offset)

	rows, total, err := db.List(ctx, database, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]capture.Summary, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToSummary())
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
