package ops

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
)

// Search limits
const (
	MaxQueryLength = db.MaxSearchQueryChars
	SnippetContext = 60 // characters kept on each side of the match
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query    string // required
	Type     string // optional filter
	Category string // optional filter
	Limit    int    // default: 20, max: 100
	Offset   int    // default: 0
}

// SearchResultItem wraps a Summary with a match snippet.
type SearchResultItem struct {
	capture.Summary
	// Snippet is HTML-safe: user content is escaped; only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
}

// Search finds captures whose text contains the query, case-insensitively,
// newest first.
func Search(ctx context.Context, database *sql.DB, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	filters, err := buildFilters(input.Type, input.Category, nil)
	if err != nil {
		return nil, err
	}

	limit, offset := pageBounds(input.Limit, input.Offset)

	rows, total, err := db.Search(ctx, database, query, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResultItem, 0, len(rows))
	for i := range rows {
		items = append(items, SearchResultItem{
			Summary: rows[i].ToSummary(),
			Snippet: buildSnippet(rows[i].PlainText, query, SnippetContext),
		})
	}

	return &SearchOutput{
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

// buildSnippet returns the first case-insensitive match of query in text
// with up to ctxChars characters on each side, HTML-escaped, the match
// wrapped in <b>. Elided ends are marked with "...".
func buildSnippet(text, query string, ctxChars int) string {
	runes := []rune(text)
	at := indexFold(runes, []rune(query))
	if at < 0 {
		return html.EscapeString(capture.Preview(text, 2*ctxChars))
	}
	end := at + utf8.RuneCountInString(query)

	from := max(at-ctxChars, 0)
	to := min(end+ctxChars, len(runes))

	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(html.EscapeString(string(runes[from:at])))
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(string(runes[at:end])))
	b.WriteString("</b>")
	b.WriteString(html.EscapeString(string(runes[end:to])))
	if to < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

// indexFold is a rune-wise, case-insensitive index of needle in haystack.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(r) {
				continue outer
			}
		}
		return i
	}
	return -1
}
