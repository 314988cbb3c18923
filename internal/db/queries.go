package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

// MaxSearchQueryChars bounds the search term length.
const MaxSearchQueryChars = 500

const captureColumns = `
	id, content, plain_text, source, tags_json,
	detected_type, priority, category, suggested_action, suggestions_json,
	analyzed_by, processed, created_at, processed_at
`

// ListFilters narrows List and Search. Nil fields are not applied.
type ListFilters struct {
	Type      *triage.DetectedType
	Category  *triage.Category
	Processed *bool
}

// Insert stores a new capture in the database.
func Insert(db *sql.DB, c *capture.Capture) error {
	// Convert tags to JSON
	var tagsJSON sql.NullString
	if len(c.Tags) > 0 {
		data, err := json.Marshal(c.Tags)
		if err != nil {
			return errors.NewInternal(err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}

	suggestions := c.Suggestions
	if suggestions == nil {
		suggestions = []triage.Suggestion{}
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO captures (` + captureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		c.ID, c.Content, c.PlainText, toNullString(c.Source), tagsJSON,
		string(c.Analysis.DetectedType), string(c.Analysis.Priority), string(c.Analysis.Category),
		c.Analysis.SuggestedAction, string(suggestionsJSON),
		string(c.AnalyzedBy), boolToInt(c.Processed), c.CreatedAt, toNullInt64(c.ProcessedAt),
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// GetByID retrieves a capture by its ULID.
func GetByID(db *sql.DB, id string) (*capture.Capture, error) {
	query := `SELECT ` + captureColumns + ` FROM captures WHERE id = ?`

	c, err := scanCapture(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return c, nil
}

// List returns captures newest first, with the total count ignoring
// limit/offset.
func List(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int) ([]capture.Capture, int, error) {
	where, args := filters.where(nil, nil)
	return queryPage(ctx, db, where, args, limit, offset)
}

// Search returns captures whose plain text contains term, case-insensitively,
// newest first.
func Search(ctx context.Context, db *sql.DB, term string, filters ListFilters, limit, offset int) ([]capture.Capture, int, error) {
	where, args := filters.where(
		[]string{`instr(` + foldFunc + `(plain_text), ?) > 0`},
		[]any{strings.ToLower(term)},
	)
	return queryPage(ctx, db, where, args, limit, offset)
}

// Delete removes a capture permanently.
func Delete(db *sql.DB, id string) error {
	result, err := db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// MarkProcessed flags a capture as handled. Already-processed captures keep
// their original processed_at.
func MarkProcessed(db *sql.DB, id string, at int64) error {
	query := `
		UPDATE captures
		SET processed = 1, processed_at = COALESCE(processed_at, ?)
		WHERE id = ?
	`

	result, err := db.Exec(query, at, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// PurgeProcessed deletes processed captures whose processed_at is before
// cutoff. Returns the number of rows removed.
func PurgeProcessed(db *sql.DB, cutoff int64) (int, error) {
	result, err := db.Exec(`DELETE FROM captures WHERE processed = 1 AND processed_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

func (f ListFilters) where(conds []string, args []any) (string, []any) {
	if f.Type != nil {
		conds = append(conds, "detected_type = ?")
		args = append(args, string(*f.Type))
	}
	if f.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, string(*f.Category))
	}
	if f.Processed != nil {
		conds = append(conds, "processed = ?")
		args = append(args, boolToInt(*f.Processed))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func queryPage(ctx context.Context, db *sql.DB, where string, args []any, limit, offset int) ([]capture.Capture, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captures`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + captureColumns + ` FROM captures` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []capture.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCapture scans a single row into a Capture struct.
func scanCapture(row rowScanner) (*capture.Capture, error) {
	var (
		c               capture.Capture
		source          sql.NullString
		tagsJSON        sql.NullString
		detectedType    string
		priority        string
		category        string
		suggestionsJSON string
		analyzedBy      string
		processed       int
		processedAt     sql.NullInt64
	)

	err := row.Scan(
		&c.ID, &c.Content, &c.PlainText, &source, &tagsJSON,
		&detectedType, &priority, &category, &c.Analysis.SuggestedAction, &suggestionsJSON,
		&analyzedBy, &processed, &c.CreatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = fromNullString(source)
	c.Analysis.DetectedType = triage.DetectedType(detectedType)
	c.Analysis.Priority = triage.Priority(priority)
	c.Analysis.Category = triage.Category(category)
	c.AnalyzedBy = triage.Source(analyzedBy)
	c.Processed = processed != 0
	if processedAt.Valid {
		c.ProcessedAt = &processedAt.Int64
	}

	// Parse tags JSON
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &c.Tags); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(suggestionsJSON), &c.Suggestions); err != nil {
		return nil, err
	}
	if c.Suggestions == nil {
		c.Suggestions = []triage.Suggestion{}
	}

	return &c, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
