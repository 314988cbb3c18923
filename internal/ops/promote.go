package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/jarvis/internal/capture"
	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

// PromoteKind selects the draft Promote builds.
type PromoteKind string

const (
	PromoteTask PromoteKind = "task"
	PromoteNote PromoteKind = "note"
)

// noteTitleChars is the note title length before "..." is appended.
const noteTitleChars = 50

// TaskDraft is a task derived from a capture. Task storage is external.
type TaskDraft struct {
	Title     string          `json:"title"`
	Priority  triage.Priority `json:"priority"`
	Category  triage.Category `json:"category"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	Completed bool            `json:"completed"`
	CaptureID string          `json:"capture_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// NoteDraft is a note derived from a capture. Note storage is external.
type NoteDraft struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Category  triage.Category `json:"category"`
	Tags      []string        `json:"tags"`
	Pinned    bool            `json:"pinned"`
	CaptureID string          `json:"capture_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// PromoteInput contains parameters for the Promote operation.
type PromoteInput struct {
	ID   string
	Kind PromoteKind
}

// PromoteOutput holds exactly one of Task or Note.
type PromoteOutput struct {
	ID   string      `json:"id"`
	Kind PromoteKind `json:"kind"`
	Task *TaskDraft  `json:"task,omitempty"`
	Note *NoteDraft  `json:"note,omitempty"`
}

// Promote turns a stored capture into a task or note draft using the
// classification it was stored with, and marks the capture processed.
func Promote(ctx context.Context, database *sql.DB, input PromoteInput) (*PromoteOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}
	kind := PromoteKind(strings.ToLower(strings.TrimSpace(string(input.Kind))))
	if kind != PromoteTask && kind != PromoteNote {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid kind %q: must be task or note", input.Kind))
	}

	c, err := db.GetByID(database, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := &PromoteOutput{ID: c.ID, Kind: kind}
	switch kind {
	case PromoteTask:
		out.Task = NewTaskDraft(c, now)
	case PromoteNote:
		out.Note = NewNoteDraft(c, now)
	}

	if err := db.MarkProcessed(database, c.ID, now.Unix()); err != nil {
		return nil, err
	}
	return out, nil
}

// NewTaskDraft builds a task from a capture: the content is the title and the
// due date follows the priority.
func NewTaskDraft(c *capture.Capture, now time.Time) *TaskDraft {
	return &TaskDraft{
		Title:     c.Content,
		Priority:  c.Analysis.Priority,
		Category:  c.Analysis.Category,
		DueDate:   triage.SuggestDueDate(c.Analysis.Priority, now),
		CaptureID: c.ID,
		CreatedAt: now,
	}
}

// NewNoteDraft builds a note from a capture, titled with its first 50
// characters and tagged with its type and category.
func NewNoteDraft(c *capture.Capture, now time.Time) *NoteDraft {
	return &NoteDraft{
		Title:     capture.Preview(c.PlainText, noteTitleChars),
		Content:   c.Content,
		Category:  c.Analysis.Category,
		Tags:      []string{string(c.Analysis.DetectedType), string(c.Analysis.Category)},
		CaptureID: c.ID,
		CreatedAt: now,
	}
}

// MarkProcessedInput contains parameters for the MarkProcessed operation.
type MarkProcessedInput struct {
	ID string
}

// MarkProcessedOutput contains the result of the MarkProcessed operation.
type MarkProcessedOutput struct {
	ID        string `json:"id"`
	Processed bool   `json:"processed"`
}

// MarkProcessed flags a capture as handled without building a draft.
func MarkProcessed(ctx context.Context, database *sql.DB, input MarkProcessedInput) (*MarkProcessedOutput, error) {
	id, err := ValidateID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := db.MarkProcessed(database, id, time.Now().Unix()); err != nil {
		return nil, err
	}
	return &MarkProcessedOutput{ID: id, Processed: true}, nil
}
