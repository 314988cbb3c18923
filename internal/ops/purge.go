package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/jarvis/internal/db"
	"github.com/hpungsan/jarvis/internal/errors"
)

// DefaultPurgeDays is used when PurgeInput.OlderThanDays is nil.
const DefaultPurgeDays = 30

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays *int // processed more than N days ago; default 30, 0 purges all processed
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes captures that were processed long enough ago.
// Unprocessed captures are never purged.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	days := DefaultPurgeDays
	if input.OlderThanDays != nil {
		days = *input.OlderThanDays
	}
	if days < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	if days == 0 {
		// include captures processed this very second
		cutoff++
	}

	count, err := db.PurgeProcessed(database, cutoff)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, days),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count, days int) string {
	if count == 0 {
		return "No processed captures to purge"
	}

	captureWord := "capture"
	if count > 1 {
		captureWord = "captures"
	}

	msg := fmt.Sprintf("Permanently deleted %d processed %s", count, captureWord)
	if days > 0 {
		msg += fmt.Sprintf(" (processed more than %d days ago)", days)
	}
	return msg
}
