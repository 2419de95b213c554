package timetrack

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Time-tracking domain errors
var (
	// Input errors
	ErrInvalidFormat = errors.New("invalid date or time format")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrBatchTooLarge = errors.New("batch correction targets too many days")

	// Sequence & state errors
	ErrInvalidSequence   = errors.New("clock event sequence is invalid")
	ErrInvalidTransition = errors.New("day record status does not allow this operation")
	ErrDayClosed         = errors.New("day record is closed for new clock events")
	ErrConcurrentUpdate  = errors.New("day record was created concurrently, retry the request")
	ErrEventRemoved      = errors.New("stored clock events cannot be removed from a day record")

	// Lookup errors
	ErrDayNotFound   = errors.New("day record not found")
	ErrEventNotFound = errors.New("clock event not found")

	// Claims
	ErrMissingClaims = errors.New("company_id or user_id claim is missing or invalid")
)

// BatchFailure describes one member of a batch correction that failed.
type BatchFailure struct {
	Date    time.Time
	EventID string
	Err     error
}

// PartialBatchFailureError is returned when at least one member of a batch
// correction failed. Nothing in the batch was applied; WouldSucceed lists the
// days that passed validation.
type PartialBatchFailureError struct {
	Failed       []BatchFailure
	WouldSucceed []time.Time
}

func (e *PartialBatchFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Date.Format("2006-01-02"), f.Err))
	}
	return fmt.Sprintf("batch correction failed for %d of %d days (%s)",
		len(e.Failed), len(e.Failed)+len(e.WouldSucceed), strings.Join(parts, "; "))
}

// Details returns a date -> message map for API responses.
func (e *PartialBatchFailureError) Details() map[string]string {
	details := make(map[string]string, len(e.Failed))
	for _, f := range e.Failed {
		key := f.Date.Format("2006-01-02")
		if f.EventID != "" {
			key += "/" + f.EventID
		}
		details[key] = f.Err.Error()
	}
	return details
}
