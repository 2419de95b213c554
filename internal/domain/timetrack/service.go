package timetrack

import (
	"context"
	"time"
)

// Service defines business logic for time-tracking operations
type Service interface {
	// RecordEvent appends a clock event, creating the day record on the first entrada
	RecordEvent(ctx context.Context, req RecordEventRequest) (DayRecordResponse, error)

	// GetDay retrieves one day record
	GetDay(ctx context.Context, employeeID string, date string) (DayRecordResponse, error)

	// ListDays retrieves the day records in a date range
	ListDays(ctx context.Context, req DateRangeRequest) (ListDayRecordsResponse, error)

	// CloseDay finalizes an open day and caches its totals
	CloseDay(ctx context.Context, req CloseDayRequest) (DayRecordResponse, error)

	// RequestReview moves a finalized day under review (supervisor or dispute)
	RequestReview(ctx context.Context, req ReviewRequest) (DayRecordResponse, error)

	// ResolveReview returns a day under review to finalized
	ResolveReview(ctx context.Context, req ResolveReviewRequest) (DayRecordResponse, error)

	// ApproveDay marks a day as approved for payroll
	ApproveDay(ctx context.Context, req ApproveDayRequest) (DayRecordResponse, error)

	// CorrectEvent edits the timestamp of one clock event
	CorrectEvent(ctx context.Context, req CorrectEventRequest) (DayRecordResponse, error)

	// BatchCorrect applies corrections to several days, all or nothing
	BatchCorrect(ctx context.Context, req BatchCorrectionRequest) (BatchCorrectionResponse, error)

	// SummarizePeriod rolls day records up into a balance against the schedule
	SummarizePeriod(ctx context.Context, req DateRangeRequest) (PeriodSummaryResponse, error)

	// FinalizeStaleDays auto-completes and finalizes open days older than asOf's day
	FinalizeStaleDays(ctx context.Context, asOf time.Time) (int, error)
}
