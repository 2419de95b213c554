package timetrack

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DayRecordRepository persists day records together with their clock events.
// All methods include companyID to prevent cross-company data access.
type DayRecordRepository interface {
	// GetDayRecord returns ErrDayNotFound when no record exists for the day.
	// Inside a transaction the row is locked until commit.
	GetDayRecord(ctx context.Context, employeeID string, date time.Time, companyID string) (DayRecord, error)

	// SaveDayRecord inserts or updates the record and upserts its events.
	SaveDayRecord(ctx context.Context, record DayRecord) (DayRecord, error)

	// ListDayRecords returns records in [start, end] inclusive, ordered by date.
	ListDayRecords(ctx context.Context, employeeID string, start, end time.Time, companyID string) ([]DayRecord, error)

	// ListOpenDaysBefore returns open records dated strictly before the given day, across companies.
	ListOpenDaysBefore(ctx context.Context, before time.Time) ([]DayRecord, error)
}

// ScheduleProvider exposes the employee's contracted schedule (jornada).
type ScheduleProvider interface {
	// ExpectedHours returns expected hours for each day in [start, end], keyed by YYYY-MM-DD.
	// Days without an entry expect zero hours.
	ExpectedHours(ctx context.Context, employeeID string, start, end time.Time, companyID string) (map[string]decimal.Decimal, error)

	// ScheduledEnd returns the scheduled clock-out instant for the day, or nil when none is scheduled.
	ScheduledEnd(ctx context.Context, employeeID string, date time.Time, companyID string) (*time.Time, error)
}

// AbsenceProvider classifies days without clocking.
type AbsenceProvider interface {
	ClassifyDays(ctx context.Context, employeeID string, dates []time.Time, expected map[string]decimal.Decimal, companyID string) (map[string]AbsenceKind, error)
}

// AuditSink receives one entry per event correction. Storage format is the sink's concern.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Transactor runs fn inside one all-or-nothing unit of work.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
