package timetrack

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClockEventType string

const (
	EventEntrada     ClockEventType = "entrada"      // clock-in
	EventPausaInicio ClockEventType = "pausa_inicio" // break start
	EventPausaFin    ClockEventType = "pausa_fin"    // break end
	EventSalida      ClockEventType = "salida"       // clock-out
)

var ClockEventTypeValues = []string{
	string(EventEntrada),
	string(EventPausaInicio),
	string(EventPausaFin),
	string(EventSalida),
}

// ClockEvent is never deleted. A correction moves Timestamp and keeps the
// first value in OriginalTimestamp.
type ClockEvent struct {
	ID                string
	Type              ClockEventType
	Timestamp         time.Time
	OriginalTimestamp *time.Time
	EditedBy          *string
	EditReason        *string
	CreatedAt         time.Time
}

// Edited reports whether the event has been corrected at least once.
func (e ClockEvent) Edited() bool {
	return e.OriginalTimestamp != nil
}

type DayStatus string

const (
	DayStatusOpen        DayStatus = "open"
	DayStatusFinalized   DayStatus = "finalized"
	DayStatusUnderReview DayStatus = "under_review"
	DayStatusApproved    DayStatus = "approved"
)

var DayStatusValues = []string{
	string(DayStatusOpen),
	string(DayStatusFinalized),
	string(DayStatusUnderReview),
	string(DayStatusApproved),
}

// DayRecord is the fichaje of one employee for one calendar day.
// Events are kept ordered by timestamp ascending. WorkedHours and PausedHours
// are caches: nil means "recompute from Events".
type DayRecord struct {
	ID            string
	EmployeeID    string
	CompanyID     string
	Date          time.Time // 00:00 of the day in the reference time zone
	Status        DayStatus
	Events        []ClockEvent
	WorkedHours   *decimal.Decimal
	PausedHours   *decimal.Decimal
	MassCorrected bool
	AutoCompleted bool
	ReviewReason  *string
	ApprovedBy    *string
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy so callers can stage changes without touching
// the original record.
func (d DayRecord) Clone() DayRecord {
	c := d
	c.Events = make([]ClockEvent, len(d.Events))
	for i, ev := range d.Events {
		c.Events[i] = ev.clone()
	}
	c.WorkedHours = cloneDecimal(d.WorkedHours)
	c.PausedHours = cloneDecimal(d.PausedHours)
	c.ReviewReason = cloneString(d.ReviewReason)
	c.ApprovedBy = cloneString(d.ApprovedBy)
	if d.ApprovedAt != nil {
		t := *d.ApprovedAt
		c.ApprovedAt = &t
	}
	return c
}

// InvalidateCache drops the cached aggregates.
func (d *DayRecord) InvalidateCache() {
	d.WorkedHours = nil
	d.PausedHours = nil
}

// EventByID returns the index of the event with the given id, or -1.
func (d DayRecord) EventByID(id string) int {
	for i, ev := range d.Events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (e ClockEvent) clone() ClockEvent {
	c := e
	if e.OriginalTimestamp != nil {
		t := *e.OriginalTimestamp
		c.OriginalTimestamp = &t
	}
	c.EditedBy = cloneString(e.EditedBy)
	c.EditReason = cloneString(e.EditReason)
	return c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type AbsenceKind string

const (
	AbsenceNone        AbsenceKind = "none"        // nothing expected that day
	AbsenceJustified   AbsenceKind = "justified"   // approved leave, holiday
	AbsenceUnjustified AbsenceKind = "unjustified" // expected to work, no clocking
)

// DaySummary is one row of a PeriodSummary.
type DaySummary struct {
	Date          time.Time
	HasRecord     bool
	Status        *DayStatus
	WorkedHours   decimal.Decimal
	ExpectedHours decimal.Decimal
	MassCorrected bool
	Absence       *AbsenceKind // only set for days without clocking
}

// PeriodSummary is derived on demand and never persisted.
type PeriodSummary struct {
	EmployeeID             string
	RangeStart             time.Time
	RangeEnd               time.Time
	TotalWorkedHours       decimal.Decimal
	TotalExpectedHours     decimal.Decimal
	BalanceHours           decimal.Decimal
	DaysWithoutClocking    int
	OpenDays               int
	JustifiedAbsenceDays   int
	UnjustifiedAbsenceDays int
	MassCorrectedDays      int
	Days                   []DaySummary
}

type AuditAction string

const (
	AuditActionCorrection     AuditAction = "correction"
	AuditActionMassCorrection AuditAction = "mass_correction"
	AuditActionAutoComplete   AuditAction = "auto_complete"
)

// AuditEntry is emitted for every change to an event timestamp.
type AuditEntry struct {
	ID           string
	CompanyID    string
	EmployeeID   string
	Date         time.Time
	EventID      string
	Action       AuditAction
	OldTimestamp *time.Time // nil when the event was added (auto-complete)
	NewTimestamp time.Time
	Actor        string
	Reason       string
	Timestamp    time.Time
}
