package timetrack

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/validator"
)

// ========================================
// ENGINE INPUT
// ========================================

// CorrectionRequest enumerates exactly the fields a correction may change.
type CorrectionRequest struct {
	EventID      string
	NewTimestamp time.Time
	Reason       string
	Actor        string
}

func (r CorrectionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EventID) {
		errs = append(errs, validator.ValidationError{
			Field:   "event_id",
			Message: "event_id is required",
		})
	}
	if r.NewTimestamp.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "new_time",
			Message: "new_time is required",
		})
	}
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "correction reason is required",
		})
	}
	if validator.IsEmpty(r.Actor) {
		errs = append(errs, validator.ValidationError{
			Field:   "actor",
			Message: "actor is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CorrectionMode distinguishes ordinary edits from mass reconciliation (cuadre).
type CorrectionMode int

const (
	CorrectionOrdinary CorrectionMode = iota
	CorrectionMass
)

// BatchItem is one day of a batch correction as seen by the engine.
// Day is nil when the record does not exist.
type BatchItem struct {
	Date        time.Time
	Day         *DayRecord
	Corrections []CorrectionRequest
}

// ========================================
// REQUEST DTOs
// ========================================

type RecordEventRequest struct {
	EmployeeID string  `json:"employee_id,omitempty"` // defaults to the caller
	Type       string  `json:"type"`
	Timestamp  *string `json:"timestamp,omitempty"` // ISO 8601 or HH:mm; defaults to now
	Date       *string `json:"date,omitempty"`      // YYYY-MM-DD, reference day for HH:mm
}

func (r *RecordEventRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(r.Type, ClockEventTypeValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: entrada, pausa_inicio, pausa_fin, salida",
		})
	}

	if r.Timestamp != nil && validator.IsEmpty(*r.Timestamp) {
		errs = append(errs, validator.ValidationError{
			Field:   "timestamp",
			Message: "timestamp must not be empty",
		})
	}

	if r.Date != nil && *r.Date != "" {
		if r.Timestamp == nil {
			errs = append(errs, validator.ValidationError{
				Field:   "timestamp",
				Message: "timestamp is required when date is given",
			})
		}
		if _, valid := validator.IsValidDate(*r.Date); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
	}

	if r.Timestamp != nil && validator.IsValidClockTime(*r.Timestamp) && (r.Date == nil || *r.Date == "") {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date is required when timestamp is a bare HH:mm time",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DayRef identifies one day record.
type DayRef struct {
	EmployeeID string `json:"-"`
	Date       string `json:"-"` // YYYY-MM-DD
}

func (r DayRef) validate() validator.ValidationErrors {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}
	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}
	return errs
}

type CloseDayRequest struct {
	DayRef
}

func (r *CloseDayRequest) Validate() error {
	if errs := r.validate(); len(errs) > 0 {
		return errs
	}
	return nil
}

type ReviewRequest struct {
	DayRef
	Reason string `json:"reason"`
}

func (r *ReviewRequest) Validate() error {
	errs := r.validate()
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "review reason is required",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ResolveReviewRequest struct {
	DayRef
}

func (r *ResolveReviewRequest) Validate() error {
	if errs := r.validate(); len(errs) > 0 {
		return errs
	}
	return nil
}

type ApproveDayRequest struct {
	DayRef
	Notes *string `json:"notes,omitempty"`
}

func (r *ApproveDayRequest) Validate() error {
	if errs := r.validate(); len(errs) > 0 {
		return errs
	}
	return nil
}

// CorrectEventRequest for managers fixing one clock event.
type CorrectEventRequest struct {
	DayRef
	EventID string `json:"-"`
	NewTime string `json:"new_time"` // ISO 8601 or HH:mm, anchored on the record's day
	Reason  string `json:"reason"`
	Mass    bool   `json:"mass,omitempty"`
}

func (r *CorrectEventRequest) Validate() error {
	errs := r.validate()

	if validator.IsEmpty(r.EventID) {
		errs = append(errs, validator.ValidationError{
			Field:   "event_id",
			Message: "event_id is required",
		})
	}
	if validator.IsEmpty(r.NewTime) {
		errs = append(errs, validator.ValidationError{
			Field:   "new_time",
			Message: "new_time is required",
		})
	}
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "correction reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BatchCorrectionItem struct {
	Date    string `json:"date"`
	EventID string `json:"event_id"`
	NewTime string `json:"new_time"`
	Reason  string `json:"reason"`
}

// BatchCorrectionRequest edits several days of one employee at once (cuadre
// when Mass is set).
type BatchCorrectionRequest struct {
	EmployeeID string                `json:"employee_id"`
	Mass       bool                  `json:"mass"`
	Items      []BatchCorrectionItem `json:"items"`
}

func (r *BatchCorrectionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}
	if len(r.Items) == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "items",
			Message: "at least one correction is required",
		})
	}

	for i, item := range r.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if _, valid := validator.IsValidDate(item.Date); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
		if validator.IsEmpty(item.EventID) {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".event_id",
				Message: "event_id is required",
			})
		}
		if validator.IsEmpty(item.NewTime) {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".new_time",
				Message: "new_time is required",
			})
		}
		if validator.IsEmpty(item.Reason) {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".reason",
				Message: "correction reason is required",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DateRangeRequest is used by day listings and period summaries.
type DateRangeRequest struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"` // YYYY-MM-DD
	EndDate    string `json:"end_date"`   // YYYY-MM-DD
}

func (r *DateRangeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	start, startValid := validator.IsValidDate(r.StartDate)
	if !startValid {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}
	end, endValid := validator.IsValidDate(r.EndDate)
	if !endValid {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}
	if startValid && endValid && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========================================
// RESPONSE DTOs
// ========================================

type ClockEventResponse struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Timestamp         string  `json:"timestamp"`
	OriginalTimestamp *string `json:"original_timestamp,omitempty"`
	EditedBy          *string `json:"edited_by,omitempty"`
	EditReason        *string `json:"edit_reason,omitempty"`
}

type DayRecordResponse struct {
	ID            string               `json:"id"`
	EmployeeID    string               `json:"employee_id"`
	Date          string               `json:"date"`
	Status        string               `json:"status"`
	Events        []ClockEventResponse `json:"events"`
	WorkedHours   string               `json:"worked_hours"`
	PausedHours   string               `json:"paused_hours"`
	Cached        bool                 `json:"cached"`
	MassCorrected bool                 `json:"mass_corrected"`
	AutoCompleted bool                 `json:"auto_completed"`
	NextAllowed   []string             `json:"next_allowed,omitempty"`
	ReviewReason  *string              `json:"review_reason,omitempty"`
	ApprovedBy    *string              `json:"approved_by,omitempty"`
	ApprovedAt    *string              `json:"approved_at,omitempty"`
	UpdatedAt     string               `json:"updated_at"`
}

type ListDayRecordsResponse struct {
	EmployeeID string              `json:"employee_id"`
	StartDate  string              `json:"start_date"`
	EndDate    string              `json:"end_date"`
	Days       []DayRecordResponse `json:"days"`
}

type BatchCorrectionResponse struct {
	EmployeeID string              `json:"employee_id"`
	Mass       bool                `json:"mass"`
	Corrected  int                 `json:"corrected"`
	Days       []DayRecordResponse `json:"days"`
}

type DaySummaryResponse struct {
	Date          string  `json:"date"`
	HasRecord     bool    `json:"has_record"`
	Status        *string `json:"status,omitempty"`
	WorkedHours   string  `json:"worked_hours"`
	ExpectedHours string  `json:"expected_hours"`
	MassCorrected bool    `json:"mass_corrected,omitempty"`
	Absence       *string `json:"absence,omitempty"`
}

type PeriodSummaryResponse struct {
	EmployeeID             string               `json:"employee_id"`
	RangeStart             string               `json:"range_start"`
	RangeEnd               string               `json:"range_end"`
	TotalWorkedHours       string               `json:"total_worked_hours"`
	TotalExpectedHours     string               `json:"total_expected_hours"`
	BalanceHours           string               `json:"balance_hours"`
	DaysWithoutClocking    int                  `json:"days_without_clocking"`
	OpenDays               int                  `json:"open_days"`
	JustifiedAbsenceDays   int                  `json:"justified_absence_days"`
	UnjustifiedAbsenceDays int                  `json:"unjustified_absence_days"`
	MassCorrectedDays      int                  `json:"mass_corrected_days"`
	Days                   []DaySummaryResponse `json:"days"`
}
