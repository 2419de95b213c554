package timetrack

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

// SystemActor signs changes made by scheduled jobs.
const SystemActor = "system"

const autoCompleteReason = "Auto-completed: no clock-out registered, closed at scheduled end time"

var statusTransitions = map[timetrack.DayStatus][]timetrack.DayStatus{
	timetrack.DayStatusOpen:        {timetrack.DayStatusFinalized},
	timetrack.DayStatusFinalized:   {timetrack.DayStatusUnderReview, timetrack.DayStatusApproved},
	timetrack.DayStatusUnderReview: {timetrack.DayStatusFinalized, timetrack.DayStatusApproved},
	// only reachable through a correction reopening the day
	timetrack.DayStatusApproved: {timetrack.DayStatusUnderReview},
}

// CanTransition reports whether from → to is part of the day lifecycle.
func CanTransition(from, to timetrack.DayStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transition(day *timetrack.DayRecord, to timetrack.DayStatus) error {
	if !CanTransition(day.Status, to) {
		return fmt.Errorf("%w: %s -> %s", timetrack.ErrInvalidTransition, day.Status, to)
	}
	day.Status = to
	return nil
}

// Finalize closes an open day and caches its totals. It is the only
// transition that writes the cache.
func Finalize(day *timetrack.DayRecord, at time.Time) error {
	if day == nil {
		return timetrack.ErrDayNotFound
	}
	if err := transition(day, timetrack.DayStatusFinalized); err != nil {
		return err
	}
	cacheTotals(day)
	day.UpdatedAt = at
	return nil
}

// RequestReview puts a finalized day under review.
func RequestReview(day *timetrack.DayRecord, reason string, at time.Time) error {
	if day == nil {
		return timetrack.ErrDayNotFound
	}
	if day.Status != timetrack.DayStatusFinalized {
		return fmt.Errorf("%w: only finalized days can be put under review, day is %s",
			timetrack.ErrInvalidTransition, day.Status)
	}
	if err := transition(day, timetrack.DayStatusUnderReview); err != nil {
		return err
	}
	day.ReviewReason = &reason
	day.InvalidateCache()
	day.UpdatedAt = at
	return nil
}

// ResolveReview finalizes a day under review again, recomputing its totals
// from the possibly edited events.
func ResolveReview(day *timetrack.DayRecord, at time.Time) error {
	if day == nil {
		return timetrack.ErrDayNotFound
	}
	if day.Status != timetrack.DayStatusUnderReview {
		return fmt.Errorf("%w: day is %s, not under review", timetrack.ErrInvalidTransition, day.Status)
	}
	if err := transition(day, timetrack.DayStatusFinalized); err != nil {
		return err
	}
	day.ReviewReason = nil
	cacheTotals(day)
	day.UpdatedAt = at
	return nil
}

// Approve marks a finalized or reviewed day as approved. Approval is
// advisory: later corrections are still possible and are tracked.
func Approve(day *timetrack.DayRecord, actor string, at time.Time) error {
	if day == nil {
		return timetrack.ErrDayNotFound
	}
	if day.Status == timetrack.DayStatusApproved {
		return fmt.Errorf("%w: day is already approved", timetrack.ErrInvalidTransition)
	}
	if err := transition(day, timetrack.DayStatusApproved); err != nil {
		return err
	}
	approvedAt := at
	day.ApprovedBy = &actor
	day.ApprovedAt = &approvedAt
	day.ReviewReason = nil
	day.InvalidateCache()
	day.UpdatedAt = at
	return nil
}

// correctionStatus is the status a day lands in after a correction.
func correctionStatus(current timetrack.DayStatus, mode timetrack.CorrectionMode) timetrack.DayStatus {
	switch current {
	case timetrack.DayStatusOpen:
		return timetrack.DayStatusOpen
	case timetrack.DayStatusApproved:
		if mode == timetrack.CorrectionMass {
			return timetrack.DayStatusApproved
		}
		return timetrack.DayStatusUnderReview
	default:
		return timetrack.DayStatusUnderReview
	}
}

// CorrectEvent moves one event to req.NewTimestamp. The first prior value is
// kept in OriginalTimestamp. The day is left untouched on error.
func CorrectEvent(day *timetrack.DayRecord, req timetrack.CorrectionRequest, mode timetrack.CorrectionMode, at time.Time) (timetrack.AuditEntry, error) {
	if day == nil {
		return timetrack.AuditEntry{}, timetrack.ErrDayNotFound
	}
	if err := req.Validate(); err != nil {
		return timetrack.AuditEntry{}, err
	}

	idx := day.EventByID(req.EventID)
	if idx < 0 {
		return timetrack.AuditEntry{}, fmt.Errorf("%w: %s", timetrack.ErrEventNotFound, req.EventID)
	}
	if !withinClockingWindow(day.Date, req.NewTimestamp) {
		return timetrack.AuditEntry{}, fmt.Errorf("%w: %s is outside the day of %s",
			timetrack.ErrInvalidSequence, req.NewTimestamp.Format(time.RFC3339), day.Date.Format("2006-01-02"))
	}

	candidate := day.Clone()
	ev := &candidate.Events[idx]
	old := ev.Timestamp
	if ev.OriginalTimestamp == nil {
		original := old
		ev.OriginalTimestamp = &original
	}
	actor, reason := req.Actor, req.Reason
	ev.Timestamp = req.NewTimestamp
	ev.EditedBy = &actor
	ev.EditReason = &reason

	sortEventsInPlace(candidate.Events)
	if err := ValidateSequence(candidate.Events); err != nil {
		return timetrack.AuditEntry{}, err
	}

	candidate.Status = correctionStatus(day.Status, mode)
	action := timetrack.AuditActionCorrection
	if mode == timetrack.CorrectionMass {
		candidate.MassCorrected = true
		action = timetrack.AuditActionMassCorrection
	}
	candidate.InvalidateCache()
	candidate.UpdatedAt = at

	*day = candidate

	return timetrack.AuditEntry{
		CompanyID:    day.CompanyID,
		EmployeeID:   day.EmployeeID,
		Date:         day.Date,
		EventID:      req.EventID,
		Action:       action,
		OldTimestamp: &old,
		NewTimestamp: req.NewTimestamp,
		Actor:        req.Actor,
		Reason:       req.Reason,
		Timestamp:    at,
	}, nil
}

// ApplyBatch runs every correction on staged copies. If any member fails the
// originals are left untouched and a *PartialBatchFailureError is returned;
// otherwise every day is updated. Items must not repeat a date.
func ApplyBatch(items []timetrack.BatchItem, mode timetrack.CorrectionMode, at time.Time) ([]timetrack.AuditEntry, error) {
	var failed []timetrack.BatchFailure
	var wouldSucceed []time.Time
	staged := make([]timetrack.DayRecord, len(items))
	var entries []timetrack.AuditEntry

	for i, item := range items {
		if item.Day == nil {
			failed = append(failed, timetrack.BatchFailure{Date: item.Date, Err: timetrack.ErrDayNotFound})
			continue
		}

		clone := item.Day.Clone()
		var itemEntries []timetrack.AuditEntry
		var itemErr error
		for _, corr := range item.Corrections {
			entry, err := CorrectEvent(&clone, corr, mode, at)
			if err != nil {
				failed = append(failed, timetrack.BatchFailure{Date: item.Date, EventID: corr.EventID, Err: err})
				itemErr = err
				break
			}
			itemEntries = append(itemEntries, entry)
		}
		if itemErr != nil {
			continue
		}

		staged[i] = clone
		entries = append(entries, itemEntries...)
		wouldSucceed = append(wouldSucceed, item.Date)
	}

	if len(failed) > 0 {
		return nil, &timetrack.PartialBatchFailureError{Failed: failed, WouldSucceed: wouldSucceed}
	}

	for i := range items {
		*items[i].Day = staged[i]
	}
	return entries, nil
}

// AutoComplete closes an open span with a system salida at salidaAt. On a
// day that is no longer open this is a correction: the day goes under review.
func AutoComplete(day *timetrack.DayRecord, eventID string, salidaAt time.Time, at time.Time) (timetrack.AuditEntry, error) {
	if day == nil {
		return timetrack.AuditEntry{}, timetrack.ErrDayNotFound
	}
	if !AggregateEvents(day.Events).OpenSpan {
		return timetrack.AuditEntry{}, fmt.Errorf("%w: no open span to complete", timetrack.ErrInvalidSequence)
	}

	candidate := day.Clone()
	actor, reason := SystemActor, autoCompleteReason
	candidate.Events = append(candidate.Events, timetrack.ClockEvent{
		ID:         eventID,
		Type:       timetrack.EventSalida,
		Timestamp:  salidaAt,
		EditedBy:   &actor,
		EditReason: &reason,
		CreatedAt:  at,
	})
	sortEventsInPlace(candidate.Events)
	if candidate.Events[len(candidate.Events)-1].ID != eventID {
		return timetrack.AuditEntry{}, fmt.Errorf("%w: scheduled end %s precedes the last event",
			timetrack.ErrInvalidSequence, salidaAt.Format(time.RFC3339))
	}
	if err := ValidateSequence(candidate.Events); err != nil {
		return timetrack.AuditEntry{}, err
	}

	if candidate.Status != timetrack.DayStatusOpen {
		candidate.Status = timetrack.DayStatusUnderReview
	}
	candidate.AutoCompleted = true
	candidate.InvalidateCache()
	candidate.UpdatedAt = at

	*day = candidate

	return timetrack.AuditEntry{
		CompanyID:    day.CompanyID,
		EmployeeID:   day.EmployeeID,
		Date:         day.Date,
		EventID:      eventID,
		Action:       timetrack.AuditActionAutoComplete,
		NewTimestamp: salidaAt,
		Actor:        SystemActor,
		Reason:       autoCompleteReason,
		Timestamp:    at,
	}, nil
}

// withinClockingWindow reports whether t belongs to the record of date: the
// day itself or the following one, where an overnight shift ends.
func withinClockingWindow(date, t time.Time) bool {
	if date.IsZero() {
		return true
	}
	return !t.Before(date) && t.Before(date.AddDate(0, 0, 2))
}

func cacheTotals(day *timetrack.DayRecord) {
	totals := AggregateEvents(day.Events)
	worked := HoursFromMillis(totals.WorkedMillis)
	paused := HoursFromMillis(totals.PausedMillis)
	day.WorkedHours = &worked
	day.PausedHours = &paused
}
