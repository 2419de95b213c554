package timetrack

import (
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

func formatInstant(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

func formatInstantPtr(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := formatInstant(*t, loc)
	return &s
}

func (s *TimeTrackServiceImpl) toDayRecordResponse(day timetrack.DayRecord) timetrack.DayRecordResponse {
	loc := s.normalizer.Location()

	events := make([]timetrack.ClockEventResponse, 0, len(day.Events))
	for _, ev := range sortedEvents(day.Events) {
		events = append(events, timetrack.ClockEventResponse{
			ID:                ev.ID,
			Type:              string(ev.Type),
			Timestamp:         formatInstant(ev.Timestamp, loc),
			OriginalTimestamp: formatInstantPtr(ev.OriginalTimestamp, loc),
			EditedBy:          ev.EditedBy,
			EditReason:        ev.EditReason,
		})
	}

	var nextAllowed []string
	if day.Status == timetrack.DayStatusOpen {
		for _, t := range NextAllowed(day.Events) {
			nextAllowed = append(nextAllowed, string(t))
		}
	}

	return timetrack.DayRecordResponse{
		ID:            day.ID,
		EmployeeID:    day.EmployeeID,
		Date:          s.normalizer.DayKey(day.Date),
		Status:        string(day.Status),
		Events:        events,
		WorkedHours:   ComputeWorkedHours(&day).StringFixed(2),
		PausedHours:   ComputePausedHours(&day).StringFixed(2),
		Cached:        day.WorkedHours != nil,
		MassCorrected: day.MassCorrected,
		AutoCompleted: day.AutoCompleted,
		NextAllowed:   nextAllowed,
		ReviewReason:  day.ReviewReason,
		ApprovedBy:    day.ApprovedBy,
		ApprovedAt:    formatInstantPtr(day.ApprovedAt, loc),
		UpdatedAt:     formatInstant(day.UpdatedAt, loc),
	}
}

func (s *TimeTrackServiceImpl) toPeriodSummaryResponse(summary timetrack.PeriodSummary) timetrack.PeriodSummaryResponse {
	days := make([]timetrack.DaySummaryResponse, 0, len(summary.Days))
	for _, d := range summary.Days {
		row := timetrack.DaySummaryResponse{
			Date:          s.normalizer.DayKey(d.Date),
			HasRecord:     d.HasRecord,
			WorkedHours:   d.WorkedHours.StringFixed(2),
			ExpectedHours: d.ExpectedHours.StringFixed(2),
			MassCorrected: d.MassCorrected,
		}
		if d.Status != nil {
			status := string(*d.Status)
			row.Status = &status
		}
		if d.Absence != nil {
			absence := string(*d.Absence)
			row.Absence = &absence
		}
		days = append(days, row)
	}

	return timetrack.PeriodSummaryResponse{
		EmployeeID:             summary.EmployeeID,
		RangeStart:             s.normalizer.DayKey(summary.RangeStart),
		RangeEnd:               s.normalizer.DayKey(summary.RangeEnd),
		TotalWorkedHours:       summary.TotalWorkedHours.StringFixed(2),
		TotalExpectedHours:     summary.TotalExpectedHours.StringFixed(2),
		BalanceHours:           summary.BalanceHours.StringFixed(2),
		DaysWithoutClocking:    summary.DaysWithoutClocking,
		OpenDays:               summary.OpenDays,
		JustifiedAbsenceDays:   summary.JustifiedAbsenceDays,
		UnjustifiedAbsenceDays: summary.UnjustifiedAbsenceDays,
		MassCorrectedDays:      summary.MassCorrectedDays,
		Days:                   days,
	}
}
