package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/shopspring/decimal"
)

// ShiftTime is one weekday of a weekly schedule.
type ShiftTime struct {
	ClockIn      string // HH:mm
	ClockOut     string // HH:mm
	BreakMinutes int
	NextDayOut   bool // clock-out falls on the following day
}

// WeeklySchedule applies the same shifts to every employee. Weekdays absent
// from Shifts expect no work.
type WeeklySchedule struct {
	Shifts map[time.Weekday]ShiftTime
	loc    *time.Location
}

// NewWeeklySchedule validates the shift clock times.
func NewWeeklySchedule(shifts map[time.Weekday]ShiftTime, loc *time.Location) (*WeeklySchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	for day, shift := range shifts {
		if _, err := time.Parse("15:04", shift.ClockIn); err != nil {
			return nil, fmt.Errorf("%s clock-in %q: %w", day, shift.ClockIn, timetrack.ErrInvalidFormat)
		}
		if _, err := time.Parse("15:04", shift.ClockOut); err != nil {
			return nil, fmt.Errorf("%s clock-out %q: %w", day, shift.ClockOut, timetrack.ErrInvalidFormat)
		}
	}
	return &WeeklySchedule{Shifts: shifts, loc: loc}, nil
}

// OfficeWeek is Monday to Friday 09:00-18:00 with a one hour break.
func OfficeWeek(loc *time.Location) *WeeklySchedule {
	shift := ShiftTime{ClockIn: "09:00", ClockOut: "18:00", BreakMinutes: 60}
	ws, _ := NewWeeklySchedule(map[time.Weekday]ShiftTime{
		time.Monday:    shift,
		time.Tuesday:   shift,
		time.Wednesday: shift,
		time.Thursday:  shift,
		time.Friday:    shift,
	}, loc)
	return ws
}

func (w *WeeklySchedule) bounds(date time.Time, shift ShiftTime) (time.Time, time.Time) {
	local := date.In(w.loc)
	in, _ := time.Parse("15:04", shift.ClockIn)
	out, _ := time.Parse("15:04", shift.ClockOut)

	start := time.Date(local.Year(), local.Month(), local.Day(), in.Hour(), in.Minute(), 0, 0, w.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), out.Hour(), out.Minute(), 0, 0, w.loc)
	if shift.NextDayOut {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// ExpectedHours implements timetrack.ScheduleProvider.
func (w *WeeklySchedule) ExpectedHours(ctx context.Context, employeeID string, start, end time.Time, companyID string) (map[string]decimal.Decimal, error) {
	expected := make(map[string]decimal.Decimal)

	first := start.In(w.loc)
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, w.loc)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		shift, ok := w.Shifts[d.Weekday()]
		if !ok {
			continue
		}
		in, out := w.bounds(d, shift)
		minutes := int64(out.Sub(in)/time.Minute) - int64(shift.BreakMinutes)
		if minutes < 0 {
			minutes = 0
		}
		expected[d.Format("2006-01-02")] = decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
	}
	return expected, nil
}

// ScheduledEnd implements timetrack.ScheduleProvider.
func (w *WeeklySchedule) ScheduledEnd(ctx context.Context, employeeID string, date time.Time, companyID string) (*time.Time, error) {
	shift, ok := w.Shifts[date.In(w.loc).Weekday()]
	if !ok {
		return nil, nil
	}
	_, end := w.bounds(date, shift)
	return &end, nil
}
