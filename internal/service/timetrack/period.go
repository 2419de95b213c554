package timetrack

import (
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/shopspring/decimal"
)

// PeriodInput carries everything the period fold needs. Expected and
// Absences are keyed by YYYY-MM-DD; missing keys mean zero hours and no
// classification.
type PeriodInput struct {
	EmployeeID string
	RangeStart time.Time
	RangeEnd   time.Time
	Records    []timetrack.DayRecord
	Expected   map[string]decimal.Decimal
	Absences   map[string]timetrack.AbsenceKind
}

// EnumerateDays lists every calendar day in [start, end], both included, as
// 00:00 instants in the normalizer's zone.
func (n Normalizer) EnumerateDays(start, end time.Time) []time.Time {
	first := n.StartOfDay(start)
	last := n.StartOfDay(end)
	if last.Before(first) {
		return nil
	}

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// SummarizePeriod folds day records over the range. It never mutates the
// records.
func (n Normalizer) SummarizePeriod(in PeriodInput) timetrack.PeriodSummary {
	byDay := make(map[string]*timetrack.DayRecord, len(in.Records))
	for i := range in.Records {
		byDay[n.DayKey(in.Records[i].Date)] = &in.Records[i]
	}

	summary := timetrack.PeriodSummary{
		EmployeeID:         in.EmployeeID,
		RangeStart:         n.StartOfDay(in.RangeStart),
		RangeEnd:           n.StartOfDay(in.RangeEnd),
		TotalWorkedHours:   decimal.Zero,
		TotalExpectedHours: decimal.Zero,
	}

	for _, day := range n.EnumerateDays(in.RangeStart, in.RangeEnd) {
		key := n.DayKey(day)
		expected, ok := in.Expected[key]
		if !ok {
			expected = decimal.Zero
		}

		row := timetrack.DaySummary{
			Date:          day,
			ExpectedHours: expected,
			WorkedHours:   decimal.Zero,
		}

		if record, ok := byDay[key]; ok {
			status := record.Status
			row.HasRecord = true
			row.Status = &status
			row.WorkedHours = ComputeWorkedHours(record)
			row.MassCorrected = record.MassCorrected
			if record.Status == timetrack.DayStatusOpen {
				summary.OpenDays++
			}
			if record.MassCorrected {
				summary.MassCorrectedDays++
			}
		} else {
			summary.DaysWithoutClocking++
			if kind, ok := in.Absences[key]; ok {
				k := kind
				row.Absence = &k
				switch kind {
				case timetrack.AbsenceJustified:
					summary.JustifiedAbsenceDays++
				case timetrack.AbsenceUnjustified:
					summary.UnjustifiedAbsenceDays++
				}
			}
		}

		summary.TotalWorkedHours = summary.TotalWorkedHours.Add(row.WorkedHours)
		summary.TotalExpectedHours = summary.TotalExpectedHours.Add(expected)
		summary.Days = append(summary.Days, row)
	}

	summary.BalanceHours = summary.TotalWorkedHours.Sub(summary.TotalExpectedHours)
	return summary
}
