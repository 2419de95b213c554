package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/shopspring/decimal"
)

// LeaveCalendar classifies days without clocking from registered approved
// leave.
type LeaveCalendar struct {
	mu    sync.RWMutex
	leave map[string]map[string]struct{} // employeeID -> YYYY-MM-DD
}

func NewLeaveCalendar() *LeaveCalendar {
	return &LeaveCalendar{leave: make(map[string]map[string]struct{})}
}

// AddLeave registers approved leave for every day in [start, end].
func (l *LeaveCalendar) AddLeave(employeeID string, start, end time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.leave[employeeID] == nil {
		l.leave[employeeID] = make(map[string]struct{})
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		l.leave[employeeID][d.Format("2006-01-02")] = struct{}{}
	}
}

// ClassifyDays implements timetrack.AbsenceProvider.
func (l *LeaveCalendar) ClassifyDays(ctx context.Context, employeeID string, dates []time.Time, expected map[string]decimal.Decimal, companyID string) (map[string]timetrack.AbsenceKind, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]timetrack.AbsenceKind, len(dates))
	for _, d := range dates {
		key := d.Format("2006-01-02")
		if _, ok := l.leave[employeeID][key]; ok {
			result[key] = timetrack.AbsenceJustified
			continue
		}
		if expected[key].IsPositive() {
			result[key] = timetrack.AbsenceUnjustified
			continue
		}
		result[key] = timetrack.AbsenceNone
	}
	return result, nil
}
