package timetrack

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

var madrid = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
	return loc
}()

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, madrid)
}

// clock places HH:mm on the given day.
func clock(day time.Time, hhmm string) time.Time {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		panic(err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, madrid)
}

func event(id string, typ timetrack.ClockEventType, at time.Time) timetrack.ClockEvent {
	return timetrack.ClockEvent{ID: id, Type: typ, Timestamp: at, CreatedAt: at}
}

// fullDay is entrada 09:00, pause 13:00-14:00, salida 18:00.
func fullDay(day time.Time) timetrack.DayRecord {
	return timetrack.DayRecord{
		ID:         "day-" + day.Format("0102"),
		EmployeeID: "emp-1",
		CompanyID:  "co-1",
		Date:       day,
		Status:     timetrack.DayStatusOpen,
		Events: []timetrack.ClockEvent{
			event("in", timetrack.EventEntrada, clock(day, "09:00")),
			event("p1", timetrack.EventPausaInicio, clock(day, "13:00")),
			event("p2", timetrack.EventPausaFin, clock(day, "14:00")),
			event("out", timetrack.EventSalida, clock(day, "18:00")),
		},
	}
}
