package timetrack

import (
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/shopspring/decimal"
)

const millisPerHour = 3_600_000

var millisPerHourDecimal = decimal.NewFromInt(millisPerHour)

// DayTotals holds exact millisecond sums for one day.
type DayTotals struct {
	WorkedMillis int64
	PausedMillis int64
	OpenSpan     bool // an entrada without its salida
}

// AggregateEvents folds the events of one day. Only closed entrada→salida
// spans count; pauses are subtracted from the span that contains them and a
// pause still open at salida ends there.
func AggregateEvents(events []timetrack.ClockEvent) DayTotals {
	var totals DayTotals
	var spanStart, pauseStart time.Time
	var spanPaused int64
	working, paused := false, false

	for _, ev := range sortedEvents(events) {
		switch ev.Type {
		case timetrack.EventEntrada:
			if working {
				continue
			}
			working, paused = true, false
			spanStart = ev.Timestamp
			spanPaused = 0
		case timetrack.EventPausaInicio:
			if working && !paused {
				paused = true
				pauseStart = ev.Timestamp
			}
		case timetrack.EventPausaFin:
			if working && paused {
				spanPaused += ev.Timestamp.Sub(pauseStart).Milliseconds()
				paused = false
			}
		case timetrack.EventSalida:
			if !working {
				continue
			}
			if paused {
				spanPaused += ev.Timestamp.Sub(pauseStart).Milliseconds()
				paused = false
			}
			worked := ev.Timestamp.Sub(spanStart).Milliseconds() - spanPaused
			if worked < 0 {
				worked = 0
			}
			totals.WorkedMillis += worked
			totals.PausedMillis += spanPaused
			working = false
		}
	}

	totals.OpenSpan = working
	return totals
}

// HoursFromMillis converts to hours rounded to 2 decimals for storage.
func HoursFromMillis(ms int64) decimal.Decimal {
	return decimal.NewFromInt(ms).Div(millisPerHourDecimal).Round(2)
}

// ComputeWorkedHours returns the cached value when present, otherwise folds
// the events. A nil day counts as zero.
func ComputeWorkedHours(day *timetrack.DayRecord) decimal.Decimal {
	if day == nil {
		return decimal.Zero
	}
	if day.WorkedHours != nil {
		return *day.WorkedHours
	}
	return HoursFromMillis(AggregateEvents(day.Events).WorkedMillis)
}

// ComputePausedHours mirrors ComputeWorkedHours for break time.
func ComputePausedHours(day *timetrack.DayRecord) decimal.Decimal {
	if day == nil {
		return decimal.Zero
	}
	if day.PausedHours != nil {
		return *day.PausedHours
	}
	return HoursFromMillis(AggregateEvents(day.Events).PausedMillis)
}

type sequenceState int

const (
	stateIdle sequenceState = iota
	stateWorking
	statePaused
)

// allowedNext is the clocking grammar:
// (entrada (pausa_inicio pausa_fin)* [pausa_inicio] salida)* with an optional open tail.
var allowedNext = map[sequenceState]map[timetrack.ClockEventType]sequenceState{
	stateIdle: {
		timetrack.EventEntrada: stateWorking,
	},
	stateWorking: {
		timetrack.EventPausaInicio: statePaused,
		timetrack.EventSalida:      stateIdle,
	},
	statePaused: {
		timetrack.EventPausaFin: stateWorking,
		timetrack.EventSalida:   stateIdle,
	},
}

// ValidateSequence checks that events, in timestamp order, follow the
// clocking grammar.
func ValidateSequence(events []timetrack.ClockEvent) error {
	_, err := walkSequence(sortedEvents(events))
	return err
}

// NextAllowed lists the event types that may be appended to the day.
func NextAllowed(events []timetrack.ClockEvent) []timetrack.ClockEventType {
	state, err := walkSequence(sortedEvents(events))
	if err != nil {
		return nil
	}
	next := make([]timetrack.ClockEventType, 0, 2)
	for _, t := range []timetrack.ClockEventType{
		timetrack.EventEntrada,
		timetrack.EventPausaInicio,
		timetrack.EventPausaFin,
		timetrack.EventSalida,
	} {
		if _, ok := allowedNext[state][t]; ok {
			next = append(next, t)
		}
	}
	return next
}

func walkSequence(events []timetrack.ClockEvent) (sequenceState, error) {
	state := stateIdle
	var prev *timetrack.ClockEvent
	for i := range events {
		ev := events[i]
		next, ok := allowedNext[state][ev.Type]
		if !ok {
			if prev == nil {
				return state, fmt.Errorf("%w: day cannot start with %s at %s",
					timetrack.ErrInvalidSequence, ev.Type, ev.Timestamp.Format("15:04"))
			}
			return state, fmt.Errorf("%w: %s at %s cannot follow %s at %s",
				timetrack.ErrInvalidSequence, ev.Type, ev.Timestamp.Format("15:04"),
				prev.Type, prev.Timestamp.Format("15:04"))
		}
		state = next
		prev = &events[i]
	}
	return state, nil
}

// sortedEvents returns a copy ordered by timestamp; ties keep input order.
func sortedEvents(events []timetrack.ClockEvent) []timetrack.ClockEvent {
	out := make([]timetrack.ClockEvent, len(events))
	copy(out, events)
	sortEventsInPlace(out)
	return out
}

func sortEventsInPlace(events []timetrack.ClockEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
