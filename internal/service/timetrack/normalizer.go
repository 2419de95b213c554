package timetrack

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/validator"
)

const dayKeyLayout = "2006-01-02"

// Accepted ISO 8601 date-time shapes. Layouts without an offset are read in
// the reference zone.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalizer turns raw date and time strings into canonical instants in the
// reference time zone of the records.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

// Location returns the reference time zone.
func (n Normalizer) Location() *time.Location {
	return n.loc
}

// NormalizeDate returns 00:00:00 of the referenced calendar day. This is the
// day key used to group events.
func (n Normalizer) NormalizeDate(input string) (time.Time, error) {
	s := strings.TrimSpace(input)

	if d, err := time.ParseInLocation(dayKeyLayout, s, n.loc); err == nil {
		return d, nil
	}

	t, ok := n.parseDateTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q", timetrack.ErrInvalidFormat, input)
	}
	return n.StartOfDay(t), nil
}

// NormalizeTime combines a clock time with referenceDate. A bare HH:mm is
// added to the reference day at 00:00; a full date-time keeps its wall clock
// and is re-anchored onto the reference day.
func (n Normalizer) NormalizeTime(input string, referenceDate time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	ref := referenceDate.In(n.loc)

	var hour, minute, second int
	if validator.IsValidClockTime(s) {
		layout := "15:04"
		if len(s) > len("15:04") {
			layout = "15:04:05"
		}
		clock, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: time %q", timetrack.ErrInvalidFormat, input)
		}
		hour, minute, second = clock.Clock()
	} else {
		t, ok := n.parseDateTime(s)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: time %q", timetrack.ErrInvalidFormat, input)
		}
		hour, minute, second = t.In(n.loc).Clock()
	}

	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, second, 0, n.loc), nil
}

// ParseInstant reads a full date-time without re-anchoring it.
func (n Normalizer) ParseInstant(input string) (time.Time, error) {
	t, ok := n.parseDateTime(strings.TrimSpace(input))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date-time %q", timetrack.ErrInvalidFormat, input)
	}
	return t.In(n.loc), nil
}

// StartOfDay truncates t to midnight of its calendar day in the reference zone.
func (n Normalizer) StartOfDay(t time.Time) time.Time {
	local := t.In(n.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
}

// DayKey renders the YYYY-MM-DD key of the day containing t.
func (n Normalizer) DayKey(t time.Time) string {
	return t.In(n.loc).Format(dayKeyLayout)
}

func (n Normalizer) parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
