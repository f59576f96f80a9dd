// Package week computes Monday-to-Monday leaderboard windows.
package week

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for week references.
const DateLayout = "2006-01-02"

// ErrInvalidReference is returned when a week reference cannot be parsed.
var ErrInvalidReference = errors.New("invalid week reference")

// Window is the half-open range [Start, End) covering one week.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartOfWeek returns local Monday 00:00 in loc on or before ref.
func StartOfWeek(ref time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := ref.In(loc)

	offset := int(local.Weekday()) - 1
	if local.Weekday() == time.Sunday {
		offset = 6
	}

	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// For returns the week window containing ref, computed in loc.
func For(ref time.Time, loc *time.Location) Window {
	start := StartOfWeek(ref, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the window one week earlier.
func (w Window) Previous() Window {
	return Window{Start: w.Start.AddDate(0, 0, -7), End: w.Start}
}

// Next returns the window one week later.
func (w Window) Next() Window {
	return Window{Start: w.End, End: w.End.AddDate(0, 0, 7)}
}

// IsCurrentOrFuture reports whether the window starts on or after the
// current real-time week. Clients must not navigate forward from such a window.
func (w Window) IsCurrentOrFuture(now time.Time) bool {
	current := StartOfWeek(now, w.Start.Location())
	return !w.Start.Before(current)
}

// Label formats the window start as a calendar date.
func (w Window) Label() string {
	return w.Start.Format(DateLayout)
}

// Reference identifies the week a caller asked for. It is either an instant
// or a calendar date without time-of-day.
type Reference struct {
	instant time.Time
	year    int
	month   time.Month
	day     int
	isDate  bool
}

// Now returns a reference to the given instant.
func Now(now time.Time) Reference {
	return Reference{instant: now}
}

// Date returns a reference to local midnight of the given calendar date.
func Date(year int, month time.Month, day int) Reference {
	return Reference{year: year, month: month, day: day, isDate: true}
}

// ParseReference parses an optional week reference. An empty string means now,
// "2006-01-02" is a calendar date and RFC 3339 is an absolute instant.
func ParseReference(s string, now time.Time) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Now(now), nil
	}

	if d, err := time.Parse(DateLayout, s); err == nil {
		return Date(d.Year(), d.Month(), d.Day()), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Now(t), nil
	}

	return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
}

// In resolves the reference to an instant in loc. A date reference becomes
// local midnight of that date.
func (r Reference) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if r.isDate {
		return time.Date(r.year, r.month, r.day, 0, 0, 0, 0, loc)
	}
	return r.instant.In(loc)
}

// Window returns the week containing the reference, computed in loc.
func (r Reference) Window(loc *time.Location) Window {
	return For(r.In(loc), loc)
}
