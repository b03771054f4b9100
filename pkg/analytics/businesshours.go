package analytics

import (
	"time"
)

// BusinessHours describes the daily service window used when measuring
// durations that should exclude nights and closed days.
type BusinessHours struct {
	// Days maps the weekdays the service operates.
	Days map[time.Weekday]bool

	// OpenHour and CloseHour bound the daily window (24h clock, CloseHour
	// exclusive).
	OpenHour  int
	CloseHour int

	// Location for interpreting timestamps. Nil means UTC.
	Location *time.Location
}

// DefaultBusinessHours returns Monday-Friday, 08:00-18:00 UTC.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Days: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		OpenHour:  8,
		CloseHour: 18,
	}
}

// Elapsed returns how much of the span [start, end] falls inside business
// hours. Returns 0 when end is not after start.
func (b BusinessHours) Elapsed(start, end time.Time) time.Duration {
	if !end.After(start) {
		return 0
	}

	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	start = start.In(loc)
	end = end.In(loc)

	var total time.Duration
	for day := startOfDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		if !b.Days[day.Weekday()] {
			continue
		}

		open := day.Add(time.Duration(b.OpenHour) * time.Hour)
		close := day.Add(time.Duration(b.CloseHour) * time.Hour)

		s := start
		if open.After(s) {
			s = open
		}
		e := end
		if close.Before(e) {
			e = close
		}
		if e.After(s) {
			total += e.Sub(s)
		}
	}

	return total
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
