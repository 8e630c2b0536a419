package utils

import (
	"time"
)

// DayOf truncates a timestamp to midnight of its calendar day in the given location
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open interval [start, end) covering a calendar day
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayOf(day, loc)
	return start, start.AddDate(0, 0, 1)
}

// IsDayElapsed reports whether the calendar day of `day` has fully passed at `now`
// A day is elapsed once the next day's midnight has been reached
func IsDayElapsed(day time.Time, loc *time.Location, now time.Time) bool {
	_, end := DayBounds(day, loc)
	return !now.In(loc).Before(end)
}

// SameDay reports whether two timestamps fall on the same calendar day
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}

// DaysBetween counts calendar days from start to end inclusive
// Returns 0 if end is before start
func DaysBetween(start, end time.Time, loc *time.Location) int {
	s := DayOf(start, loc)
	e := DayOf(end, loc)
	if e.Before(s) {
		return 0
	}
	days := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}
