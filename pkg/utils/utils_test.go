package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayOf(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2025, 6, 15, 23, 45, 12, 0, loc)

	day := DayOf(ts, loc)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, loc), day)

	// Truncation follows the target location, not the timestamp's own zone
	east := time.FixedZone("UTC+8", 8*3600)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, east), DayOf(ts, east))
}

func TestDayBounds(t *testing.T) {
	loc := time.UTC
	start, end := DayBounds(time.Date(2025, 6, 15, 13, 0, 0, 0, loc), loc)

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, loc), end)
}

func TestIsDayElapsed(t *testing.T) {
	loc := time.UTC
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)

	assert.False(t, IsDayElapsed(day, loc, time.Date(2025, 6, 15, 23, 59, 59, 0, loc)))
	assert.True(t, IsDayElapsed(day, loc, time.Date(2025, 6, 16, 0, 0, 0, 0, loc)))
	assert.True(t, IsDayElapsed(day, loc, time.Date(2025, 6, 17, 10, 0, 0, 0, loc)))
}

func TestSameDay(t *testing.T) {
	loc := time.UTC
	a := time.Date(2025, 6, 15, 0, 1, 0, 0, loc)
	b := time.Date(2025, 6, 15, 23, 59, 0, 0, loc)
	c := time.Date(2025, 6, 16, 0, 0, 0, 0, loc)

	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(b, c, loc))
}

func TestDaysBetween(t *testing.T) {
	loc := time.UTC
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, loc)

	assert.Equal(t, 1, DaysBetween(start, start, loc))
	assert.Equal(t, 30, DaysBetween(start, time.Date(2025, 6, 30, 1, 0, 0, 0, loc), loc))
	assert.Equal(t, 0, DaysBetween(start, start.AddDate(0, 0, -1), loc))
}
