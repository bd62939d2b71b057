package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYorkLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestEquityCalendarSkipsWeekendsAndHolidays(t *testing.T) {
	loc := newYorkLoc(t)
	cal := NewEquityCalendar(loc, []string{"2024-01-15"}) // MLK day

	// 2024-01-12 is a Friday, 2024-01-16 a Tuesday.
	start := time.Date(2024, 1, 12, 0, 0, 0, 0, loc)
	end := time.Date(2024, 1, 16, 0, 0, 0, 0, loc)
	sessions, err := cal.SessionsInRange(start, end)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2024-01-12", sessions[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-16", sessions[1].Date.Format("2006-01-02"))

	open := sessions[0].Open
	assert.Equal(t, 9, open.Hour())
	assert.Equal(t, 30, open.Minute())
	assert.Equal(t, 16, sessions[0].Close.Hour())
}

func TestEquityCalendarRejectsReversedRange(t *testing.T) {
	cal := NewEquityCalendar(time.UTC, nil)
	_, err := cal.SessionsInRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestContinuousCalendarEveryDay(t *testing.T) {
	cal := NewContinuousCalendar()
	sessions, err := cal.SessionsInRange(
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), // Friday
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), // Monday
	)
	require.NoError(t, err)
	assert.Len(t, sessions, 4) // weekend included
	assert.Equal(t, sessions[0].Date, sessions[0].Open)
	assert.Equal(t, sessions[0].Date.Add(24*time.Hour-time.Millisecond), sessions[0].Close)
}

func TestSessionsBeforeWalksBackwards(t *testing.T) {
	loc := newYorkLoc(t)
	cal := NewEquityCalendar(loc, []string{"2024-01-15"})

	// Start on Wednesday 2024-01-17; the 5 sessions before it must skip the
	// weekend and the holiday Monday.
	start := time.Date(2024, 1, 17, 0, 0, 0, 0, loc)
	sessions, err := SessionsBefore(cal, start, 5)
	require.NoError(t, err)
	require.Len(t, sessions, 5)

	var got []string
	for _, s := range sessions {
		got = append(got, s.Date.Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12", "2024-01-16"}, got)
}

func TestSessionsBeforeExcludesStartDate(t *testing.T) {
	cal := NewContinuousCalendar()
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	sessions, err := SessionsBefore(cal, start, 3)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "2024-03-09", sessions[2].Date.Format("2006-01-02"))
}

func TestBufferRangesSplitsBySessionCount(t *testing.T) {
	cal := NewContinuousCalendar()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC) // 25 sessions

	ranges, err := BufferRanges(cal, start, end, 10)
	require.NoError(t, err)
	require.Len(t, ranges, 3)
	assert.Equal(t, "2024-01-01..2024-01-10", ranges[0].String())
	assert.Equal(t, "2024-01-11..2024-01-20", ranges[1].String())
	assert.Equal(t, "2024-01-21..2024-01-25", ranges[2].String())
}

func TestBufferRangesEmptyWindow(t *testing.T) {
	loc := newYorkLoc(t)
	cal := NewEquityCalendar(loc, nil)
	// A weekend-only span yields no sessions and therefore no ranges.
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, loc)
	end := time.Date(2024, 1, 7, 0, 0, 0, 0, loc)
	ranges, err := BufferRanges(cal, start, end, 10)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}
