package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentTodayAndYesterday(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{
		now.Add(-2 * time.Hour),        // today
		now.AddDate(0, 0, -1),          // yesterday
		now.AddDate(0, 0, -1).Add(-3 * time.Hour), // yesterday again
	}

	assert.Equal(t, 2, Current(times, now))
}

func TestCurrentGapReturnsZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{now.AddDate(0, 0, -2)} // two days ago only

	assert.Equal(t, 0, Current(times, now))
}

func TestCurrentEmpty(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, Current(nil, now))
	assert.Equal(t, 0, Current([]time.Time{{}}, now))
}

func TestCurrentLongRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	var times []time.Time
	for i := 0; i < 5; i++ {
		times = append(times, now.AddDate(0, 0, -i))
	}
	// A stray older quote after a gap must not extend the streak.
	times = append(times, now.AddDate(0, 0, -7))

	assert.Equal(t, 5, Current(times, now))
}

func TestToYesterdayCoveredByCurrent(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{now, now.AddDate(0, 0, -1)}

	streak, awaiting := ToYesterday(times, 2, now)
	assert.Equal(t, 0, streak)
	assert.False(t, awaiting)
}

func TestToYesterdayActive(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -2),
	}

	streak, awaiting := ToYesterday(times, 0, now)
	assert.Equal(t, 2, streak)
	assert.True(t, awaiting)
}

func TestToYesterdayGapBeforeYesterday(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{now.AddDate(0, 0, -2)} // two days ago only

	streak, awaiting := ToYesterday(times, 0, now)
	assert.Equal(t, 0, streak)
	assert.False(t, awaiting)
}

func TestToYesterdaySingleDayGapCase(t *testing.T) {
	// Quotes yesterday only: no current streak, but the yesterday walk
	// finds a one-day streak that a quote today would continue.
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	times := []time.Time{now.AddDate(0, 0, -1)}

	assert.Equal(t, 0, Current(times, now))
	streak, awaiting := ToYesterday(times, 0, now)
	assert.Equal(t, 1, streak)
	assert.True(t, awaiting)
}
