// Package streak computes consecutive-day quote streaks from timestamp
// lists. All functions are pure; the reference time is injected so tests
// can pin the calendar.
package streak

import "time"

const dayKeyFormat = "2006-01-02"

// dayKey returns the local calendar-day key for a timestamp.
func dayKey(t time.Time) string {
	return t.Local().Format(dayKeyFormat)
}

// daySet builds the set of distinct calendar days present in times.
func daySet(times []time.Time) map[string]struct{} {
	days := make(map[string]struct{}, len(times))
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		days[dayKey(t)] = struct{}{}
	}
	return days
}

// Current returns the number of consecutive days with at least one quote,
// ending today. Walks backward from now one day at a time and stops at the
// first missing day. Returns 0 when today itself has no quote.
func Current(times []time.Time, now time.Time) int {
	days := daySet(times)
	if len(days) == 0 {
		return 0
	}

	count := 0
	for cursor := now; ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := days[dayKey(cursor)]; !ok {
			break
		}
		count++
	}
	return count
}

// ToYesterday reports the streak that ended yesterday for a user who has
// not quoted today yet. When current > 0 today's streak already covers
// everything, so it returns (0, false). Otherwise it counts consecutive
// days backward starting from yesterday; awaitingToday is true when such
// a streak exists and logging a quote today would continue it.
func ToYesterday(times []time.Time, current int, now time.Time) (streak int, awaitingToday bool) {
	if current > 0 {
		return 0, false
	}

	days := daySet(times)
	if len(days) == 0 {
		return 0, false
	}

	for cursor := now.AddDate(0, 0, -1); ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := days[dayKey(cursor)]; !ok {
			break
		}
		streak++
	}
	return streak, streak > 0
}
