package stats

import (
	"math"
	"time"
)

// Bucket key layouts. Both are fixed-width and zero-padded, so
// lexicographic comparison of keys is equivalent to chronological
// comparison of the times they encode.
const (
	minuteLayout = "2006-01-02 15:04:00"
	dayLayout    = "2006-01-02"
	labelLayout  = "15:04"
)

// MinuteKey truncates t to the minute and returns the bucket key.
func MinuteKey(t time.Time) string {
	return t.Format(minuteLayout)
}

// DayKey returns the calendar-day bucket key for t.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseDay parses a day bucket key back into a time.
func ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, key, time.Local)
}

// CallerRef returns the truncated display form of a caller identity.
// Full identities never leave the engine.
func CallerRef(caller string) string {
	if len(caller) > 8 {
		return caller[:8]
	}
	return caller
}

// UsagePercent reports calls against a daily limit, rounded to one
// decimal place. A zero or unset limit reports zero rather than
// dividing by it.
func UsagePercent(calls, dailyLimit int64) float64 {
	if dailyLimit <= 0 {
		return 0
	}
	pct := float64(calls) / float64(dailyLimit) * 100
	return math.Round(pct*10) / 10
}

// SeriesWindow builds zero-filled call and token series spanning
// windowMinutes back from now, inclusive. Minutes with no bucket get an
// explicit zero entry rather than being omitted.
// This is a PURE function - the bucket map is only read.
func SeriesWindow(buckets map[string]Counts, now time.Time, windowMinutes int) (calls, tokens []TimePoint) {
	if windowMinutes < 0 {
		windowMinutes = 0
	}
	calls = make([]TimePoint, 0, windowMinutes+1)
	tokens = make([]TimePoint, 0, windowMinutes+1)

	for i := windowMinutes; i >= 0; i-- {
		minute := now.Add(-time.Duration(i) * time.Minute)
		bucket := buckets[MinuteKey(minute)]
		label := minute.Format(labelLayout)

		calls = append(calls, TimePoint{Time: label, Value: bucket.Calls})
		tokens = append(tokens, TimePoint{Time: label, Value: bucket.Tokens})
	}
	return calls, tokens
}

// SumSince totals the calls in all buckets at or after the cutoff.
// This is a PURE function.
func SumSince(buckets map[string]Counts, cutoff time.Time) int64 {
	cutoffKey := MinuteKey(cutoff)
	var total int64
	for key, bucket := range buckets {
		if key >= cutoffKey {
			total += bucket.Calls
		}
	}
	return total
}
