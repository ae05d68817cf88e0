// Package stats provides usage metering value types and pure helper
// functions. All functions are pure - no side effects.
package stats

import "time"

// Event represents a single metered API call (immutable value type).
// Events are created by the request path and consumed exactly once by
// the background aggregator.
type Event struct {
	Caller     string
	Model      string
	Tokens     int64
	ObservedAt time.Time
}

// NewEvent creates an event for a call observed at the given time.
// Negative token counts are clamped to zero.
func NewEvent(caller, model string, tokens int64, observedAt time.Time) Event {
	if tokens < 0 {
		tokens = 0
	}
	return Event{
		Caller:     caller,
		Model:      model,
		Tokens:     tokens,
		ObservedAt: observedAt,
	}
}

// Counts is a call/token pair (value type). The zero value is a valid
// empty count.
type Counts struct {
	Calls  int64 `json:"calls"`
	Tokens int64 `json:"tokens"`
}

// Add returns c with another count folded in.
func (c Counts) Add(other Counts) Counts {
	c.Calls += other.Calls
	c.Tokens += other.Tokens
	return c
}

// IsZero reports whether the count is empty.
func (c Counts) IsZero() bool {
	return c.Calls == 0 && c.Tokens == 0
}

// CallRecord is a display-only record of a recent call. It is bounded
// to a fixed-capacity ring and is not authoritative for any aggregate.
type CallRecord struct {
	ID         string    `json:"id"`
	Caller     string    `json:"caller"`
	Model      string    `json:"model"`
	Tokens     int64     `json:"tokens"`
	ObservedAt time.Time `json:"observed_at"`
}

// TimePoint is one minute of a time series.
type TimePoint struct {
	Time  string `json:"time"`
	Value int64  `json:"value"`
}

// DailySummary is one day of rolled-up usage.
type DailySummary struct {
	Date   string `json:"date"`
	Calls  int64  `json:"calls"`
	Tokens int64  `json:"tokens"`
}

// CallerStats summarizes one caller's lifetime usage.
type CallerStats struct {
	Caller       string            `json:"api_key"`
	Calls        int64             `json:"calls_24h"`
	TotalTokens  int64             `json:"total_tokens"`
	UsagePercent float64           `json:"usage_percent"`
	ModelStats   map[string]Counts `json:"model_stats"`
}
