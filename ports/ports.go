// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/metergate/domain/stats"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// DailySnapshotStore persists the daily rollup table. The table is
// written in full on every save; there are no append semantics.
type DailySnapshotStore interface {
	// Load reads the persisted table. A missing or empty backing
	// store is valid and yields an empty table.
	Load(ctx context.Context) (map[string]stats.Counts, error)

	// Save replaces the persisted table with the given one.
	Save(ctx context.Context, table map[string]stats.Counts) error
}

// -----------------------------------------------------------------------------
// Service Ports
// -----------------------------------------------------------------------------

// Meter is the metering engine surface consumed by transport layers.
type Meter interface {
	// RecordUsage records one call. Non-blocking, fire-and-forget:
	// it never fails observably to the caller.
	RecordUsage(caller, model string, tokens int64)

	// UsageByCaller returns lifetime calls for a caller, optionally
	// narrowed to one model (model == "" means all models).
	UsageByCaller(caller, model string) int64

	// CallsInLast sums calls over the trailing duration.
	CallsInLast(d time.Duration) int64

	// TimeSeries returns zero-filled per-minute call and token
	// series spanning windowMinutes back from now, oldest first.
	TimeSeries(windowMinutes int) (calls, tokens []stats.TimePoint)

	// CallerStats summarizes lifetime usage for the given callers.
	CallerStats(callers []string) []stats.CallerStats

	// DailySummaries returns up to days most-recent data-bearing
	// daily rollups, newest first.
	DailySummaries(days int) []stats.DailySummary

	// RecentCalls snapshots the recent-call ring, oldest first.
	RecentCalls() []stats.CallRecord

	// Reset clears counters, the time series and the recent-call
	// ring. Persisted daily rollups are retained.
	Reset()

	// Cleanup evicts expired time-series buckets and daily records.
	// When force is false the run is skipped unless the cleanup
	// interval has elapsed.
	Cleanup(force bool)
}
