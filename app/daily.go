package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/metergate/adapters/metrics"
	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/ports"
	"github.com/rs/zerolog"
)

// saveTimeout bounds a single snapshot write.
const saveTimeout = 30 * time.Second

// DailyRollup owns the two representations of per-day usage: a
// volatile accumulator holding deltas not yet flushed, and an
// in-memory mirror of the persisted table. The invariant is that
// accum[date] + table[date] equals the true lifetime count for that
// date; a flush moves the accumulator into the table exactly once.
type DailyRollup struct {
	mu    sync.Mutex
	accum map[string]stats.Counts
	table map[string]stats.Counts

	store   ports.DailySnapshotStore
	clock   ports.Clock
	logger  zerolog.Logger
	metrics *metrics.Collector // may be nil

	saves sync.WaitGroup
}

// NewDailyRollup creates a rollup over the given snapshot store.
func NewDailyRollup(store ports.DailySnapshotStore, clk ports.Clock, logger zerolog.Logger, collector *metrics.Collector) *DailyRollup {
	return &DailyRollup{
		accum:   make(map[string]stats.Counts),
		table:   make(map[string]stats.Counts),
		store:   store,
		clock:   clk,
		logger:  logger,
		metrics: collector,
	}
}

// Load reads the persisted table at startup. A failed load leaves the
// rollup running on an empty table; the next flush writes a fresh one.
func (d *DailyRollup) Load(ctx context.Context) error {
	table, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("loading daily stats failed, starting from an empty table")
		table = make(map[string]stats.Counts)
	} else {
		d.logger.Info().Int("days", len(table)).Msg("daily stats loaded")
	}

	d.mu.Lock()
	d.table = table
	d.mu.Unlock()
	return err
}

// Record accumulates one event into its day's delta.
func (d *DailyRollup) Record(e stats.Event) {
	day := stats.DayKey(e.ObservedAt)

	d.mu.Lock()
	d.accum[day] = d.accum[day].Add(stats.Counts{Calls: 1, Tokens: e.Tokens})
	d.mu.Unlock()
}

// Merge adds a delta directly into the persisted record for date,
// creating it if absent. The change reaches disk on the next flush.
func (d *DailyRollup) Merge(date string, delta stats.Counts) {
	d.mu.Lock()
	d.table[date] = d.table[date].Add(delta)
	d.mu.Unlock()
}

// mergeAccumLocked folds the accumulator into the table and clears it.
// Caller holds d.mu.
func (d *DailyRollup) mergeAccumLocked() {
	for date, delta := range d.accum {
		if delta.IsZero() {
			continue
		}
		d.table[date] = d.table[date].Add(delta)
	}
	clear(d.accum)
}

// snapshot merges the accumulator and returns a copy of the table for
// persistence or reading. The copy is taken so the store write happens
// outside the lock.
func (d *DailyRollup) snapshot() map[string]stats.Counts {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mergeAccumLocked()
	out := make(map[string]stats.Counts, len(d.table))
	for date, c := range d.table {
		out[date] = c
	}
	return out
}

// Flush synchronously persists the full table. On failure the merged
// state stays in memory and is retried on the next cycle.
func (d *DailyRollup) Flush(ctx context.Context) error {
	snap := d.snapshot()

	if d.metrics != nil {
		d.metrics.FlushTotal.Inc()
	}
	if err := d.store.Save(ctx, snap); err != nil {
		if d.metrics != nil {
			d.metrics.FlushErrors.Inc()
		}
		d.logger.Error().Err(err).Msg("saving daily stats failed, will retry next cycle")
		return err
	}

	d.logger.Debug().Int("days", len(snap)).Msg("daily stats saved")
	return nil
}

// FlushAsync schedules persistence on a detached goroutine so no
// caller path waits on I/O. Close waits for in-flight saves.
func (d *DailyRollup) FlushAsync() {
	d.saves.Add(1)
	go func() {
		defer d.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		d.Flush(ctx)
	}()
}

// Summaries returns up to n most-recent days that contain data, newest
// first, limited to dates within n days of now. An empty table yields a
// single zero entry for today so readers always see a well-formed
// result.
//
// Reading merges the accumulator first so today's partial day is
// visible, and schedules an asynchronous save of the merged table;
// the read itself never waits on I/O.
func (d *DailyRollup) Summaries(n int) []stats.DailySummary {
	now := d.clock.Now()
	snap := d.snapshot()
	d.FlushAsync()

	if len(snap) == 0 {
		return []stats.DailySummary{{Date: stats.DayKey(now), Calls: 0, Tokens: 0}}
	}

	dates := make([]string, 0, len(snap))
	for date := range snap {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	oldest := stats.DayKey(now.AddDate(0, 0, -n))
	out := make([]stats.DailySummary, 0, n)
	for _, date := range dates {
		if date < oldest {
			continue
		}
		out = append(out, stats.DailySummary{
			Date:   date,
			Calls:  snap[date].Calls,
			Tokens: snap[date].Tokens,
		})
		if len(out) >= n {
			break
		}
	}
	return out
}

// Evict removes persisted records with dates strictly before the
// cutoff day key.
func (d *DailyRollup) Evict(beforeDate string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for date := range d.table {
		if date < beforeDate {
			delete(d.table, date)
		}
	}
	for date := range d.accum {
		if date < beforeDate {
			delete(d.accum, date)
		}
	}
}

// Wait blocks until all detached saves have finished.
func (d *DailyRollup) Wait() {
	d.saves.Wait()
}
