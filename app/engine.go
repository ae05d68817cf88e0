// Package app implements the usage-metering engine: the non-blocking
// ingest path, the background aggregator that applies batched updates
// to the stores, and the periodic flush/cleanup schedulers.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/metergate/adapters/memory"
	"github.com/artpar/metergate/adapters/metrics"
	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine tuning knobs. Zero values fall back to these defaults.
const (
	DefaultBatchInterval   = time.Second
	DefaultFlushInterval   = 5 * time.Minute
	DefaultCleanupInterval = time.Hour
	DefaultQueueCapacity   = 4096
	DefaultRetentionDays   = 90
	DefaultSeriesRetention = 24 * time.Hour

	// maxBatch caps how many events one aggregator pass applies
	// before taking the store locks.
	maxBatch = 512

	// batchBackoff is how long the aggregator pauses after a failed
	// batch before resuming.
	batchBackoff = time.Second
)

// Config holds engine tuning. All fields are optional.
type Config struct {
	// Background enables the ingest queue and aggregator goroutine.
	// When false, RecordUsage applies updates synchronously (tests,
	// one-shot tools).
	Background bool

	BatchInterval   time.Duration
	FlushInterval   time.Duration
	CleanupInterval time.Duration
	QueueCapacity   int
	RecentCapacity  int
	DailyLimit      int64 // per-caller daily limit for percentage reporting
	RetentionDays   int
	SeriesRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchInterval <= 0 {
		c.BatchInterval = DefaultBatchInterval
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.RecentCapacity <= 0 {
		c.RecentCapacity = memory.DefaultRecentCapacity
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.SeriesRetention <= 0 {
		c.SeriesRetention = DefaultSeriesRetention
	}
	return c
}

// Engine is the usage-metering service. Construct with NewEngine,
// stop with Close. All query methods are safe for concurrent use and
// never fail: a fresh engine reports well-formed zero values.
type Engine struct {
	cfg Config

	counters *memory.CounterStore
	series   *memory.TimeSeriesStore
	recent   *memory.RecentCallsRing
	daily    *DailyRollup

	queue   chan stats.Event
	clock   ports.Clock
	logger  zerolog.Logger
	metrics *metrics.Collector // may be nil

	dailyLimit  atomic.Int64
	dropped     atomic.Uint64
	lastCleanup atomic.Int64 // unix seconds

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEngine wires the stores and, when cfg.Background is set, starts
// the aggregator and the flush and cleanup schedulers.
func NewEngine(cfg Config, store ports.DailySnapshotStore, clk ports.Clock, logger zerolog.Logger, collector *metrics.Collector) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:      cfg,
		counters: memory.NewCounterStore(),
		series:   memory.NewTimeSeriesStore(clk),
		recent:   memory.NewRecentCallsRing(cfg.RecentCapacity),
		daily:    NewDailyRollup(store, clk, logger, collector),
		queue:    make(chan stats.Event, cfg.QueueCapacity),
		clock:    clk,
		logger:   logger,
		metrics:  collector,
		stopCh:   make(chan struct{}),
	}
	e.dailyLimit.Store(cfg.DailyLimit)
	e.lastCleanup.Store(clk.Now().Unix())

	// Tolerates a missing or corrupt snapshot; already logged.
	e.daily.Load(context.Background())

	if cfg.Background {
		e.wg.Add(3)
		go e.aggregate()
		go e.flushLoop()
		go e.cleanupLoop()
	}

	return e
}

// SetDailyLimit changes the per-caller daily limit used for
// percentage reporting. Safe to call while running (config hot
// reload).
func (e *Engine) SetDailyLimit(limit int64) {
	e.dailyLimit.Store(limit)
}

// RecordUsage records one call. It never blocks and never fails
// observably: when the queue is full the event is dropped and
// counted.
func (e *Engine) RecordUsage(caller, model string, tokens int64) {
	ev := stats.NewEvent(caller, model, tokens, e.clock.Now())

	if !e.cfg.Background {
		e.apply([]stats.Event{ev})
		return
	}

	select {
	case e.queue <- ev:
		if e.metrics != nil {
			e.metrics.EventsEnqueued.Inc()
		}
	default:
		n := e.dropped.Add(1)
		if e.metrics != nil {
			e.metrics.EventsDropped.Inc()
		}
		if n == 1 || n%1000 == 0 {
			e.logger.Warn().Uint64("dropped_total", n).Msg("ingest queue full, dropping usage event")
		}
	}
}

// aggregate is the single consumer of the ingest queue. It applies
// batches when the batch interval elapses or a batch fills, and on
// stop it drains what is already queued before returning.
func (e *Engine) aggregate() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.BatchInterval)
	defer ticker.Stop()

	batch := make([]stats.Event, 0, maxBatch)

	for {
		select {
		case ev := <-e.queue:
			batch = append(batch, ev)
			if len(batch) >= maxBatch {
				e.apply(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if e.metrics != nil {
				e.metrics.QueueDepth.Set(float64(len(e.queue)))
			}
			if len(batch) > 0 {
				e.apply(batch)
				batch = batch[:0]
			}

		case <-e.stopCh:
			for {
				select {
				case ev := <-e.queue:
					batch = append(batch, ev)
				default:
					if len(batch) > 0 {
						e.apply(batch)
					}
					return
				}
			}
		}
	}
}

// apply updates every store from one batch. A failure abandons the
// remainder of the batch but never the aggregator: the loop logs,
// backs off briefly and resumes. No I/O happens here.
func (e *Engine) apply(batch []stats.Event) {
	defer func() {
		if r := recover(); r != nil {
			if e.metrics != nil {
				e.metrics.BatchFailures.Inc()
			}
			e.logger.Error().Interface("panic", r).Int("batch", len(batch)).
				Msg("applying usage batch failed, backing off")
			time.Sleep(batchBackoff)
		}
	}()

	e.counters.RecordBatch(batch)
	e.series.RecordBatch(batch)
	for _, ev := range batch {
		e.recent.Push(stats.CallRecord{
			ID:         uuid.NewString(),
			Caller:     stats.CallerRef(ev.Caller),
			Model:      ev.Model,
			Tokens:     ev.Tokens,
			ObservedAt: ev.ObservedAt,
		})
		e.daily.Record(ev)
	}

	if e.metrics != nil {
		e.metrics.EventsApplied.Add(float64(len(batch)))
		e.metrics.BatchSize.Observe(float64(len(batch)))
	}
}

// flushLoop periodically persists the daily rollup table.
func (e *Engine) flushLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			e.daily.Flush(ctx)
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// cleanupLoop periodically evicts expired buckets and daily records.
func (e *Engine) cleanupLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Cleanup(true)
		case <-e.stopCh:
			return
		}
	}
}

// UsageByCaller returns lifetime calls for a caller, optionally
// narrowed to one model.
func (e *Engine) UsageByCaller(caller, model string) int64 {
	return e.counters.Usage(caller, model)
}

// CallsInLast sums calls over the trailing duration.
func (e *Engine) CallsInLast(d time.Duration) int64 {
	return e.series.CallsSince(d)
}

// TimeSeries returns zero-filled call and token series spanning
// windowMinutes back from now, oldest first.
func (e *Engine) TimeSeries(windowMinutes int) (calls, tokens []stats.TimePoint) {
	return e.series.Series(windowMinutes)
}

// CallerStats summarizes lifetime usage for the given callers.
func (e *Engine) CallerStats(callers []string) []stats.CallerStats {
	return e.counters.Stats(callers, e.dailyLimit.Load())
}

// DailySummaries returns up to days most-recent data-bearing daily
// rollups, newest first. Today's not-yet-flushed delta is merged in
// before reading.
func (e *Engine) DailySummaries(days int) []stats.DailySummary {
	return e.daily.Summaries(days)
}

// RecentCalls snapshots the recent-call ring, oldest first.
func (e *Engine) RecentCalls() []stats.CallRecord {
	return e.recent.Snapshot()
}

// Dropped reports how many events have been dropped on queue
// overflow since start.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// Reset clears counters, the time series and the recent-call ring.
// The daily accumulator is flushed first, so persisted rollups for
// prior dates are unaffected.
func (e *Engine) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	e.daily.Flush(ctx)

	e.counters.Reset()
	e.series.Reset()
	e.recent.Reset()

	e.logger.Info().Msg("usage statistics reset, daily rollups retained")
}

// Cleanup evicts time-series buckets older than the series retention
// and daily records older than the retention window, then schedules a
// persistence of the post-eviction table. Unless forced, runs are
// rate-limited to the cleanup interval. Idempotent.
func (e *Engine) Cleanup(force bool) {
	now := e.clock.Now()

	if !force {
		last := time.Unix(e.lastCleanup.Load(), 0)
		if now.Sub(last) < e.cfg.CleanupInterval {
			return
		}
	}

	e.series.Evict(now.Add(-e.cfg.SeriesRetention))
	e.daily.Evict(stats.DayKey(now.AddDate(0, 0, -e.cfg.RetentionDays)))
	e.daily.FlushAsync()

	e.lastCleanup.Store(now.Unix())
	if e.metrics != nil {
		e.metrics.CleanupRuns.Inc()
	}
	e.logger.Debug().Msg("cleanup pass complete")
}

// Drain blocks until every event enqueued so far has been applied.
// Intended for tests and shutdown paths, not the request path.
func (e *Engine) Drain() {
	if !e.cfg.Background {
		return
	}
	for len(e.queue) > 0 {
		time.Sleep(time.Millisecond)
	}
	// One batch interval so the aggregator flushes its partial batch.
	time.Sleep(e.cfg.BatchInterval + 10*time.Millisecond)
}

// Close stops the background loops, lets the in-flight batch finish,
// and performs a final synchronous flush of the daily rollup.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.cfg.Background {
			close(e.stopCh)
			e.wg.Wait()
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err = e.daily.Flush(ctx)
		e.daily.Wait()
	})
	return err
}

// Ensure interface compliance.
var _ ports.Meter = (*Engine)(nil)
