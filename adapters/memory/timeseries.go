package memory

import (
	"sync"
	"time"

	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/ports"
)

// TimeSeriesStore keeps a rolling window of per-minute call/token
// buckets. Entries older than the retention window are removed by
// Evict; readers always see explicit zeros for empty minutes.
type TimeSeriesStore struct {
	mu      sync.RWMutex
	buckets map[string]stats.Counts
	clock   ports.Clock
}

// NewTimeSeriesStore creates an empty time-series store.
func NewTimeSeriesStore(clk ports.Clock) *TimeSeriesStore {
	return &TimeSeriesStore{
		buckets: make(map[string]stats.Counts),
		clock:   clk,
	}
}

// RecordBatch increments the bucket for each event's minute.
func (s *TimeSeriesStore) RecordBatch(events []stats.Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		key := stats.MinuteKey(e.ObservedAt)
		s.buckets[key] = s.buckets[key].Add(stats.Counts{Calls: 1, Tokens: e.Tokens})
	}
}

// CallsSince sums calls in all buckets at or after now-d.
func (s *TimeSeriesStore) CallsSince(d time.Duration) int64 {
	cutoff := s.clock.Now().Add(-d)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return stats.SumSince(s.buckets, cutoff)
}

// Series returns zero-filled call and token series spanning
// windowMinutes back from now inclusive, oldest first.
func (s *TimeSeriesStore) Series(windowMinutes int) (calls, tokens []stats.TimePoint) {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return stats.SeriesWindow(s.buckets, now, windowMinutes)
}

// Evict removes buckets strictly older than the cutoff. The bucket
// containing the cutoff minute itself is retained.
func (s *TimeSeriesStore) Evict(olderThan time.Time) {
	cutoffKey := stats.MinuteKey(olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.buckets {
		if key < cutoffKey {
			delete(s.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (s *TimeSeriesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

// Reset clears all buckets.
func (s *TimeSeriesStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]stats.Counts)
}
