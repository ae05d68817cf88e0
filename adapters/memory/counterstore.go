// Package memory provides the in-memory stores behind the metering
// engine. Each store guards its own disjoint partition of state with
// its own lock; no state is shared between stores.
package memory

import (
	"sync"

	"github.com/artpar/metergate/domain/stats"
)

// CounterStore holds lifetime call/token counters keyed by caller, by
// model, and by (caller, model). Counters only grow until an explicit
// Reset.
type CounterStore struct {
	mu      sync.RWMutex
	callers map[string]stats.Counts
	models  map[string]stats.Counts
	cross   map[string]map[string]stats.Counts // caller -> model -> counts
}

// NewCounterStore creates an empty counter store.
func NewCounterStore() *CounterStore {
	s := &CounterStore{}
	s.init()
	return s
}

func (s *CounterStore) init() {
	s.callers = make(map[string]stats.Counts)
	s.models = make(map[string]stats.Counts)
	s.cross = make(map[string]map[string]stats.Counts)
}

// RecordBatch applies a batch of events to all three counter families
// under one lock acquisition.
func (s *CounterStore) RecordBatch(events []stats.Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		delta := stats.Counts{Calls: 1, Tokens: e.Tokens}

		s.callers[e.Caller] = s.callers[e.Caller].Add(delta)
		s.models[e.Model] = s.models[e.Model].Add(delta)

		perModel := s.cross[e.Caller]
		if perModel == nil {
			perModel = make(map[string]stats.Counts)
			s.cross[e.Caller] = perModel
		}
		perModel[e.Model] = perModel[e.Model].Add(delta)
	}
}

// Usage returns lifetime calls for a caller. A non-empty model narrows
// the count to that model. Unknown callers and models report zero.
func (s *CounterStore) Usage(caller, model string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if model != "" {
		return s.cross[caller][model].Calls
	}
	return s.callers[caller].Calls
}

// Stats summarizes lifetime usage for the given callers. usage_percent
// is computed against dailyLimit; a zero limit reports zero.
func (s *CounterStore) Stats(callers []string, dailyLimit int64) []stats.CallerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]stats.CallerStats, 0, len(callers))
	for _, caller := range callers {
		total := s.callers[caller]

		perModel := make(map[string]stats.Counts, len(s.cross[caller]))
		for model, counts := range s.cross[caller] {
			perModel[model] = counts
		}

		out = append(out, stats.CallerStats{
			Caller:       stats.CallerRef(caller),
			Calls:        total.Calls,
			TotalTokens:  total.Tokens,
			UsagePercent: stats.UsagePercent(total.Calls, dailyLimit),
			ModelStats:   perModel,
		})
	}
	return out
}

// Totals returns the sums across all callers, all models, and all
// (caller, model) pairs. The three must agree; divergence means a
// counter family missed an update.
func (s *CounterStore) Totals() (byCaller, byModel, byCross stats.Counts) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.callers {
		byCaller = byCaller.Add(c)
	}
	for _, c := range s.models {
		byModel = byModel.Add(c)
	}
	for _, perModel := range s.cross {
		for _, c := range perModel {
			byCross = byCross.Add(c)
		}
	}
	return byCaller, byModel, byCross
}

// Reset clears every counter family.
func (s *CounterStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
}
