package memory

import (
	"sync"

	"github.com/artpar/metergate/domain/stats"
)

// DefaultRecentCapacity bounds the recent-call ring when no capacity
// is configured.
const DefaultRecentCapacity = 100

// RecentCallsRing is a fixed-capacity FIFO of the most recent call
// records, kept purely for display. When full, the oldest record is
// evicted before inserting.
type RecentCallsRing struct {
	mu      sync.Mutex
	records []stats.CallRecord
	head    int // index of the oldest record
	size    int
}

// NewRecentCallsRing creates a ring with the given capacity.
// Non-positive capacities fall back to DefaultRecentCapacity.
func NewRecentCallsRing(capacity int) *RecentCallsRing {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentCallsRing{
		records: make([]stats.CallRecord, capacity),
	}
}

// Push inserts a record, evicting the oldest when the ring is full.
func (r *RecentCallsRing) Push(record stats.CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.size) % len(r.records)
	r.records[tail] = record

	if r.size < len(r.records) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.records)
	}
}

// Snapshot returns the current records, oldest first.
func (r *RecentCallsRing) Snapshot() []stats.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]stats.CallRecord, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.records[(r.head+i)%len(r.records)]
	}
	return out
}

// Len returns the number of live records.
func (r *RecentCallsRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Reset empties the ring.
func (r *RecentCallsRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}
