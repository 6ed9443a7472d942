// Package buffer keeps the most recent logged contacts for the QSO list and
// the SHOW/QSO command. Each slot is an atomic pointer so the UI reads a
// complete record or the previous one, never a half-written entry.
package buffer

import (
	"sync/atomic"

	"qsotrainer/stats"
)

// RingBuffer is a fixed-size, lock-free store of recent QSO records.
type RingBuffer struct {
	slots    []atomic.Pointer[stats.QSORecord]
	capacity int
	total    atomic.Uint64
}

// NewRingBuffer allocates a buffer retaining capacity records.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		slots:    make([]atomic.Pointer[stats.QSORecord], capacity),
		capacity: capacity,
	}
}

// Add stores a copy of rec and stamps it with a monotonic ID, which readers
// use to skip slots overwritten after wraparound.
func (rb *RingBuffer) Add(rec stats.QSORecord) uint64 {
	id := rb.total.Add(1)
	rec.ID = id
	rb.slots[(id-1)%uint64(rb.capacity)].Store(&rec)
	return id
}

// RecordQSO satisfies the engine's QSO observer.
func (rb *RingBuffer) RecordQSO(rec stats.QSORecord) {
	rb.Add(rec)
}

// GetRecent returns up to n records, newest first.
func (rb *RingBuffer) GetRecent(n int) []stats.QSORecord {
	total := rb.total.Load()
	available := int(min(total, uint64(rb.capacity)))
	n = min(n, available)
	if n <= 0 {
		return []stats.QSORecord{}
	}
	result := make([]stats.QSORecord, 0, n)
	floor := total - uint64(available)
	for idx := total; idx > floor && len(result) < n; {
		idx--
		if rec := rb.slots[idx%uint64(rb.capacity)].Load(); rec != nil && rec.ID == idx+1 {
			result = append(result, *rec)
		}
	}
	return result
}

// GetCount returns the number of records ever added.
func (rb *RingBuffer) GetCount() int {
	return int(rb.total.Load())
}
