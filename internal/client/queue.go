package client

import (
	"time"

	"bustrack/internal/domain/geo"
)

// QueuedSample is a location sample captured while disconnected.
type QueuedSample struct {
	geo.Sample
	Queued     bool
	EnqueuedAt time.Time
}

// offlineQueue is a bounded FIFO of pending samples. When full, the oldest
// entry is evicted so memory stays bounded under prolonged disconnection.
type offlineQueue struct {
	capacity int
	items    []QueuedSample
	evicted  uint64
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{capacity: capacity}
}

func (q *offlineQueue) push(s geo.Sample) {
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.evicted++
	}
	q.items = append(q.items, QueuedSample{
		Sample:     s,
		Queued:     true,
		EnqueuedAt: time.Now().UTC(),
	})
}

// drain hands samples to sink oldest-first. A false return from sink means
// the transport dropped again; the sample is put back at the head and the
// drain stops so temporal order is preserved for the next flush.
func (q *offlineQueue) drain(sink func(QueuedSample) bool) int {
	flushed := 0
	for len(q.items) > 0 {
		head := q.items[0]
		q.items = q.items[1:]
		if !sink(head) {
			q.items = append([]QueuedSample{head}, q.items...)
			break
		}
		flushed++
	}
	return flushed
}

func (q *offlineQueue) len() int { return len(q.items) }
