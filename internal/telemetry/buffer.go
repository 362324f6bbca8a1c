package telemetry

import "sync"

// EventBuffer maintains a bounded buffer of records for a specific radio.
type EventBuffer struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

// NewEventBuffer creates a new event buffer with the specified capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		records:  make([]Record, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a record, evicting the oldest past capacity.
func (b *EventBuffer) Add(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = append(b.records, rec)
	if len(b.records) > b.capacity {
		b.records = b.records[len(b.records)-b.capacity:]
	}
}

// After returns records with an ID greater than lastID.
func (b *EventBuffer) After(lastID int64) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Record
	for _, rec := range b.records {
		if rec.ID > lastID {
			result = append(result, rec)
		}
	}
	return result
}

// Capacity returns the buffer capacity.
func (b *EventBuffer) Capacity() int {
	return b.capacity
}

// Size returns the current buffer size.
func (b *EventBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}
