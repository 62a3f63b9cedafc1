// Package telemetry collects client-side observability records for outbound
// API calls: per-request timings and failures. Records are kept in bounded
// in-memory ring buffers consumed by the diagnostics view; they never drive
// control flow.
package telemetry

import (
	"sync"
	"time"
)

// Default buffer capacities for the two record streams.
const (
	DefaultPerformanceCap = 100
	DefaultErrorCap       = 50
)

// Record describes a single observed request.
//
// Status is zero when no response was received (transport failure).
// Message is empty for performance records and carries the normalized
// failure text for error records.
type Record struct {
	URL       string
	Method    string
	Status    int
	Elapsed   time.Duration
	Timestamp time.Time
	RequestID string
	Message   string
}

// Buffer is a bounded FIFO of records. Once full, appending drops the
// oldest record. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	cap     int
	records []Record
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{cap: capacity}
}

func (b *Buffer) Append(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == b.cap {
		copy(b.records, b.records[1:])
		b.records = b.records[:b.cap-1]
	}
	b.records = append(b.records, r)
}

// Snapshot returns a copy of the buffered records, oldest first.
func (b *Buffer) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Recorder groups the two buffers the request pipeline writes to.
type Recorder struct {
	Performance *Buffer
	Errors      *Buffer
}

// NewRecorder returns a Recorder with the default buffer capacities.
func NewRecorder() *Recorder {
	return &Recorder{
		Performance: NewBuffer(DefaultPerformanceCap),
		Errors:      NewBuffer(DefaultErrorCap),
	}
}
