// Package capture keeps and records the events seen on an input.
package capture

import (
	"sync"
	"time"

	"github.com/james-see/midiplug/pkg/event"
)

// DefaultLogSize is the number of entries kept when no size is given
const DefaultLogSize = 256

// Entry is an event with its arrival time
type Entry struct {
	Time  time.Time   `json:"time"`
	Event event.Event `json:"-"`
}

// Log is a bounded, concurrency-safe ring of the most recent events.
// It implements plug.EventReceiver.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	total   uint64
	now     func() time.Time
}

// NewLog creates a log holding up to size entries
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{
		entries: make([]Entry, size),
		now:     time.Now,
	}
}

// EventReceived appends ev, evicting the oldest entry when full
func (l *Log) EventReceived(ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = Entry{Time: l.now(), Event: ev}
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.total++
	return nil
}

// Entries returns up to limit of the most recent entries, oldest first.
// A limit of zero or less returns everything kept.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		idx := (l.next - limit + i + len(l.entries)) % len(l.entries)
		result[i] = l.entries[idx]
	}
	return result
}

// Len returns the number of entries kept
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Total returns the number of events ever received
func (l *Log) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Reset empties the log
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.next = 0
	l.full = false
}
