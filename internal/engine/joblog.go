package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one line of a job's in-memory log.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"` // "info", "warn", "error"
	SessionID uuid.UUID `json:"sessionId,omitempty"`
	GroupID   uuid.UUID `json:"groupId,omitempty"`
	Group     string    `json:"group,omitempty"`
	Message   string    `json:"message"`
}

// logRing is a bounded append-only log. Appends from concurrent drivers
// are serialised with trimming so the observable length never exceeds max.
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
	trimTo  int
}

func newLogRing(max, trimTo int) *logRing {
	return &logRing{max: max, trimTo: trimTo}
}

func (l *logRing) append(e LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		copy(l.entries, l.entries[len(l.entries)-l.trimTo:])
		l.entries = l.entries[:l.trimTo]
	}
	l.mu.Unlock()
}

// tail returns a copy of the last n entries (all of them when n <= 0).
func (l *logRing) tail(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *logRing) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
