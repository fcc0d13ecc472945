package contradiction

import (
	"sync"
	"time"

	"github.com/soundprediction/tempograph/pkg/types"
)

// LogEntry pairs a detected conflict with its resolution, once one exists.
type LogEntry struct {
	Contradiction *types.Contradiction `json:"contradiction"`
	Resolution    *types.Resolution    `json:"resolution,omitempty"`
	LoggedAt      time.Time            `json:"logged_at"`
}

// Log records every detected conflict and its eventual resolution for audit.
type Log interface {
	// Record appends a conflict to the log.
	Record(conflict *types.Contradiction)

	// Resolve attaches a resolution to the logged conflict it references.
	// Unknown conflict IDs are ignored.
	Resolve(resolution *types.Resolution)

	// Entries returns a snapshot of the log in detection order.
	Entries() []LogEntry

	// Unresolved returns the logged conflicts with no resolution yet.
	Unresolved() []*types.Contradiction
}

// MemoryLog is a thread-safe in-memory Log.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []LogEntry
	index   map[string]int
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{index: map[string]int{}}
}

func (l *MemoryLog) Record(conflict *types.Contradiction) {
	if conflict == nil || conflict.ID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.index[conflict.ID]; seen {
		return
	}
	l.index[conflict.ID] = len(l.entries)
	l.entries = append(l.entries, LogEntry{Contradiction: conflict, LoggedAt: time.Now().UTC()})
}

func (l *MemoryLog) Resolve(resolution *types.Resolution) {
	if resolution == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[resolution.ContradictionID]; ok {
		l.entries[i].Resolution = resolution
	}
}

func (l *MemoryLog) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MemoryLog) Unresolved() []*types.Contradiction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*types.Contradiction
	for _, entry := range l.entries {
		if entry.Resolution == nil {
			out = append(out, entry.Contradiction)
		}
	}
	return out
}

// Reset clears the log.
func (l *MemoryLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.index = map[string]int{}
}
