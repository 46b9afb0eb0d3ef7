package record

import (
	"sync"
	"time"
)

// Scope identifies whose stream a delta window belongs to. Windows are never
// shared across scopes; one tenant's pollers cannot see another's records.
type Scope struct {
	SiteID   int64
	TenantID int64
}

// DeltaTracker keeps the most recently observed records per scope in memory
// so pollers can ask for everything newer than a cursor without hitting the
// database.
type DeltaTracker struct {
	mu      sync.Mutex
	windows map[Scope][]*Record
	size    int
}

// NewDeltaTracker creates a tracker retaining at most size records per scope
func NewDeltaTracker(size int) *DeltaTracker {
	if size <= 0 {
		size = 100
	}
	return &DeltaTracker{
		windows: make(map[Scope][]*Record),
		size:    size,
	}
}

// Update replaces the scope's window with the given records, newest first
func (t *DeltaTracker) Update(scope Scope, records []*Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(records)
	if n > t.size {
		n = t.size
	}
	window := make([]*Record, n)
	copy(window, records[:n])
	t.windows[scope] = window
}

// GatherSince returns the scope's tracked records strictly newer than the
// cursor, newest first. The window is ordered, so the scan stops at the first
// record that is not newer. A zero cursor yields nothing: a poller that has
// seen nothing yet has no baseline to diff against.
func (t *DeltaTracker) GatherSince(scope Scope, cursor time.Time) []*Record {
	if cursor.IsZero() {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []*Record
	for _, rec := range t.windows[scope] {
		if !rec.CreatedAt.After(cursor) {
			break
		}
		fresh = append(fresh, rec)
	}
	return fresh
}
