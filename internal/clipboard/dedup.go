package clipboard

import (
	"sync"
	"time"
)

// selectionDedupWindow bounds how long a (format, serial) pair is
// remembered: a burst of duplicate SelectionRequest/paste requests for the
// same serial arriving within this window is swallowed rather than
// triggering a redundant transfer (spec.md §4.6 "A per-serial
// deduplication table swallows bursts of duplicate requests for the same
// serial within 100 ms").
const selectionDedupWindow = 100 * time.Millisecond

type dedupKey struct {
	format Format
	serial uint32
}

// SelectionDedup tracks recently-seen (format, serial) request pairs so a
// burst of duplicate requests collapses to a single handled request.
type SelectionDedup struct {
	mu     sync.Mutex
	seen   map[dedupKey]time.Time
	window time.Duration
	now    func() time.Time
}

func NewSelectionDedup() *SelectionDedup {
	return &SelectionDedup{
		seen:   make(map[dedupKey]time.Time),
		window: selectionDedupWindow,
		now:    time.Now,
	}
}

// ShouldHandle reports whether a request for (format, serial) should
// actually be processed: true the first time within the window, false for
// a duplicate seen inside the window (in which case the caller should
// silently swallow it, not respond twice).
func (d *SelectionDedup) ShouldHandle(format Format, serial uint32) bool {
	key := dedupKey{format: format, serial: serial}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictLocked(now)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

func (d *SelectionDedup) evictLocked(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.window {
			delete(d.seen, k)
		}
	}
}
