package clipboard

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"time"
)

// loopGuardCapacity and loopGuardTTL bound the recently-seen content
// fingerprint cache used to prevent echo loops: content this core just
// received from the remote side and is about to re-advertise locally
// (because setting the OS clipboard triggers an ownership-change
// notification) is recognized and suppressed instead of bouncing back to
// the viewer (spec.md §5 "loop prevention").
const (
	loopGuardCapacity = 16
	loopGuardTTL       = 5 * time.Second
)

type fingerprint [32]byte

func fingerprintContent(c Content) fingerprint {
	h := sha256.New()
	h.Write([]byte{byte(c.Format), byte(c.Format >> 8), byte(c.Format >> 16), byte(c.Format >> 24)})
	// Canonicalize text to LF line endings before hashing, so a trivial
	// CRLF<->LF round trip through a format conversion never defeats loop
	// detection (spec.md §4.6 "canonical byte representation").
	h.Write([]byte(normalizeToLF(c.Text)))
	h.Write(c.Bytes)
	for _, f := range c.Files {
		h.Write([]byte(f))
	}
	var sum fingerprint
	copy(sum[:], h.Sum(nil))
	return sum
}

type loopGuardEntry struct {
	fp       fingerprint
	expireAt time.Time
}

// LoopGuard is a bounded, TTL-expiring LRU of recently-seen content
// fingerprints, grounded on the teacher's last-sent-hash approach in
// clipboard/sync.go but generalized to a small history instead of a single
// slot, since a bounded LRU catches loops across A-sets-B-sets-A replay
// that a single last-hash cannot.
type LoopGuard struct {
	mu       sync.Mutex
	order    *list.List
	entries  map[fingerprint]*list.Element
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func NewLoopGuard() *LoopGuard {
	return &LoopGuard{
		order:    list.New(),
		entries:  make(map[fingerprint]*list.Element),
		capacity: loopGuardCapacity,
		ttl:      loopGuardTTL,
		now:      time.Now,
	}
}

// Seen reports whether content matches a fingerprint recorded within the
// TTL window, without recording it again.
func (g *LoopGuard) Seen(c Content) bool {
	fp := fingerprintContent(c)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictExpiredLocked()
	_, ok := g.entries[fp]
	return ok
}

// Record adds content's fingerprint to the guard, evicting the oldest
// entry if at capacity.
func (g *LoopGuard) Record(c Content) {
	fp := fingerprintContent(c)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictExpiredLocked()

	if el, ok := g.entries[fp]; ok {
		g.order.MoveToFront(el)
		el.Value.(*loopGuardEntry).expireAt = g.now().Add(g.ttl)
		return
	}

	if g.order.Len() >= g.capacity {
		oldest := g.order.Back()
		if oldest != nil {
			g.order.Remove(oldest)
			delete(g.entries, oldest.Value.(*loopGuardEntry).fp)
		}
	}

	entry := &loopGuardEntry{fp: fp, expireAt: g.now().Add(g.ttl)}
	el := g.order.PushFront(entry)
	g.entries[fp] = el
}

func (g *LoopGuard) evictExpiredLocked() {
	now := g.now()
	for {
		back := g.order.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*loopGuardEntry)
		if now.Before(entry.expireAt) {
			return
		}
		g.order.Remove(back)
		delete(g.entries, entry.fp)
	}
}
