// Package tracker keeps a live, in-memory registry of the most recently
// observed state of every device id submitted to it. Entries live until they
// are evicted or the process exits; there is no automatic expiry.
package tracker

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Order selects how ListDevices sorts its result.
type Order string

const (
	// OrderInserted lists devices in first-seen order. It is the default.
	OrderInserted Order = "inserted"
	// OrderLastUpdated lists the most recently updated devices first.
	OrderLastUpdated Order = "last_updated"
	// OrderConfidence lists the highest confidence devices first.
	OrderConfidence Order = "confidence"
	// OrderID lists devices by id, ascending.
	OrderID Order = "id"
)

// ParseOrder maps a caller supplied string to an Order. Empty means
// OrderInserted.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderInserted, nil
	case OrderInserted, OrderLastUpdated, OrderConfidence, OrderID:
		return o, nil
	}
	return "", fmt.Errorf("unknown device order %q", s)
}

// Hooks receives registry lifecycle events, typically wired to metrics.
// Nil funcs are skipped.
type Hooks struct {
	OnInsert func()
	OnMerge  func(empty bool)
	OnEvict  func(n int)
}

// compactMin is the arena size below which evicted slots are left in place.
const compactMin = 64

type entry struct {
	mu      sync.Mutex
	dev     TrackedDevice
	evicted bool
}

// Tracker is the cross-scan device registry. The registry lock guards the
// id index and the entry arena; each entry has its own lock so merges on
// different ids do not wait on each other. Lock order is registry, then
// entry.
type Tracker struct {
	mu      sync.RWMutex
	index   map[string]int // device id -> arena slot
	entries []*entry       // insertion ordered, nil slots were evicted
	live    int

	tracking atomic.Bool
	hooks    Hooks
	now      func() time.Time
}

// New creates an empty Tracker.
func New(hooks Hooks) *Tracker {
	return &Tracker{
		index: make(map[string]int),
		hooks: hooks,
		now:   time.Now,
	}
}

// IsTracking reports whether at least one update has arrived since the
// tracker was created or last Reset.
func (t *Tracker) IsTracking() bool {
	return t.tracking.Load()
}

// Len returns the number of devices currently held.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// UpdateDevice upserts id. A new id is inserted from f; an existing one has
// every present field of f overwritten and every absent field kept.
// LastUpdated is refreshed in both cases, including for an empty f. The
// merge is atomic per id. It reports whether id was newly inserted.
func (t *Tracker) UpdateDevice(id string, f Fields) bool {
	for {
		if e, ok := t.lookup(id); ok {
			if t.merge(e, &f) {
				return false
			}
			// evicted between lookup and merge, start over as an insert
			continue
		}
		if t.insert(id, &f) {
			return true
		}
	}
}

// GetDevice returns a snapshot of id, or false when it is not tracked.
func (t *Tracker) GetDevice(id string) (TrackedDevice, bool) {
	e, ok := t.lookup(id)
	if !ok {
		return TrackedDevice{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return TrackedDevice{}, false
	}
	return e.dev.clone(), true
}

// ListDevices returns snapshots of every tracked device in the given order.
func (t *Tracker) ListDevices(order Order) []TrackedDevice {
	t.mu.RLock()
	live := make([]*entry, 0, t.live)
	for _, e := range t.entries {
		if e != nil {
			live = append(live, e)
		}
	}
	t.mu.RUnlock()

	out := make([]TrackedDevice, 0, len(live))
	for _, e := range live {
		e.mu.Lock()
		if !e.evicted {
			out = append(out, e.dev.clone())
		}
		e.mu.Unlock()
	}

	switch order {
	case OrderLastUpdated:
		slices.SortStableFunc(out, func(a, b TrackedDevice) int {
			return b.LastUpdated.Compare(a.LastUpdated)
		})
	case OrderConfidence:
		slices.SortStableFunc(out, func(a, b TrackedDevice) int {
			switch {
			case a.Confidence > b.Confidence:
				return -1
			case a.Confidence < b.Confidence:
				return 1
			}
			return 0
		})
	case OrderID:
		slices.SortStableFunc(out, func(a, b TrackedDevice) int {
			return strings.Compare(a.ID, b.ID)
		})
	}
	return out
}

// Evict removes id. Evicting an unknown id is a no-op.
func (t *Tracker) Evict(id string) {
	t.mu.Lock()
	slot, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	e := t.entries[slot]
	e.mu.Lock()
	e.evicted = true
	e.mu.Unlock()

	t.entries[slot] = nil
	delete(t.index, id)
	t.live--
	t.compactLocked()
	t.mu.Unlock()

	if t.hooks.OnEvict != nil {
		t.hooks.OnEvict(1)
	}
}

// Reset evicts every device and restarts the tracking epoch, so IsTracking
// reports false until the next update.
func (t *Tracker) Reset() {
	t.mu.Lock()
	n := t.live
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
	t.entries = nil
	t.index = make(map[string]int)
	t.live = 0
	t.tracking.Store(false)
	t.mu.Unlock()

	if n > 0 && t.hooks.OnEvict != nil {
		t.hooks.OnEvict(n)
	}
}

func (t *Tracker) lookup(id string) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slot, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.entries[slot], true
}

// insert adds a new entry for id. It returns false if another caller
// inserted id first.
func (t *Tracker) insert(id string, f *Fields) bool {
	now := t.now()
	dev := TrackedDevice{ID: id, FirstSeen: now, LastUpdated: now}
	dev.apply(f)
	dev.MatchedIDs = nonNil(dev.MatchedIDs)
	dev.CorrelationNotes = nonNil(dev.CorrelationNotes)
	dev.DetectionEvidence.USBEvidence = nonNil(dev.DetectionEvidence.USBEvidence)

	t.mu.Lock()
	if _, ok := t.index[id]; ok {
		t.mu.Unlock()
		return false
	}
	// append is amortized O(1); the occasional regrow copies pointers only
	t.index[id] = len(t.entries)
	t.entries = append(t.entries, &entry{dev: dev})
	t.live++
	// set only once the write has landed, under the same lock Reset clears it with
	t.tracking.Store(true)
	t.mu.Unlock()

	if t.hooks.OnInsert != nil {
		t.hooks.OnInsert()
	}
	return true
}

// merge applies f to e under the entry lock. It returns false if e was
// evicted and the update therefore did not land.
func (t *Tracker) merge(e *entry, f *Fields) bool {
	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return false
	}
	e.dev.apply(f)
	e.dev.LastUpdated = t.now()
	e.dev.Updates++
	// Reset marks every entry evicted under its lock before clearing the
	// flag, so storing here cannot outlive a concurrent Reset
	t.tracking.Store(true)
	e.mu.Unlock()

	if t.hooks.OnMerge != nil {
		t.hooks.OnMerge(f.IsEmpty())
	}
	return true
}

// compactLocked drops evicted slots once they outnumber live entries.
// A pass is O(len(entries)) but only runs after at least half the arena has
// been evicted, so its cost is amortized across those evictions and each
// eviction pays O(1). Caller holds t.mu for writing.
func (t *Tracker) compactLocked() {
	if len(t.entries) < compactMin || len(t.entries) < 2*t.live {
		return
	}
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		t.index[e.dev.ID] = len(kept)
		kept = append(kept, e)
	}
	clear(t.entries[len(kept):])
	t.entries = kept
}
