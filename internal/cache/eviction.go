package cache

import (
	"container/list"
	"sync"
)

// EvictionTracker maintains the dual ordered-set/key-to-timestamp-map the
// spec's eviction tracker requires (§4.9, invariant S9): a `(timestamp,
// key)` entry in recency order, and a `key -> timestamp` lookup map. On
// every touch the old entry (if any) is removed before the new one is
// inserted, and once the entry count exceeds max, the oldest entries are
// dropped — both structures always agree on membership.
type EvictionTracker struct {
	mu    sync.Mutex
	order *list.List
	byKey map[string]*list.Element
	max   int
}

type evictionEntry struct {
	key string
	ts  int64
}

// NewEvictionTracker creates a tracker that keeps at most max entries.
func NewEvictionTracker(max int) *EvictionTracker {
	if max <= 0 {
		max = 1
	}
	return &EvictionTracker{
		order: list.New(),
		byKey: make(map[string]*list.Element),
		max:   max,
	}
}

// Touch records key as most-recently-used at ts, replacing any prior entry
// for key, and returns the keys evicted as a result (oldest-first) if the
// tracker is now over capacity.
func (e *EvictionTracker) Touch(key string, ts int64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if el, ok := e.byKey[key]; ok {
		e.order.Remove(el)
		delete(e.byKey, key)
	}
	el := e.order.PushBack(evictionEntry{key: key, ts: ts})
	e.byKey[key] = el

	var evicted []string
	for e.order.Len() > e.max {
		front := e.order.Front()
		entry := front.Value.(evictionEntry)
		e.order.Remove(front)
		delete(e.byKey, entry.key)
		evicted = append(evicted, entry.key)
	}
	return evicted
}

// Remove deletes key from both structures if present.
func (e *EvictionTracker) Remove(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.byKey[key]; ok {
		e.order.Remove(el)
		delete(e.byKey, key)
	}
}

// Len returns the number of tracked entries.
func (e *EvictionTracker) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Len()
}

// Consistent reports whether the ordered set and the key map agree on
// membership (spec §8 invariant 9) — exposed for tests, not used on the
// hot path.
func (e *EvictionTracker) Consistent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order.Len() != len(e.byKey) {
		return false
	}
	for el := e.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(evictionEntry)
		found, ok := e.byKey[entry.key]
		if !ok || found != el {
			return false
		}
	}
	return true
}
