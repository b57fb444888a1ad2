package core

import (
	"container/list"
	"fmt"
)

// DBIdempotencyChecker is the interface for event-log-backed dedup lookup
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// IdempotencyChecker implements two-tier deduplication: an in-memory LRU on
// the hot path and an optional event-log lookup behind it.
type IdempotencyChecker struct {
	lru       *IdempotencyLRU
	dbChecker DBIdempotencyChecker
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       NewIdempotencyLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate checks if the event has been processed. The second return
// names the tier that answered ("lru" or "db") for metrics.
func (ic *IdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) (bool, string) {
	compositeKey := fmt.Sprintf("%s:%s", eventType, idempotencyKey)

	if ic.lru.Contains(compositeKey) {
		return true, "lru"
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
		if err != nil {
			// Conservative: a DB issue must not block event processing;
			// assume not duplicate.
			return false, ""
		}
		if isDup {
			// Warm the LRU so we don't hit the DB again.
			ic.lru.Add(compositeKey)
			return true, "db"
		}
	}

	return false, ""
}

// MarkProcessed adds the key to the LRU after successful processing
func (ic *IdempotencyChecker) MarkProcessed(eventType string, idempotencyKey string) {
	ic.lru.Add(fmt.Sprintf("%s:%s", eventType, idempotencyKey))
}

// WarmUp preloads recent keys, used on snapshot restore.
func (ic *IdempotencyChecker) WarmUp(keys []string) {
	for _, k := range keys {
		ic.lru.Add(k)
	}
}

// RecentKeys returns the cached keys, oldest first, for snapshotting.
func (ic *IdempotencyChecker) RecentKeys() []string {
	return ic.lru.Keys()
}

// --- LRU Implementation ---

// IdempotencyLRU is an LRU cache for idempotency keys.
// Not thread-safe — only accessed from the single-threaded engine.
type IdempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type lruEntry struct {
	key string
}

func NewIdempotencyLRU(capacity int) *IdempotencyLRU {
	return &IdempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// Contains checks membership and refreshes recency.
func (l *IdempotencyLRU) Contains(key string) bool {
	elem, ok := l.cache[key]
	if ok {
		l.lruList.MoveToFront(elem)
	}
	return ok
}

// Add inserts a key, evicting the least recently used entry at capacity.
func (l *IdempotencyLRU) Add(key string) {
	if elem, ok := l.cache[key]; ok {
		l.lruList.MoveToFront(elem)
		return
	}

	elem := l.lruList.PushFront(&lruEntry{key: key})
	l.cache[key] = elem

	if l.lruList.Len() > l.capacity {
		oldest := l.lruList.Back()
		if oldest != nil {
			l.lruList.Remove(oldest)
			delete(l.cache, oldest.Value.(*lruEntry).key)
		}
	}
}

// Len returns the number of cached keys.
func (l *IdempotencyLRU) Len() int {
	return l.lruList.Len()
}

// Keys returns cached keys, oldest first.
func (l *IdempotencyLRU) Keys() []string {
	keys := make([]string, 0, l.lruList.Len())
	for elem := l.lruList.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*lruEntry).key)
	}
	return keys
}
