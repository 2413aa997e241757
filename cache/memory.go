package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryTier is the process-local tier: bounded, volatile, no I/O.
//
// Capacity is enforced with LRU eviction. Entries older than the stale window
// are dropped lazily on read. Set enforces the never-downgrade invariant: a
// write carrying an older StoredAt than the entry already held is ignored.
type MemoryTier struct {
	windows  Windows
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

type memoryItem struct {
	key   string
	entry Entry
}

// NewMemoryTier creates a local tier with the given windows and capacity.
func NewMemoryTier(windows Windows, capacity int) (*MemoryTier, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &MemoryTier{
		windows:  windows,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}, nil
}

// Name implements Tier.
func (t *MemoryTier) Name() string { return "memory" }

// Get retrieves and classifies the entry for (namespace, key). Entries past
// the stale window are removed on the spot.
func (t *MemoryTier) Get(_ context.Context, namespace, key string) Result {
	k := entryKey(namespace, key)

	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.entries[k]
	if !ok {
		return Result{Status: StatusMiss}
	}

	item := el.Value.(*memoryItem)
	status := t.windows.Classify(item.entry.Age(t.now()))
	if status == StatusMiss {
		t.order.Remove(el)
		delete(t.entries, k)
		return Result{Status: StatusMiss}
	}

	t.order.MoveToFront(el)
	return Result{Status: status, Entry: item.entry}
}

// Set stores the entry unless the tier already holds a newer one for the same
// key. Evicts least-recently-used entries when over capacity.
func (t *MemoryTier) Set(_ context.Context, namespace, key string, entry Entry) error {
	k := entryKey(namespace, key)

	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[k]; ok {
		item := el.Value.(*memoryItem)
		if item.entry.StoredAt.After(entry.StoredAt) {
			// Never downgrade: keep the newer entry.
			return nil
		}
		item.entry = entry
		t.order.MoveToFront(el)
		return nil
	}

	el := t.order.PushFront(&memoryItem{key: k, entry: entry})
	t.entries[k] = el

	for len(t.entries) > t.capacity {
		back := t.order.Back()
		if back == nil {
			break
		}
		t.order.Remove(back)
		delete(t.entries, back.Value.(*memoryItem).key)
	}
	return nil
}

// Remove deletes the entry for (namespace, key). Idempotent.
func (t *MemoryTier) Remove(_ context.Context, namespace, key string) error {
	k := entryKey(namespace, key)

	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[k]; ok {
		t.order.Remove(el)
		delete(t.entries, k)
	}
	return nil
}

// Len reports the number of entries currently held.
func (t *MemoryTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// entryKey joins namespace and key. The separator cannot appear in a valid
// namespace name, so distinct (namespace, key) pairs never collide.
func entryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Ensure MemoryTier implements Tier
var _ Tier = (*MemoryTier)(nil)
