package worker

import (
	"container/list"
	"sync"
	"time"
)

// recentExports remembers which transaction IDs were appended lately, so a
// redelivered message does not add the same row twice. Entries expire after
// ttl and the least recently seen are evicted beyond maxSize.
type recentExports struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type recentEntry struct {
	id        string
	expiresAt time.Time
}

func newRecentExports(maxSize int, ttl time.Duration) *recentExports {
	return &recentExports{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (r *recentExports) Seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.items[id]
	if !ok {
		return false
	}
	if r.now().After(elem.Value.(*recentEntry).expiresAt) {
		r.remove(elem)
		return false
	}
	r.lru.MoveToFront(elem)
	return true
}

func (r *recentExports) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &recentEntry{id: id, expiresAt: r.now().Add(r.ttl)}
	if elem, ok := r.items[id]; ok {
		elem.Value = entry
		r.lru.MoveToFront(elem)
		return
	}

	r.items[id] = r.lru.PushFront(entry)
	if r.lru.Len() > r.maxSize {
		if oldest := r.lru.Back(); oldest != nil {
			r.remove(oldest)
		}
	}
}

func (r *recentExports) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *recentExports) remove(elem *list.Element) {
	delete(r.items, elem.Value.(*recentEntry).id)
	r.lru.Remove(elem)
}
