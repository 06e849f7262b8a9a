package dedup

import "sync"

// Registry remembers which content hashes were already dispatched.
type Registry interface {
	Seen(h ContentHash) bool
	Mark(h ContentHash)
}

// MemoryRegistry keeps hashes for the lifetime of the process only; nothing is persisted.
// Access is serialized so callers that process documents in parallel still observe every
// prior Mark.
type MemoryRegistry struct {
	mu     sync.RWMutex
	hashes map[ContentHash]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{hashes: make(map[ContentHash]struct{})}
}

func (r *MemoryRegistry) Seen(h ContentHash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hashes[h]
	return ok
}

// Mark records h. Marking a known hash is a no-op.
func (r *MemoryRegistry) Mark(h ContentHash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[h] = struct{}{}
}

// Len reports how many distinct hashes were marked.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hashes)
}
