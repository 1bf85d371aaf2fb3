package cart

import (
	"context"
	"sync"
)

// Registry hands out one Store per user, opened lazily from the shared storage.
type Registry struct {
	storage Storage
	onOpen  func(*Store)

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry returns a Registry; onOpen, when not nil, runs once for every
// newly opened store (typically to attach listeners).
func NewRegistry(st Storage, onOpen func(*Store)) *Registry {
	return &Registry{
		storage: st,
		onOpen:  onOpen,
		stores:  make(map[string]*Store),
	}
}

func (r *Registry) For(ctx context.Context, userID string) *Store {
	key := Key(userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[key]; ok {
		return s
	}
	s := Open(ctx, r.storage, key)
	if r.onOpen != nil {
		r.onOpen(s)
	}
	r.stores[key] = s
	return s
}
