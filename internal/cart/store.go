package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/shopspring/decimal"
)

const DefaultKey = "cart"

// Key returns the storage key of a user's cart. The anonymous cart lives
// under DefaultKey.
func Key(userID string) string {
	if userID == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + userID
}

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Op string

const (
	OpAdd         Op = "add"
	OpSetQuantity Op = "set_quantity"
	OpRemove      Op = "remove"
	OpClear       Op = "clear"
)

type Change struct {
	Op        Op
	ProductID string
	Entries   []models.CartEntry
}

type Listener func(ctx context.Context, ch Change)

type Store struct {
	mu      sync.Mutex
	key     string
	storage Storage
	entries []models.CartEntry

	subMu     sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// Open rehydrates the cart persisted under key. A missing, unreadable or
// malformed value yields an empty cart; malformed values are also erased.
func Open(ctx context.Context, st Storage, key string) *Store {
	s := &Store{
		key:       key,
		storage:   st,
		listeners: make(map[int]Listener),
	}
	s.entries = s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) []models.CartEntry {
	l := logging.FromContext(ctx).With("component", "cart.store", "key", s.key)

	raw, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.Error("cart_rehydrate_error", "error", fmt.Errorf("%w: %v", ErrPersistence, err))
		}
		return nil
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		l.Warn("cart_rehydrate_discarded", "error", err)
		if derr := s.storage.Delete(ctx, s.key); derr != nil {
			l.Error("cart_persist_error", "error", fmt.Errorf("%w: %v", ErrPersistence, derr))
		}
		return nil
	}

	l.Debug("cart_rehydrated", "entries", len(entries))
	return entries
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Add(ctx context.Context, p models.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id required: %w", ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price must be >= 0: %w", ErrValidation)
	}
	if p.StockQuantity < 1 {
		return fmt.Errorf("product %s: %w", p.ID, ErrOutOfStock)
	}

	s.mu.Lock()
	id := p.ID.String()
	idx := s.indexOf(id)
	if idx >= 0 {
		e := s.entries[idx]
		next := min(e.Quantity+1, e.StockLimit)
		if next == e.Quantity {
			s.mu.Unlock()
			return nil
		}
		s.entries[idx].Quantity = next
	} else {
		s.entries = append(s.entries, models.CartEntry{
			ProductID:  id,
			Name:       p.Name,
			Brand:      p.Brand,
			UnitPrice:  p.Price,
			StockLimit: p.StockQuantity,
			Quantity:   1,
		})
	}
	ch := s.commit(ctx, OpAdd, id)
	s.mu.Unlock()

	s.notify(ctx, ch)
	return nil
}

// SetQuantity moves an entry's quantity by delta, clamped to [1, stock limit].
// Unknown product ids are ignored.
func (s *Store) SetQuantity(ctx context.Context, productID string, delta int) {
	s.mu.Lock()
	idx := s.indexOf(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	e := s.entries[idx]
	next := max(1, min(e.Quantity+delta, e.StockLimit))
	if next == e.Quantity {
		s.mu.Unlock()
		return
	}
	s.entries[idx].Quantity = next
	ch := s.commit(ctx, OpSetQuantity, productID)
	s.mu.Unlock()

	s.notify(ctx, ch)
}

func (s *Store) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	idx := s.indexOf(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.entries = slices.Delete(s.entries, idx, idx+1)
	ch := s.commit(ctx, OpRemove, productID)
	s.mu.Unlock()

	s.notify(ctx, ch)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = nil
	if err := s.storage.Delete(ctx, s.key); err != nil {
		logging.FromContext(ctx).Error("cart_persist_error", "key", s.key, "op", OpClear,
			"error", fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	ch := Change{Op: OpClear}
	s.mu.Unlock()

	s.notify(ctx, ch)
}

func (s *Store) Entries() []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyEntries()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.entries)
}

// Snapshot returns the entries and their total taken under one lock.
func (s *Store) Snapshot() ([]models.CartEntry, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyEntries(), total(s.entries)
}

// Subscribe registers fn for every committed mutation and returns a function
// that removes it. Listeners run after the store lock is released.
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) indexOf(productID string) int {
	for i := range s.entries {
		if s.entries[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyEntries() []models.CartEntry {
	out := make([]models.CartEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// commit persists the current entries. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op Op, productID string) Change {
	raw, err := encodeEntries(s.entries)
	if err == nil {
		err = s.storage.Set(ctx, s.key, raw)
	}
	if err != nil {
		logging.FromContext(ctx).Error("cart_persist_error", "key", s.key, "op", op,
			"error", fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	return Change{Op: op, ProductID: productID, Entries: s.copyEntries()}
}

func (s *Store) notify(ctx context.Context, ch Change) {
	s.subMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ctx, ch)
	}
}

func total(entries []models.CartEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.LineTotal())
	}
	return sum
}
