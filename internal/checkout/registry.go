package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/shopspring/decimal"
)

const keyPrefix = "checkout:"

func Key(sessionID string) string {
	return keyPrefix + sessionID
}

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CartResolver returns the cart a user's session snapshots and clears.
type CartResolver func(ctx context.Context, userID string) Cart

// record is the persisted form of a session that reached payment entry.
// The payment selection is never written.
type record struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	State     State              `json:"state"`
	Items     []models.CartEntry `json:"items"`
	Total     decimal.Decimal    `json:"totalPrice"`
	Address   *models.Address    `json:"address"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Registry owns the live checkout sessions. Sessions that reached payment
// entry are persisted and can be resumed by id after a restart.
type Registry struct {
	mu       sync.Mutex
	storage  Storage
	carts    CartResolver
	opts     []Option
	sessions map[string]*Session
	maxIdle  time.Duration
	now      func() time.Time
}

func NewRegistry(st Storage, carts CartResolver, opts ...Option) *Registry {
	return &Registry{
		storage:  st,
		carts:    carts,
		opts:     opts,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// ExpireIdle makes sessions untouched for longer than d expire: Sweep drops
// live ones and Get refuses to resume stored ones. Zero disables expiry.
func (r *Registry) ExpireIdle(d time.Duration) {
	r.mu.Lock()
	r.maxIdle = d
	r.mu.Unlock()
}

func (r *Registry) idleLimit() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxIdle
}

// Sweep abandons and forgets live sessions idle past the ExpireIdle limit,
// along with their stored records, and returns how many it dropped. Sessions
// with a submission in flight are kept.
func (r *Registry) Sweep(ctx context.Context) int {
	limit := r.idleLimit()
	if limit <= 0 {
		return 0
	}

	r.mu.Lock()
	var expired []*Session
	for _, s := range r.sessions {
		if s.idleFor() > limit {
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.Abandon(ctx); err != nil {
			logging.FromContext(ctx).Error("checkout_expire_error", "session_id", s.id, "error", err)
			continue
		}
		r.forget(ctx, s.id)
	}
	if len(expired) > 0 {
		logging.FromContext(ctx).Info("checkout_sessions_expired", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

// Start opens a session over the user's cart and proceeds past cart review.
func (r *Registry) Start(ctx context.Context, userID string) (*Session, error) {
	s := New(userID, r.carts(ctx, userID), r.sessionOptions()...)
	if err := s.Proceed(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the user's session, resuming a persisted one when it is not
// live. Sessions of other users are reported as not found.
func (r *Registry) Get(ctx context.Context, id, userID string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		if s.userID != userID {
			return nil, ErrNotFound
		}
		s.touch()
		return s, nil
	}

	raw, err := r.storage.Get(ctx, Key(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkout session %s: %w", id, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil || rec.ID != id {
		logging.FromContext(ctx).Warn("checkout_resume_discarded", "session_id", id, "error", err)
		if derr := r.storage.Delete(ctx, Key(id)); derr != nil {
			logging.FromContext(ctx).Error("checkout_persist_error", "session_id", id, "error", derr)
		}
		return nil, ErrNotFound
	}
	if rec.UserID != userID {
		return nil, ErrNotFound
	}
	if limit := r.idleLimit(); limit > 0 && r.now().UTC().Sub(rec.lastActive()) > limit {
		logging.FromContext(ctx).Info("checkout_resume_expired", "session_id", id)
		if derr := r.storage.Delete(ctx, Key(id)); derr != nil {
			logging.FromContext(ctx).Error("checkout_persist_error", "session_id", id, "error", derr)
		}
		return nil, ErrNotFound
	}

	resumed := restore(rec, r.carts(ctx, rec.UserID), r.sessionOptions()...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if live, ok := r.sessions[id]; ok {
		return live, nil
	}
	r.sessions[id] = resumed
	logging.FromContext(ctx).Info("checkout_resumed", "session_id", id, "user_id", userID)
	return resumed, nil
}

// Save persists the session if it is waiting for payment. It is called by
// the registry on entering payment entry and by callers after re-choosing
// the address.
func (r *Registry) Save(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.state != StatePaymentPending || s.abandoned {
		s.mu.Unlock()
		return nil
	}
	rec := record{
		ID:        s.id,
		UserID:    s.userID,
		State:     s.state,
		Items:     cloneEntries(s.snapshot),
		Total:     s.total,
		Address:   cloneAddress(s.address),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	s.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode checkout session %s: %w", rec.ID, err)
	}
	if err := r.storage.Set(ctx, Key(rec.ID), raw); err != nil {
		return fmt.Errorf("save checkout session %s: %w", rec.ID, err)
	}
	return nil
}

// Discard abandons the session. A session with a submission in flight stays
// registered until the submission resolves.
func (r *Registry) Discard(ctx context.Context, id, userID string) error {
	s, err := r.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.Abandon(ctx); err != nil {
		return err
	}
	if s.State() != StateSubmitting {
		r.forget(ctx, s.id)
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sessionOptions() []Option {
	return append(slices.Clone(r.opts), WithObserver(r.track))
}

func (r *Registry) track(ctx context.Context, s *Session, tr Transition) {
	l := logging.FromContext(ctx).With("component", "checkout.registry", "session_id", tr.SessionID)

	abandoned := s.Abandoned()
	switch {
	case abandoned && (tr.To == StatePaymentPending || tr.To == StateConfirmed || tr.To == StateAbandoned):
		r.forget(ctx, tr.SessionID)
	case tr.To == StateConfirmed:
		if err := r.storage.Delete(ctx, Key(tr.SessionID)); err != nil {
			l.Error("checkout_persist_error", "error", err)
		}
	case tr.To == StatePaymentPending:
		if err := r.Save(ctx, s); err != nil {
			l.Error("checkout_persist_error", "error", err)
		}
	}
}

func (r *Registry) forget(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	if err := r.storage.Delete(ctx, Key(id)); err != nil {
		logging.FromContext(ctx).Error("checkout_persist_error", "session_id", id, "error", err)
	}
}

func (rec record) lastActive() time.Time {
	if rec.UpdatedAt.After(rec.CreatedAt) {
		return rec.UpdatedAt
	}
	return rec.CreatedAt
}

func decodeRecord(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, err
	}
	if rec.ID == "" || rec.State != StatePaymentPending {
		return record{}, fmt.Errorf("unexpected session state %q", rec.State)
	}
	if len(rec.Items) == 0 {
		return record{}, ErrEmptyCart
	}
	sum := decimal.Zero
	for _, e := range rec.Items {
		if e.ProductID == "" || e.UnitPrice.IsNegative() || e.Quantity < 1 || e.Quantity > e.StockLimit {
			return record{}, fmt.Errorf("invalid item %q", e.ProductID)
		}
		sum = sum.Add(e.LineTotal())
	}
	if !sum.Equal(rec.Total) {
		return record{}, fmt.Errorf("total %s does not match items %s", rec.Total, sum)
	}
	if rec.Address == nil {
		return record{}, &ValidationError{Field: "address", Reason: "required"}
	}
	if err := ValidateAddress(*rec.Address); err != nil {
		return record{}, err
	}
	return rec, nil
}

func restore(rec record, cart Cart, opts ...Option) *Session {
	s := New(rec.UserID, cart, append(opts, WithID(rec.ID))...)
	s.state = StatePaymentPending
	s.snapshot = rec.Items
	s.total = rec.Total
	s.address = rec.Address
	if !rec.CreatedAt.IsZero() {
		s.createdAt = rec.CreatedAt
	}
	// A resumed session counts as touched now.
	s.updatedAt = s.now().UTC()
	return s
}
