package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the part of cart.Store a session needs.
type Cart interface {
	Snapshot() ([]models.CartEntry, decimal.Decimal)
	Clear(ctx context.Context)
}

type Transition struct {
	SessionID string
	UserID    string
	From      State
	To        State
	At        time.Time
}

// Observer is called after every state change, outside the session lock.
type Observer func(ctx context.Context, s *Session, tr Transition)

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Submission is what BeginSubmit hands to the order submitter.
type Submission struct {
	SessionID string
	UserID    string
	Items     []models.CartEntry
	Total     decimal.Decimal
	Address   models.Address
	Payment   models.PaymentSelection
}

type Session struct {
	mu     sync.Mutex
	id     string
	userID string
	cart   Cart
	now    func() time.Time

	state    State
	snapshot []models.CartEntry
	total    decimal.Decimal
	address  *models.Address
	payment  *models.PaymentSelection

	preselected      bool
	suggestedAddress *models.Address
	suggestedPayment *models.PaymentSelection

	orderID      string
	orderStatus  string
	deliveryDate string
	lastErr      error
	abandoned    bool

	createdAt time.Time
	updatedAt time.Time

	observers []Observer
}

func New(userID string, cart Cart, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		userID: userID,
		cart:   cart,
		now:    time.Now,
		state:  StateCartReview,
		total:  decimal.Zero,
	}
	for _, o := range opts {
		o(s)
	}
	s.createdAt = s.now().UTC()
	s.updatedAt = s.createdAt
	return s
}

// Proceed freezes the cart snapshot and total and moves to address entry.
func (s *Session) Proceed(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCartReview {
		defer s.mu.Unlock()
		return &StateError{From: s.state, Op: "proceed"}
	}
	items, total := s.cart.Snapshot()
	if len(items) == 0 {
		s.mu.Unlock()
		return ErrEmptyCart
	}
	s.snapshot = items
	s.total = total
	trs := s.moveTo(StateAddressPending)
	s.mu.Unlock()

	s.emit(ctx, trs)
	return nil
}

// Preselect offers the user's default address and payment once per session.
// The address is only suggested; the payment is adopted on reaching payment
// entry if nothing was chosen. Later calls return false and change nothing.
func (s *Session) Preselect(addr *models.Address, pay *models.PaymentSelection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preselected || s.state.IsTerminal() {
		return false
	}
	s.preselected = true
	s.suggestedAddress = cloneAddress(addr)
	s.suggestedPayment = clonePayment(pay)
	if s.state == StatePaymentPending && s.payment == nil {
		s.payment = clonePayment(s.suggestedPayment)
	}
	return true
}

func (s *Session) ChooseAddress(ctx context.Context, addr models.Address) error {
	s.mu.Lock()
	if s.state != StateAddressPending && s.state != StatePaymentPending {
		defer s.mu.Unlock()
		return &StateError{From: s.state, Op: "choose_address"}
	}
	if err := ValidateAddress(addr); err != nil {
		s.mu.Unlock()
		return err
	}
	s.address = &addr
	s.updatedAt = s.now().UTC()

	var trs []Transition
	if s.state == StateAddressPending {
		trs = s.moveTo(StatePaymentPending)
		if s.payment == nil {
			s.payment = clonePayment(s.suggestedPayment)
		}
	}
	s.mu.Unlock()

	s.emit(ctx, trs)
	return nil
}

func (s *Session) ChoosePayment(ctx context.Context, sel models.PaymentSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaymentPending {
		return &StateError{From: s.state, Op: "choose_payment"}
	}
	s.payment = clonePayment(&sel)
	s.updatedAt = s.now().UTC()
	return nil
}

// BeginSubmit enters Submitting. Only one submission can be in flight; a
// second call returns a StateError until Confirm or Fail.
func (s *Session) BeginSubmit(ctx context.Context) (Submission, error) {
	s.mu.Lock()
	if s.state != StatePaymentPending {
		defer s.mu.Unlock()
		return Submission{}, &StateError{From: s.state, Op: "submit"}
	}
	if s.address == nil {
		s.mu.Unlock()
		return Submission{}, &ValidationError{Field: "address", Reason: "required"}
	}
	if err := ValidateAddress(*s.address); err != nil {
		s.mu.Unlock()
		return Submission{}, err
	}
	if s.payment == nil {
		s.mu.Unlock()
		return Submission{}, &ValidationError{Field: "payment", Reason: "required"}
	}
	if err := ValidatePayment(*s.payment); err != nil {
		s.mu.Unlock()
		return Submission{}, err
	}

	sub := Submission{
		SessionID: s.id,
		UserID:    s.userID,
		Items:     cloneEntries(s.snapshot),
		Total:     s.total,
		Address:   *s.address,
		Payment:   *clonePayment(s.payment),
	}
	s.lastErr = nil
	trs := s.moveTo(StateSubmitting)
	s.mu.Unlock()

	s.emit(ctx, trs)
	return sub, nil
}

// Confirm records a successful submission. The cart is cleared, outside the
// session lock, before the order id is recorded.
func (s *Session) Confirm(ctx context.Context, orderID, status string) error {
	s.mu.Lock()
	if s.state != StateSubmitting {
		defer s.mu.Unlock()
		return &StateError{From: s.state, Op: "confirm"}
	}
	s.mu.Unlock()

	s.cart.Clear(ctx)

	s.mu.Lock()
	// Only the submitter leaves submitting, so a change here means a
	// concurrent Confirm or Fail won.
	if s.state != StateSubmitting {
		defer s.mu.Unlock()
		return &StateError{From: s.state, Op: "confirm"}
	}
	s.orderID = orderID
	s.orderStatus = status
	trs := s.moveTo(StateConfirmed)
	s.mu.Unlock()

	s.emit(ctx, trs)
	return nil
}

// Fail records a failed submission and returns to payment entry. The cart
// and the chosen address and payment are kept for a retry.
func (s *Session) Fail(ctx context.Context, cause error) error {
	s.mu.Lock()
	if s.state != StateSubmitting {
		defer s.mu.Unlock()
		return &StateError{From: s.state, Op: "fail"}
	}
	s.lastErr = cause
	trs := s.moveTo(StateFailed)
	trs = append(trs, s.moveTo(StatePaymentPending)...)
	s.mu.Unlock()

	s.emit(ctx, trs)
	return nil
}

// Abandon discards the session. An in-flight submission is not interrupted:
// the session is only marked and its result still applies. Abandoning a
// confirmed session does nothing.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConfirmed, StateAbandoned:
		s.mu.Unlock()
		return nil
	case StateSubmitting:
		s.abandoned = true
		s.mu.Unlock()
		return nil
	}
	s.abandoned = true
	trs := s.moveTo(StateAbandoned)
	s.mu.Unlock()

	s.emit(ctx, trs)
	return nil
}

// SetDeliveryDate attaches the estimated delivery date of a confirmed order.
func (s *Session) SetDeliveryDate(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirmed {
		return &StateError{From: s.state, Op: "set_delivery_date"}
	}
	s.deliveryDate = date
	return nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Items() []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.snapshot)
}

func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Session) Address() *models.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAddress(s.address)
}

func (s *Session) Payment() *models.PaymentSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePayment(s.payment)
}

func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

func (s *Session) touch() {
	s.mu.Lock()
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()
}

// idleFor reports how long the session has gone untouched. A session with a
// submission in flight is never idle.
func (s *Session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return 0
	}
	return s.now().UTC().Sub(s.updatedAt)
}

// moveTo changes state and returns the transition to emit. Callers hold s.mu.
func (s *Session) moveTo(to State) []Transition {
	tr := Transition{
		SessionID: s.id,
		UserID:    s.userID,
		From:      s.state,
		To:        to,
		At:        s.now().UTC(),
	}
	s.state = to
	s.updatedAt = tr.At
	return []Transition{tr}
}

func (s *Session) emit(ctx context.Context, trs []Transition) {
	for _, tr := range trs {
		for _, o := range s.observers {
			o(ctx, s, tr)
		}
	}
}

func cloneEntries(in []models.CartEntry) []models.CartEntry {
	out := make([]models.CartEntry, len(in))
	copy(out, in)
	return out
}

func cloneAddress(a *models.Address) *models.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func clonePayment(p *models.PaymentSelection) *models.PaymentSelection {
	if p == nil {
		return nil
	}
	c := *p
	if p.Card != nil {
		card := *p.Card
		c.Card = &card
	}
	return &c
}
