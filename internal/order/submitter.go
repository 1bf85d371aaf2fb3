package order

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
)

const DefaultStatus = "Placed"

type Orders interface {
	Create(ctx context.Context, user identity.User, p Payload) (Created, error)
}

type Result struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	DeliveryDate string `json:"deliveryDate,omitempty"`
}

type Submitter struct {
	orders   Orders
	delivery *DeliveryScheduler
}

// NewSubmitter returns a Submitter; delivery may be nil to skip the delivery
// estimate.
func NewSubmitter(orders Orders, delivery *DeliveryScheduler) *Submitter {
	return &Submitter{orders: orders, delivery: delivery}
}

// Submit places the session's order with exactly one call to the order
// service. Validation and state errors from the session are returned before
// any call is made. On failure the session returns to payment entry with the
// cart intact; on success the cart is cleared. Cancelling ctx after the
// session entered submitting does not abort the order call.
func (s *Submitter) Submit(ctx context.Context, sess *checkout.Session, user identity.User) (*Result, error) {
	l := logging.FromContext(ctx).With("component", "order.submitter", "session_id", sess.ID())

	sub, err := sess.BeginSubmit(ctx)
	if err != nil {
		return nil, err
	}

	// Once submitting, the call runs to completion and its result is applied
	// even if the caller goes away. The client timeout still bounds it.
	ctx = context.WithoutCancel(ctx)

	payload, err := BuildPayload(sub)
	if err != nil {
		serr := &SubmitError{Kind: KindValidation, Err: err}
		s.fail(ctx, sess, serr)
		return nil, serr
	}

	created, err := s.orders.Create(ctx, user, payload)
	if err != nil {
		l.Error("order_submit_error", "error", err)
		s.fail(ctx, sess, err)
		return nil, err
	}

	res := &Result{OrderID: created.ID.String(), Status: created.Status}
	if res.Status == "" {
		res.Status = DefaultStatus
	}
	if err := sess.Confirm(ctx, res.OrderID, res.Status); err != nil {
		return nil, err
	}
	l.Info("order_placed", "order_id", res.OrderID, "status", res.Status, "abandoned", sess.Abandoned())

	if s.delivery != nil && res.OrderID != "" {
		res.DeliveryDate = s.delivery.Schedule(ctx, sess, user, res.OrderID)
	}
	return res, nil
}

func (s *Submitter) fail(ctx context.Context, sess *checkout.Session, cause error) {
	if err := sess.Fail(ctx, cause); err != nil {
		logging.FromContext(ctx).Error("order_fail_transition_error", "session_id", sess.ID(), "error", err)
	}
}
