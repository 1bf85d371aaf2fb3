package order

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
)

const (
	minDeliveryDays = 5
	maxDeliveryDays = 7

	dateLayout = "2006-01-02"
)

type DeliveryUpdater interface {
	SetDeliveryDate(ctx context.Context, user identity.User, orderID, date string) error
}

// DeliveryScheduler estimates a delivery date for a confirmed order and
// records it with the order service.
type DeliveryScheduler struct {
	orders DeliveryUpdater
	now    func() time.Time
	days   func() int
}

func NewDeliveryScheduler(orders DeliveryUpdater) *DeliveryScheduler {
	return &DeliveryScheduler{
		orders: orders,
		now:    time.Now,
		days: func() int {
			return minDeliveryDays + rand.IntN(maxDeliveryDays-minDeliveryDays+1)
		},
	}
}

func (d *DeliveryScheduler) Estimate() time.Time {
	return d.now().UTC().AddDate(0, 0, d.days())
}

// Schedule attaches the estimate to the session and saves it on the order.
// A failed save is logged and does not affect the confirmed session.
func (d *DeliveryScheduler) Schedule(ctx context.Context, sess *checkout.Session, user identity.User, orderID string) string {
	ctx = context.WithoutCancel(ctx)
	l := logging.FromContext(ctx).With("component", "order.delivery", "order_id", orderID)

	date := d.Estimate().Format(dateLayout)
	if err := sess.SetDeliveryDate(date); err != nil {
		l.Error("delivery_date_error", "error", err)
		return ""
	}
	if err := d.orders.SetDeliveryDate(ctx, user, orderID, date); err != nil {
		l.Warn("delivery_date_save_error", "date", date, "error", err)
	}
	return date
}
