package events

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/logging"
)

const (
	TopicCart     = "cart_events"
	TopicCheckout = "checkout_events"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, string, string, any) error {
	return nil
}

// CartListener publishes every committed change of the cart stored under key.
func CartListener(pub Publisher, key string) cart.Listener {
	return func(ctx context.Context, ch cart.Change) {
		total := 0
		for _, e := range ch.Entries {
			total += e.Quantity
		}
		event := map[string]any{
			"type":        "cart_" + string(ch.Op),
			"cart":        key,
			"product_id":  ch.ProductID,
			"lines":       len(ch.Entries),
			"units":       total,
			"occurred_at": time.Now().UTC(),
		}
		if err := pub.PublishEvent(ctx, TopicCart, key, event); err != nil {
			logging.FromContext(ctx).Error("publish_event_error", "topic", TopicCart, "type", event["type"], "error", err)
		}
	}
}

func CheckoutObserver(pub Publisher) checkout.Observer {
	return func(ctx context.Context, s *checkout.Session, tr checkout.Transition) {
		event := map[string]any{
			"type":        "checkout_" + string(tr.To),
			"session_id":  tr.SessionID,
			"user_id":     tr.UserID,
			"from":        tr.From,
			"to":          tr.To,
			"occurred_at": tr.At,
		}
		switch tr.To {
		case checkout.StateAddressPending:
			event["total_price"] = s.Total().String()
		case checkout.StateConfirmed:
			event["order_id"] = s.OrderID()
			event["total_price"] = s.Total().String()
		case checkout.StateFailed:
			if err := s.LastError(); err != nil {
				event["error"] = err.Error()
			}
		}
		if err := pub.PublishEvent(ctx, TopicCheckout, tr.SessionID, event); err != nil {
			logging.FromContext(ctx).Error("publish_event_error", "topic", TopicCheckout, "type", event["type"], "error", err)
		}
	}
}
