package order

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/models"
)

type Item struct {
	ProductID any         `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
}

// Payload is the body of POST /orders. Prices are sent as JSON numbers and
// the address as a JSON string, the way the order service stores them.
type Payload struct {
	Items                []Item      `json:"items"`
	TotalPrice           json.Number `json:"totalPrice"`
	AddressJSON          string      `json:"addressJson"`
	PaymentMethod        string      `json:"paymentMethod"`
	SavedPaymentMethodID string      `json:"savedPaymentMethodId,omitempty"`
	UserID               any         `json:"userId"`
}

func BuildPayload(sub checkout.Submission) (Payload, error) {
	addr, err := json.Marshal(sub.Address)
	if err != nil {
		return Payload{}, fmt.Errorf("encode address: %w", err)
	}

	items := make([]Item, 0, len(sub.Items))
	for _, e := range sub.Items {
		items = append(items, Item{
			ProductID: numericOrString(e.ProductID),
			Name:      e.Name,
			Price:     json.Number(e.UnitPrice.String()),
			Quantity:  e.Quantity,
		})
	}

	method := sub.Payment.Method
	if sub.Payment.IsSaved() {
		method = models.PaymentCard
	}

	return Payload{
		Items:                items,
		TotalPrice:           json.Number(sub.Total.String()),
		AddressJSON:          string(addr),
		PaymentMethod:        string(method),
		SavedPaymentMethodID: sub.Payment.SavedMethodID,
		UserID:               numericOrString(sub.UserID),
	}, nil
}

// numericOrString keeps numeric ids numeric on the wire.
func numericOrString(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
