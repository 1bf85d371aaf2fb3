package checkout

import (
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type PaymentView struct {
	Method        models.PaymentMethod `json:"method,omitempty"`
	SavedMethodID string               `json:"savedMethodId,omitempty"`
	CardLast4     string               `json:"cardLast4,omitempty"`
}

type View struct {
	ID               string             `json:"id"`
	State            State              `json:"state"`
	Items            []models.CartEntry `json:"items"`
	TotalPrice       decimal.Decimal    `json:"totalPrice"`
	Address          *models.Address    `json:"address,omitempty"`
	SuggestedAddress *models.Address    `json:"suggestedAddress,omitempty"`
	Payment          *PaymentView       `json:"payment,omitempty"`
	OrderID          string             `json:"orderId,omitempty"`
	OrderStatus      string             `json:"orderStatus,omitempty"`
	DeliveryDate     string             `json:"deliveryDate,omitempty"`
	LastError        string             `json:"lastError,omitempty"`
	Abandoned        bool               `json:"abandoned,omitempty"`
}

// View is a read-only copy of the session. Card details never leave the
// session apart from the last four digits.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:               s.id,
		State:            s.state,
		Items:            cloneEntries(s.snapshot),
		TotalPrice:       s.total,
		Address:          cloneAddress(s.address),
		SuggestedAddress: cloneAddress(s.suggestedAddress),
		Payment:          paymentView(s.payment),
		OrderID:          s.orderID,
		OrderStatus:      s.orderStatus,
		DeliveryDate:     s.deliveryDate,
		Abandoned:        s.abandoned,
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	return v
}

func paymentView(p *models.PaymentSelection) *PaymentView {
	if p == nil {
		return nil
	}
	v := &PaymentView{Method: p.Method, SavedMethodID: p.SavedMethodID}
	if p.Card != nil {
		n := NormalizeCardNumber(p.Card.Number)
		if len(n) >= 4 {
			v.CardLast4 = n[len(n)-4:]
		}
	}
	return v
}
