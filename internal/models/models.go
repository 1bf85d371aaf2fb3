package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ID accepts both JSON strings and JSON numbers; the account and catalog
// services use numeric ids.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if n == "" {
		return fmt.Errorf("id: empty value")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type Product struct {
	ID            ID              `json:"id"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
}

type CartEntry struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	StockLimit int             `json:"stockLimit"`
	Quantity   int             `json:"quantity"`
}

func (e CartEntry) LineTotal() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

type Address struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"zipCode"`
	Country     string `json:"country"`
	IsDefault   bool   `json:"isDefault"`
}

type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentCOD        PaymentMethod = "cod"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentWallet     PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCOD, PaymentUPI, PaymentNetBanking, PaymentWallet:
		return true
	}
	return false
}

type Card struct {
	Number string `json:"cardNumber"`
	Holder string `json:"cardName"`
	Expiry string `json:"expiryDate"`
	CVV    string `json:"cvv"`
}

// PaymentSelection is either a saved method reference (SavedMethodID) or an
// inline method with its fields. It lives only as long as one checkout session.
type PaymentSelection struct {
	SavedMethodID string        `json:"savedMethodId,omitempty"`
	Method        PaymentMethod `json:"method"`
	Card          *Card         `json:"card,omitempty"`
	UPIID         string        `json:"upiId,omitempty"`
	Bank          string        `json:"bank,omitempty"`
	Wallet        string        `json:"wallet,omitempty"`
}

func (p PaymentSelection) IsSaved() bool {
	return p.SavedMethodID != ""
}

type SavedAddress struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	Address
}

type SavedPaymentMethod struct {
	ID             ID     `json:"id"`
	CardholderName string `json:"cardholderName"`
	CardNumber     string `json:"cardNumber"`
	CardType       string `json:"cardType"`
	ExpiryMonth    string `json:"expiryMonth"`
	ExpiryYear     string `json:"expiryYear"`
	IsDefault      bool   `json:"isDefault"`
}

func (p SavedPaymentMethod) Last4() string {
	if len(p.CardNumber) <= 4 {
		return p.CardNumber
	}
	return p.CardNumber[len(p.CardNumber)-4:]
}

func (p SavedPaymentMethod) DisplayName() string {
	return p.CardType + " ending " + p.Last4()
}
