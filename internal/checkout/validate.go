package checkout

import (
	"regexp"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	phoneRe      = regexp.MustCompile(`^\d{10}$`)
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

func ValidateAddress(a models.Address) error {
	fields := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"phoneNumber", a.PhoneNumber},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "required"}
		}
	}
	if !phoneRe.MatchString(a.PhoneNumber) {
		return &ValidationError{Field: "phoneNumber", Reason: "must be exactly 10 digits"}
	}
	return nil
}

func ValidatePayment(p models.PaymentSelection) error {
	if p.IsSaved() {
		if p.Method != "" && p.Method != models.PaymentCard {
			return &ValidationError{Field: "method", Reason: "saved methods are cards"}
		}
		return nil
	}
	if !p.Method.Valid() {
		return &ValidationError{Field: "method", Reason: "unknown payment method"}
	}
	if p.Method == models.PaymentCard {
		if p.Card == nil {
			return &ValidationError{Field: "card", Reason: "required"}
		}
		return ValidateCard(*p.Card)
	}
	return nil
}

func ValidateCard(c models.Card) error {
	if strings.TrimSpace(c.Holder) == "" {
		return &ValidationError{Field: "cardName", Reason: "required"}
	}
	if !cardNumberRe.MatchString(NormalizeCardNumber(c.Number)) {
		return &ValidationError{Field: "cardNumber", Reason: "must be 16 digits"}
	}
	if !cvvRe.MatchString(c.CVV) {
		return &ValidationError{Field: "cvv", Reason: "must be 3-4 digits"}
	}
	if !expiryRe.MatchString(c.Expiry) {
		return &ValidationError{Field: "expiryDate", Reason: "must be MM/YY"}
	}
	return nil
}

// NormalizeCardNumber drops the space and dash separators users type.
func NormalizeCardNumber(n string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(n)
}
