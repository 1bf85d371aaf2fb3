package account

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

// Source is where saved addresses and payment methods come from.
type Source interface {
	Addresses(ctx context.Context, user identity.User) ([]models.SavedAddress, error)
	PaymentMethods(ctx context.Context, user identity.User) ([]models.SavedPaymentMethod, error)
}

type AddressSelector struct {
	src Source
}

func NewAddressSelector(src Source) *AddressSelector {
	return &AddressSelector{src: src}
}

func (s *AddressSelector) List(ctx context.Context, user identity.User) ([]models.SavedAddress, error) {
	return s.src.Addresses(ctx, user)
}

// Adopt copies the saved address id into the session. The saved record is
// not modified.
func (s *AddressSelector) Adopt(ctx context.Context, user identity.User, sess *checkout.Session, id string) error {
	list, err := s.src.Addresses(ctx, user)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.ID.String() == id {
			return sess.ChooseAddress(ctx, a.Address)
		}
	}
	return fmt.Errorf("address %s: %w", id, ErrNotFound)
}

type PaymentSelector struct {
	src Source
}

func NewPaymentSelector(src Source) *PaymentSelector {
	return &PaymentSelector{src: src}
}

func (s *PaymentSelector) List(ctx context.Context, user identity.User) ([]models.SavedPaymentMethod, error) {
	return s.src.PaymentMethods(ctx, user)
}

func (s *PaymentSelector) Adopt(ctx context.Context, user identity.User, sess *checkout.Session, id string) error {
	list, err := s.src.PaymentMethods(ctx, user)
	if err != nil {
		return err
	}
	for _, p := range list {
		if p.ID.String() == id {
			return sess.ChoosePayment(ctx, savedSelection(p))
		}
	}
	return fmt.Errorf("payment method %s: %w", id, ErrNotFound)
}

func savedSelection(p models.SavedPaymentMethod) models.PaymentSelection {
	return models.PaymentSelection{SavedMethodID: p.ID.String(), Method: models.PaymentCard}
}

// Preselect offers the user's default address and default saved card to a
// new session. Lookup failures are logged and leave the session as it is.
func Preselect(ctx context.Context, src Source, user identity.User, sess *checkout.Session) {
	l := logging.FromContext(ctx).With("component", "account.preselect", "session_id", sess.ID())

	var (
		addr *models.Address
		pay  *models.PaymentSelection
	)
	addrs, err := src.Addresses(ctx, user)
	if err != nil {
		l.Warn("preselect_addresses_error", "error", err)
	}
	for _, a := range addrs {
		if a.IsDefault {
			c := a.Address
			addr = &c
			break
		}
	}

	pays, err := src.PaymentMethods(ctx, user)
	if err != nil {
		l.Warn("preselect_payment_methods_error", "error", err)
	}
	for _, p := range pays {
		if p.IsDefault {
			sel := savedSelection(p)
			pay = &sel
			break
		}
	}

	sess.Preselect(addr, pay)
}
