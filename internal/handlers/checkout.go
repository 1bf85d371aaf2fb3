package handlers

import (
	"net/http"

	"github.com/Skotchmaster/storefront/internal/account"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/order"
	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	Sessions  *checkout.Registry
	Account   account.Source
	Addresses *account.AddressSelector
	Payments  *account.PaymentSelector
	Submitter *order.Submitter
}

type savedPaymentView struct {
	ID             models.ID `json:"id"`
	DisplayName    string    `json:"displayName"`
	CardholderName string    `json:"cardholderName"`
	CardType       string    `json:"cardType"`
	Last4          string    `json:"last4"`
	ExpiryMonth    string    `json:"expiryMonth"`
	ExpiryYear     string    `json:"expiryYear"`
	IsDefault      bool      `json:"isDefault"`
}

type submitView struct {
	Order   *order.Result `json:"order"`
	Session checkout.View `json:"session"`
}

func (h *CheckoutHandler) session(c echo.Context) (*checkout.Session, identity.User, error) {
	u, _ := auth.UserFrom(c)
	s, err := h.Sessions.Get(c.Request().Context(), c.Param("id"), u.ID)
	return s, u, err
}

func (h *CheckoutHandler) Start(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.start")

	u, _ := auth.UserFrom(c)
	s, err := h.Sessions.Start(ctx, u.ID)
	if err != nil {
		return respondError(c, l, "start_checkout_error", err)
	}
	account.Preselect(ctx, h.Account, u, s)

	l.Info("checkout_started", "session_id", s.ID())
	return c.JSON(http.StatusCreated, s.View())
}

func (h *CheckoutHandler) Get(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "checkout.get")

	s, _, err := h.session(c)
	if err != nil {
		return respondError(c, l, "get_checkout_error", err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *CheckoutHandler) ListAddresses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.addresses")

	_, u, err := h.session(c)
	if err != nil {
		return respondError(c, l, "list_addresses_error", err)
	}
	list, err := h.Addresses.List(ctx, u)
	if err != nil {
		return respondError(c, l, "list_addresses_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CheckoutHandler) ListPaymentMethods(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.payment_methods")

	_, u, err := h.session(c)
	if err != nil {
		return respondError(c, l, "list_payment_methods_error", err)
	}
	list, err := h.Payments.List(ctx, u)
	if err != nil {
		return respondError(c, l, "list_payment_methods_error", err)
	}

	out := make([]savedPaymentView, 0, len(list))
	for _, p := range list {
		out = append(out, savedPaymentView{
			ID:             p.ID,
			DisplayName:    p.DisplayName(),
			CardholderName: p.CardholderName,
			CardType:       p.CardType,
			Last4:          p.Last4(),
			ExpiryMonth:    p.ExpiryMonth,
			ExpiryYear:     p.ExpiryYear,
			IsDefault:      p.IsDefault,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ChooseAddress adopts a saved address when savedAddressId is given and
// otherwise takes the address fields from the body.
func (h *CheckoutHandler) ChooseAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.address")

	s, u, err := h.session(c)
	if err != nil {
		return respondError(c, l, "choose_address_error", err)
	}

	var req struct {
		SavedAddressID models.ID `json:"savedAddressId"`
		models.Address
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("choose_address_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid body"})
	}

	if req.SavedAddressID != "" {
		err = h.Addresses.Adopt(ctx, u, s, req.SavedAddressID.String())
	} else {
		err = s.ChooseAddress(ctx, req.Address)
	}
	if err != nil {
		return respondError(c, l, "choose_address_error", err)
	}
	if err := h.Sessions.Save(ctx, s); err != nil {
		l.Error("checkout_persist_error", "session_id", s.ID(), "error", err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *CheckoutHandler) ChoosePayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.payment")

	s, u, err := h.session(c)
	if err != nil {
		return respondError(c, l, "choose_payment_error", err)
	}

	var req models.PaymentSelection
	if err := c.Bind(&req); err != nil {
		l.Warn("choose_payment_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid body"})
	}

	if req.IsSaved() {
		err = h.Payments.Adopt(ctx, u, s, req.SavedMethodID)
	} else {
		err = s.ChoosePayment(ctx, req)
	}
	if err != nil {
		return respondError(c, l, "choose_payment_error", err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *CheckoutHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.submit")

	s, u, err := h.session(c)
	if err != nil {
		return respondError(c, l, "submit_order_error", err)
	}

	res, err := h.Submitter.Submit(ctx, s, u)
	if err != nil {
		return respondError(c, l, "submit_order_error", err)
	}

	l.Info("order_submitted", "session_id", s.ID(), "order_id", res.OrderID)
	return c.JSON(http.StatusOK, submitView{Order: res, Session: s.View()})
}

func (h *CheckoutHandler) Abandon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.abandon")

	u, _ := auth.UserFrom(c)
	if err := h.Sessions.Discard(ctx, c.Param("id"), u.ID); err != nil {
		return respondError(c, l, "abandon_checkout_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
