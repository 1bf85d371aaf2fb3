package handlers

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type Products interface {
	Lookup(ctx context.Context, id string) (models.Product, error)
}

type CartHandler struct {
	Carts    *cart.Registry
	Products Products
}

type cartView struct {
	Items      []models.CartEntry `json:"items"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	Count      int                `json:"count"`
}

// store returns the caller's cart; anonymous callers share the device cart key.
func (h *CartHandler) store(c echo.Context) *cart.Store {
	userID := ""
	if u, ok := auth.UserFrom(c); ok {
		userID = u.ID
	}
	return h.Carts.For(c.Request().Context(), userID)
}

func viewOf(s *cart.Store) cartView {
	items, total := s.Snapshot()
	count := 0
	for _, e := range items {
		count += e.Quantity
	}
	return cartView{Items: items, TotalPrice: total, Count: count}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, viewOf(h.store(c)))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	var req struct {
		ProductID models.ID `json:"productId"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == "" {
		l.Warn("add_cart_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody{Error: "productId required"})
	}

	p, err := h.Products.Lookup(ctx, req.ProductID.String())
	if err != nil {
		return respondError(c, l, "add_cart_error", err)
	}

	s := h.store(c)
	if err := s.Add(ctx, p); err != nil {
		return respondError(c, l, "add_cart_error", err)
	}

	l.Info("cart_item_added", "product_id", p.ID)
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	var req struct {
		Delta int `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_cart_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid body"})
	}

	s := h.store(c)
	s.SetQuantity(ctx, c.Param("id"), req.Delta)
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	s := h.store(c)
	s.Remove(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, viewOf(s))
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	h.store(c).Clear(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}
