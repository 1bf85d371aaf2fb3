package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	CartHandler     *handlers.CartHandler
	CheckoutHandler *handlers.CheckoutHandler
	JWTSecret       []byte
	CSRF            csrf.Config
	// Ready reports whether backing storage answers; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			}
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api", csrf.Middleware(d.CSRF))

	cart := api.Group("/cart", auth.OptionalUser(d.JWTSecret))

	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:id", d.CartHandler.UpdateQuantity)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)

	checkout := api.Group("/checkout", auth.RequireUser(d.JWTSecret))

	checkout.POST("", d.CheckoutHandler.Start)
	checkout.GET("/:id", d.CheckoutHandler.Get)
	checkout.DELETE("/:id", d.CheckoutHandler.Abandon)
	checkout.GET("/:id/addresses", d.CheckoutHandler.ListAddresses)
	checkout.GET("/:id/payment-methods", d.CheckoutHandler.ListPaymentMethods)
	checkout.PUT("/:id/address", d.CheckoutHandler.ChooseAddress)
	checkout.PUT("/:id/payment", d.CheckoutHandler.ChoosePayment)
	checkout.POST("/:id/submit", d.CheckoutHandler.Submit)
}
