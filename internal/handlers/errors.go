package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/account"
	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/order"
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// statusOf maps domain errors to the HTTP status and body returned to the view.
func statusOf(err error) (int, errorBody) {
	var (
		verr *checkout.ValidationError
		serr *order.SubmitError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Field: verr.Field}
	case errors.As(err, &serr):
		status := http.StatusBadGateway
		if serr.Kind == order.KindValidation {
			status = http.StatusUnprocessableEntity
		}
		return status, errorBody{Error: serr.Error(), Kind: string(serr.Kind)}
	case errors.Is(err, checkout.ErrValidation), errors.Is(err, cart.ErrValidation):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error()}
	case errors.Is(err, checkout.ErrState):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, checkout.ErrNotFound), errors.Is(err, account.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, account.ErrUnavailable), errors.Is(err, account.ErrRejected), errors.Is(err, catalog.ErrUnavailable):
		return http.StatusBadGateway, errorBody{Error: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func respondError(c echo.Context, l *slog.Logger, event string, err error) error {
	status, body := statusOf(err)
	if status >= 500 {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "error", err)
	}
	return c.JSON(status, body)
}
