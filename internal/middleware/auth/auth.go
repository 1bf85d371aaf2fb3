package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/labstack/echo/v4"
)

const (
	AccessCookie = "accessToken"

	userKey = "user"
)

// TokenFrom returns the access token of the request: the Authorization bearer
// token first, then the access cookie. cookie reports where it came from.
func TokenFrom(c echo.Context) (token string, cookie bool) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(raw), false
		}
	}
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	return "", false
}

// RequireUser rejects requests without a valid access token.
func RequireUser(secret []byte) echo.MiddlewareFunc {
	return authenticate(secret, true)
}

// OptionalUser resolves the caller when a token is present and lets
// anonymous requests through. An invalid token is still rejected.
func OptionalUser(secret []byte) echo.MiddlewareFunc {
	return authenticate(secret, false)
}

func authenticate(secret []byte, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, _ := TokenFrom(c)
			if raw == "" {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "login required")
				}
				return next(c)
			}

			u, err := identity.FromToken(raw, secret)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				return err
			}

			c.Set(userKey, u)
			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("user_id", u.ID)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
			return next(c)
		}
	}
}

func UserFrom(c echo.Context) (identity.User, bool) {
	u, ok := c.Get(userKey).(identity.User)
	return u, ok
}
