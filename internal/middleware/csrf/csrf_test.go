package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, cfg Config, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	e.Use(Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/api/cart", ok)
	e.POST("/api/cart/items", ok)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		cookie bool
		bearer bool
		header string
		origin string
		cfg    Config
		status int
	}{
		{name: "safe method issues token", method: http.MethodGet, status: http.StatusNoContent},
		{name: "anonymous post", method: http.MethodPost, status: http.StatusNoContent},
		{name: "bearer post", method: http.MethodPost, bearer: true, status: http.StatusNoContent},
		{name: "cookie post without token", method: http.MethodPost, cookie: true, origin: "http://example.com", status: http.StatusForbidden},
		{name: "cookie post wrong token", method: http.MethodPost, cookie: true, header: "nope", origin: "http://example.com", status: http.StatusForbidden},
		{name: "cookie post foreign origin", method: http.MethodPost, cookie: true, header: "tok", origin: "http://evil.test", status: http.StatusForbidden},
		{name: "cookie post valid", method: http.MethodPost, cookie: true, header: "tok", origin: "http://example.com", status: http.StatusNoContent},
		{name: "cookie post without origin", method: http.MethodPost, cookie: true, header: "tok", status: http.StatusForbidden},
		{name: "default config foreign origin", method: http.MethodPost, cookie: true, header: "tok", origin: "http://evil.test", cfg: DefaultConfig(), status: http.StatusForbidden},
		{name: "origin check skipped", method: http.MethodPost, cookie: true, header: "tok", origin: "http://evil.test", cfg: Config{SkipSameOrigin: true}, status: http.StatusNoContent},
		{name: "origin check skipped still needs token", method: http.MethodPost, cookie: true, origin: "http://evil.test", cfg: Config{SkipSameOrigin: true}, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := "/api/cart/items"
			if tt.method == http.MethodGet {
				path = "/api/cart"
			}
			req := httptest.NewRequest(tt.method, path, nil)
			req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "accessToken", Value: "jwt"})
			}
			if tt.bearer {
				req.Header.Set(echo.HeaderAuthorization, "Bearer jwt")
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec := serve(t, tt.cfg, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMiddleware_IssuesTokenOnSafeMethods(t *testing.T) {
	t.Parallel()

	rec := serve(t, Config{}, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	token := rec.Header().Get("X-CSRF-Token")
	assert.NotEmpty(t, token)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "XSRF-TOKEN="+token)
}
