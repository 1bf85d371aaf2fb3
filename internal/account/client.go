package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrUnavailable = errors.New("account service unavailable")
	ErrRejected    = errors.New("account service rejected request")
	ErrNotFound    = errors.New("saved record not found")
)

const maxBody = 1 << 20

// Client reads the user's saved addresses and payment methods. Calls go
// through a circuit breaker that opens after consecutive transport or 5xx
// failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "account",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrRejected)
			},
		}),
	}
}

// Addresses returns the saved addresses, defaults first. A response that does
// not decode as a list of addresses yields an empty list.
func (c *Client) Addresses(ctx context.Context, user identity.User) ([]models.SavedAddress, error) {
	raw, err := c.get(ctx, "/addresses", user)
	if err != nil {
		return nil, err
	}
	list := decodeList[models.SavedAddress](ctx, "addresses", raw)
	slices.SortStableFunc(list, func(a, b models.SavedAddress) int {
		return byDefault(a.IsDefault, b.IsDefault)
	})
	return list, nil
}

func (c *Client) PaymentMethods(ctx context.Context, user identity.User) ([]models.SavedPaymentMethod, error) {
	raw, err := c.get(ctx, "/payment-methods", user)
	if err != nil {
		return nil, err
	}
	list := decodeList[models.SavedPaymentMethod](ctx, "payment_methods", raw)
	slices.SortStableFunc(list, func(a, b models.SavedPaymentMethod) int {
		return byDefault(a.IsDefault, b.IsDefault)
	})
	return list, nil
}

func (c *Client) get(ctx context.Context, path string, user identity.User) ([]byte, error) {
	u := c.baseURL + path + "?" + url.Values{"userId": {user.ID}}.Encode()

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if user.Token != "" {
			req.Header.Set("Authorization", "Bearer "+user.Token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
		}
		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, err
}

func decodeList[T any](ctx context.Context, kind string, raw []byte) []T {
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		logging.FromContext(ctx).Warn("account_decode_error", "kind", kind, "error", err)
		return []T{}
	}
	if list == nil {
		return []T{}
	}
	return list
}

func byDefault(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
