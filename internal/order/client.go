package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

const maxBody = 1 << 20

type Created struct {
	ID     models.ID `json:"id"`
	Status string    `json:"status"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
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
	}
}

// Create posts the order once. Any non-2xx answer or transport failure is
// returned as a *SubmitError.
func (c *Client) Create(ctx context.Context, user identity.User, p Payload) (Created, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Created{}, &SubmitError{Kind: KindValidation, Err: fmt.Errorf("encode payload: %w", err)}
	}

	status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", user, body)
	if err != nil {
		return Created{}, &SubmitError{Kind: KindNetwork, Err: err}
	}
	if status < 200 || status > 299 {
		return Created{}, &SubmitError{Kind: classify(status), Status: status, Message: message(raw)}
	}

	var out Created
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			logging.FromContext(ctx).Warn("order_decode_error", "status", status, "error", err)
			out = Created{}
		}
	}
	return out, nil
}

// SetDeliveryDate records the estimated delivery date of an order.
func (c *Client) SetDeliveryDate(ctx context.Context, user identity.User, orderID, date string) error {
	body, err := json.Marshal(map[string]string{"deliveryDate": date})
	if err != nil {
		return err
	}
	status, raw, err := c.do(ctx, http.MethodPut, c.baseURL+"/admin/orders/"+url.PathEscape(orderID), user, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if status < 200 || status > 299 {
		return &SubmitError{Kind: classify(status), Status: status, Message: message(raw)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, user identity.User, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if user.Token != "" {
		req.Header.Set("Authorization", "Bearer "+user.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// message pulls a human readable reason out of an error body.
func message(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if strings.HasPrefix(s, "<") {
		return ""
	}
	return s
}
