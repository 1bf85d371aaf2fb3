package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var user = identity.User{ID: "42", Token: "tok"}

func address() models.Address {
	return models.Address{
		FullName:    "Asha Rao",
		PhoneNumber: "9876543210",
		Street:      "12 MG Road",
		City:        "Pune",
		State:       "MH",
		PostalCode:  "411001",
		Country:     "India",
	}
}

func card() *models.Card {
	return &models.Card{Number: "4111 1111 1111 1111", Holder: "Asha Rao", Expiry: "09/28", CVV: "123"}
}

// orderServer answers POST /orders with the queued responses in order.
type orderServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses []func(w http.ResponseWriter)
	bodies    [][]byte
	calls     atomic.Int32
	delivery  []string
}

func newOrderServer(t *testing.T, responses ...func(w http.ResponseWriter)) *orderServer {
	t.Helper()

	s := &orderServer{responses: responses}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.bodies = append(s.bodies, body)
		next := s.responses[0]
		if len(s.responses) > 1 {
			s.responses = s.responses[1:]
		}
		s.mu.Unlock()

		next(w)
	})
	mux.HandleFunc("PUT /admin/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		s.delivery = append(s.delivery, r.PathValue("id")+"="+body["deliveryDate"])
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func setup(t *testing.T) (*cart.Store, *checkout.Session) {
	t.Helper()

	ctx := context.Background()
	c := cart.Open(ctx, storage.NewMemory(), cart.Key("42"))
	require.NoError(t, c.Add(ctx, models.Product{ID: "17", Name: "Kettle", Price: decimal.RequireFromString("1299.50"), StockQuantity: 4}))
	require.NoError(t, c.Add(ctx, models.Product{ID: "17", Name: "Kettle", Price: decimal.RequireFromString("1299.50"), StockQuantity: 4}))
	require.NoError(t, c.Add(ctx, models.Product{ID: "sku-9", Name: "Mug", Price: decimal.RequireFromString("0.10"), StockQuantity: 9}))

	s := checkout.New("42", c)
	require.NoError(t, s.Proceed(ctx))
	require.NoError(t, s.ChooseAddress(ctx, address()))
	return c, s
}

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	_, s := setup(t)
	require.NoError(t, s.ChoosePayment(context.Background(), models.PaymentSelection{SavedMethodID: "11"}))
	sub, err := s.BeginSubmit(context.Background())
	require.NoError(t, err)

	p, err := BuildPayload(sub)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "card", got["paymentMethod"])
	assert.Equal(t, "11", got["savedPaymentMethodId"])
	assert.EqualValues(t, 42, got["userId"])
	assert.EqualValues(t, 2599.1, got["totalPrice"])

	items := got["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.EqualValues(t, 17, first["productId"])
	assert.EqualValues(t, 1299.5, first["price"])
	assert.EqualValues(t, 2, first["quantity"])
	assert.Equal(t, "sku-9", items[1].(map[string]any)["productId"])

	var addr models.Address
	require.NoError(t, json.Unmarshal([]byte(got["addressJson"].(string)), &addr))
	assert.Equal(t, address(), addr)
	assert.Contains(t, got["addressJson"], `"zipCode":"411001"`)
}

func TestBuildPayload_OmitsCardDetails(t *testing.T) {
	t.Parallel()

	_, s := setup(t)
	require.NoError(t, s.ChoosePayment(context.Background(), models.PaymentSelection{Method: models.PaymentCard, Card: card()}))
	sub, err := s.BeginSubmit(context.Background())
	require.NoError(t, err)

	p, err := BuildPayload(sub)
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "4111")
	assert.NotContains(t, string(raw), "savedPaymentMethodId")
	assert.Equal(t, "card", p.PaymentMethod)
}

func TestSubmit_ServerErrorThenRetryConfirms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newOrderServer(t,
		respond(http.StatusInternalServerError, `{"message":"db down"}`),
		respond(http.StatusCreated, `{"id": 501, "status": ""}`),
	)
	c, s := setup(t)
	sub := NewSubmitter(NewClient(srv.URL, time.Second), nil)

	bad := card()
	bad.Number = "4111 1111 1111 1112"
	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCard, Card: bad}))

	_, err := sub.Submit(ctx, s, user)
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, KindServer, serr.Kind)
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, checkout.StatePaymentPending, s.State())
	assert.Equal(t, 2, c.Len())
	assert.ErrorIs(t, s.LastError(), ErrServer)

	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCard, Card: card()}))
	res, err := sub.Submit(ctx, s, user)
	require.NoError(t, err)
	assert.Equal(t, "501", res.OrderID)
	assert.Equal(t, DefaultStatus, res.Status)
	assert.Empty(t, res.DeliveryDate)
	assert.Equal(t, checkout.StateConfirmed, s.State())
	assert.Equal(t, "501", s.OrderID())
	assert.Zero(t, c.Len())
	assert.EqualValues(t, 2, srv.calls.Load())
}

func TestSubmit_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		kind   Kind
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, kind: KindValidation, want: ErrValidation},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, kind: KindValidation, want: ErrValidation},
		{name: "bad gateway", status: http.StatusBadGateway, kind: KindServer, want: ErrServer},
		{name: "redirect", status: http.StatusNotModified, kind: KindServer, want: ErrServer},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newOrderServer(t, respond(tt.status, `{"error":"nope"}`))
			c, s := setup(t)
			require.NoError(t, s.ChoosePayment(context.Background(), models.PaymentSelection{Method: models.PaymentCOD}))

			_, err := NewSubmitter(NewClient(srv.URL, time.Second), nil).Submit(context.Background(), s, user)
			var serr *SubmitError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.kind, serr.Kind)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, checkout.StatePaymentPending, s.State())
			assert.Equal(t, 2, c.Len())
		})
	}
}

func TestSubmit_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, s := setup(t)
	require.NoError(t, s.ChoosePayment(context.Background(), models.PaymentSelection{Method: models.PaymentCOD}))

	_, err := NewSubmitter(NewClient(srv.URL, time.Second), nil).Submit(context.Background(), s, user)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, checkout.StatePaymentPending, s.State())
	assert.Equal(t, 2, c.Len())
}

func TestSubmit_InvalidPaymentMakesNoCall(t *testing.T) {
	t.Parallel()

	srv := newOrderServer(t, respond(http.StatusCreated, `{"id":1}`))
	c, s := setup(t)
	bad := card()
	bad.CVV = "1"
	require.NoError(t, s.ChoosePayment(context.Background(), models.PaymentSelection{Method: models.PaymentCard, Card: bad}))

	_, err := NewSubmitter(NewClient(srv.URL, time.Second), nil).Submit(context.Background(), s, user)
	assert.ErrorIs(t, err, checkout.ErrValidation)
	assert.Zero(t, srv.calls.Load())
	assert.Equal(t, checkout.StatePaymentPending, s.State())
	assert.Equal(t, 2, c.Len())
}

func TestSubmit_AbandonedInFlightStillConfirms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{})
	srv := newOrderServer(t, func(w http.ResponseWriter) {
		close(entered)
		<-release
		respond(http.StatusOK, `{"id":"A-1","status":"Processing"}`)(w)
	})
	c, s := setup(t)
	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCOD}))

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := NewSubmitter(NewClient(srv.URL, 5*time.Second), nil).Submit(ctx, s, user)
		done <- outcome{res, err}
	}()

	<-entered
	_, err := s.BeginSubmit(ctx)
	assert.ErrorIs(t, err, checkout.ErrState)
	require.NoError(t, s.Abandon(ctx))
	close(release)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "Processing", out.res.Status)
	assert.Equal(t, checkout.StateConfirmed, s.State())
	assert.True(t, s.Abandoned())
	assert.Zero(t, c.Len())
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestSubmit_CallerCancelledInFlightStillConfirms(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	entered := make(chan struct{})
	srv := newOrderServer(t, func(w http.ResponseWriter) {
		close(entered)
		<-release
		respond(http.StatusCreated, `{"id":900}`)(w)
	})
	c, s := setup(t)
	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCOD}))

	client := NewClient(srv.URL, 5*time.Second)
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := NewSubmitter(client, NewDeliveryScheduler(client)).Submit(ctx, s, user)
		done <- outcome{res, err}
	}()

	<-entered
	cancel()
	close(release)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "900", out.res.OrderID)
	assert.NotEmpty(t, out.res.DeliveryDate)
	assert.Equal(t, checkout.StateConfirmed, s.State())
	assert.Equal(t, "900", s.OrderID())
	assert.Zero(t, c.Len())
	assert.EqualValues(t, 1, srv.calls.Load())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"900=" + out.res.DeliveryDate}, srv.delivery)
}

func TestSubmit_SchedulesDelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newOrderServer(t, respond(http.StatusCreated, `{"id":77,"status":"Placed"}`))
	client := NewClient(srv.URL, time.Second)

	d := NewDeliveryScheduler(client)
	d.now = func() time.Time { return time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC) }
	d.days = func() int { return 6 }

	_, s := setup(t)
	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCOD}))

	res, err := NewSubmitter(client, d).Submit(ctx, s, user)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-23", res.DeliveryDate)
	assert.Equal(t, "2026-10-23", s.View().DeliveryDate)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"77=2026-10-23"}, srv.delivery)
}

type failingUpdater struct{}

func (failingUpdater) SetDeliveryDate(context.Context, identity.User, string, string) error {
	return ErrNetwork
}

func TestDeliveryScheduler_SaveFailureKeepsConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newOrderServer(t, respond(http.StatusCreated, `{"id":78}`))
	_, s := setup(t)
	require.NoError(t, s.ChoosePayment(ctx, models.PaymentSelection{Method: models.PaymentCOD}))

	res, err := NewSubmitter(NewClient(srv.URL, time.Second), NewDeliveryScheduler(failingUpdater{})).Submit(ctx, s, user)
	require.NoError(t, err)
	assert.NotEmpty(t, res.DeliveryDate)
	assert.Equal(t, checkout.StateConfirmed, s.State())
}

func TestDeliveryScheduler_EstimateRange(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDeliveryScheduler(failingUpdater{})
	d.now = func() time.Time { return base }

	for i := 0; i < 200; i++ {
		days := int(d.Estimate().Sub(base).Hours() / 24)
		assert.GreaterOrEqual(t, days, minDeliveryDays)
		assert.LessOrEqual(t, days, maxDeliveryDays)
	}
}
