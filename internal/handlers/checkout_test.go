package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/idempotency"
	"github.com/core2cover/api/internal/services"
)

type stubCheckoutService struct {
	quoteCmd  services.QuoteCommand
	placeCmd  services.PlaceOrderCommand
	placed    int
	quote     services.CheckoutQuote
	order     services.Order
	err       error
	snapshots [][]services.LineItemInput
}

func (s *stubCheckoutService) Quote(_ context.Context, cmd services.QuoteCommand) (services.CheckoutQuote, error) {
	s.quoteCmd = cmd
	return s.quote, s.err
}

func (s *stubCheckoutService) PlaceOrder(_ context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	s.placeCmd = cmd
	s.placed++
	return s.order, s.err
}

func (s *stubCheckoutService) SnapshotCart(_ context.Context, lines []services.LineItemInput) (string, error) {
	s.snapshots = append(s.snapshots, lines)
	if s.err != nil {
		return "", s.err
	}
	return "snap-1", nil
}

func checkoutRouter(svc services.CheckoutService, opts ...RouteOption) http.Handler {
	h := NewCheckoutHandlers(nil, svc, opts...)
	return NewRouter(
		WithMiddlewares(withTestIdentity("cust-1")),
		WithCheckoutRoutes(h.Routes),
		WithCartRoutes(h.CartRoutes),
	)
}

func TestCheckoutQuote(t *testing.T) {
	svc := &stubCheckoutService{quote: services.CheckoutQuote{
		Currency: "INR",
		Items: []services.LineItem{{
			ProductID:          "prd_1",
			Name:               "Sofa",
			UnitPrice:          decimal.NewFromInt(15000),
			Quantity:           2,
			TripsRequired:      1,
			ShippingChargeType: domain.ShippingChargeFree,
		}},
		Summary: services.OrderSummary{
			Subtotal:       decimal.NewFromInt(30000),
			PlatformCharge: decimal.NewFromInt(1000),
			DeliveryCharge: decimal.NewFromInt(1000),
			GrandTotal:     decimal.NewFromInt(31000),
		},
		CreditUse: decimal.NewFromInt(500),
		AmountDue: decimal.NewFromInt(30500),
	}}

	rr := doJSON(t, checkoutRouter(svc), http.MethodPost, "/api/v1/checkout/quote", map[string]any{
		"items":       []map[string]any{{"productId": "prd_1", "quantity": 2}},
		"storeCredit": 500,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.quoteCmd.CustomerID != "cust-1" || svc.quoteCmd.StoreCredit != "500" {
		t.Fatalf("unexpected command %+v", svc.quoteCmd)
	}
	if len(svc.quoteCmd.Lines) != 1 || svc.quoteCmd.Lines[0].Quantity.String() != "2" {
		t.Fatalf("expected numeric quantity to pass through, got %+v", svc.quoteCmd.Lines)
	}

	body := decodeResponse[quotePayload](t, rr)
	if body.Summary.GrandTotal != "31000.00" || body.AmountDue != "30500.00" {
		t.Fatalf("unexpected totals %+v", body)
	}
	if len(body.Items) != 1 || body.Items[0].LineTotal != "30000.00" {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestCheckoutPlaceOrder(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubCheckoutService{order: services.Order{
		ID:         "ord_1",
		CustomerID: "cust-1",
		Status:     domain.OrderStatusPending,
		Currency:   "INR",
		GrandTotal: decimal.NewFromInt(31000),
		AmountDue:  decimal.NewFromInt(31000),
		Items: []services.OrderItem{{
			ID:       "itm_1",
			OrderID:  "ord_1",
			Status:   domain.OrderStatusPending,
			Quantity: 2,
			Total:    decimal.NewFromInt(30000),
		}},
		CreatedAt: created,
	}}

	rr := doJSON(t, checkoutRouter(svc), http.MethodPost, "/api/v1/checkout", map[string]any{
		"items":           []map[string]any{{"productId": "prd_1", "quantity": "2"}},
		"paymentMethod":   "card",
		"shippingAddress": map[string]any{"recipient": "Asha", "line1": "12 MG Road", "city": "Pune", "postalCode": "411001", "country": "IN"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/orders/ord_1" {
		t.Fatalf("unexpected location %q", loc)
	}
	if svc.placeCmd.ShippingAddress == nil || svc.placeCmd.ShippingAddress.City != "Pune" {
		t.Fatalf("expected shipping address to be forwarded, got %+v", svc.placeCmd.ShippingAddress)
	}

	body := decodeResponse[orderPayload](t, rr)
	if body.ID != "ord_1" || len(body.Items) != 1 {
		t.Fatalf("unexpected order %+v", body)
	}
	if body.Items[0].Label.Text != "Processing" {
		t.Fatalf("expected pending item label Processing, got %q", body.Items[0].Label.Text)
	}
}

func TestCheckoutPlaceOrderReplaysIdempotentRequest(t *testing.T) {
	svc := &stubCheckoutService{order: services.Order{ID: "ord_1", CustomerID: "cust-1"}}
	router := checkoutRouter(svc, WithIdempotencyGuard(idempotency.Guard(idempotency.NewMemoryStore())))

	body := map[string]any{"items": []map[string]any{{"productId": "prd_1", "quantity": 1}}}
	first := doJSON(t, router, http.MethodPost, "/api/v1/checkout", body, "Idempotency-Key", "key-1")
	second := doJSON(t, router, http.MethodPost, "/api/v1/checkout", body, "Idempotency-Key", "key-1")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both responses 201, got %d and %d", first.Code, second.Code)
	}
	if svc.placed != 1 {
		t.Fatalf("expected a single order placement, got %d", svc.placed)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected replayed body to match")
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: cart is empty", services.ErrCheckoutInvalidInput), http.StatusBadRequest, "invalid_request"},
		{services.ErrCheckoutProductNotFound, http.StatusUnprocessableEntity, "product_not_found"},
		{services.ErrCheckoutInsufficientCredit, http.StatusConflict, "insufficient_store_credit"},
		{services.ErrCheckoutStoreCreditDisabled, http.StatusUnprocessableEntity, "store_credit_disabled"},
		{services.ErrCheckoutUnavailable, http.StatusServiceUnavailable, "checkout_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "checkout_failed"},
	}
	for _, tc := range cases {
		svc := &stubCheckoutService{err: tc.err}
		rr := doJSON(t, checkoutRouter(svc), http.MethodPost, "/api/v1/checkout", map[string]any{})
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if code := errorCode(t, rr); code != tc.code {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.code, code)
		}
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	h := NewCheckoutHandlers(nil, &stubCheckoutService{})
	router := NewRouter(WithCheckoutRoutes(h.Routes))

	rr := doJSON(t, router, http.MethodPost, "/api/v1/checkout/quote", map[string]any{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	svc := &stubCheckoutService{}
	rr := doJSON(t, checkoutRouter(svc), http.MethodPost, "/api/v1/checkout/quote", "not-an-object")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCartSnapshot(t *testing.T) {
	svc := &stubCheckoutService{}
	rr := doJSON(t, checkoutRouter(svc), http.MethodPost, "/api/v1/cart/snapshot", map[string]any{
		"items": []map[string]any{{"productId": "prd_1", "quantity": 3}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse[map[string]string](t, rr)
	if body["cartSnapshot"] != "snap-1" {
		t.Fatalf("unexpected snapshot %v", body)
	}
	if len(svc.snapshots) != 1 || len(svc.snapshots[0]) != 1 {
		t.Fatalf("expected one snapshot with one line, got %v", svc.snapshots)
	}
}
