package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/repositories"
)

func catalogSofa() domain.Product {
	return domain.Product{
		ID:                        "prd_sofa",
		SellerID:                  "seller-1",
		Name:                      "Teak Sofa",
		BasePrice:                 decimal.NewFromInt(10000),
		Price:                     decimal.NewFromInt(10500),
		UnitsPerTrip:              2,
		ShippingChargeType:        domain.ShippingChargePaid,
		ShippingChargePerTrip:     decimal.NewFromInt(500),
		InstallationAvailable:     domain.InstallationYes,
		InstallationChargePerUnit: decimal.NewFromInt(300),
	}
}

type checkoutFixture struct {
	svc       CheckoutService
	orders    *stubOrderRepo
	credits   *stubStoreCreditRepo
	publisher *recordingPublisher
	inserted  []domain.Order
	debits    []decimal.Decimal
}

func newCheckoutFixture(t *testing.T, creditEnabled bool) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		credits:   &stubStoreCreditRepo{balances: map[string]decimal.Decimal{"cust-1": decimal.NewFromInt(1000)}},
		publisher: &recordingPublisher{},
	}
	f.orders = &stubOrderRepo{insertFn: func(_ context.Context, order domain.Order, debit decimal.Decimal) error {
		f.inserted = append(f.inserted, order)
		f.debits = append(f.debits, debit)
		return nil
	}}
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Orders:            f.orders,
		Products:          &stubProductRepo{products: map[string]domain.Product{"prd_sofa": catalogSofa()}},
		StoreCredits:      f.credits,
		Notifications:     f.publisher,
		EnableStoreCredit: creditEnabled,
		Clock:             fixedClock(time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)),
		IDGenerator:       sequentialIDs("01J"),
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	f.svc = svc
	return f
}

func sofaLine(quantity string) LineItemInput {
	return LineItemInput{
		ProductID: "prd_sofa",
		UnitPrice: "1",
		Quantity:  domain.NumericInput(quantity),
	}
}

func TestCheckoutPlaceOrderRepricesFromCatalog(t *testing.T) {
	f := newCheckoutFixture(t, true)

	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:      "cust-1",
		Lines:           []LineItemInput{sofaLine("3")},
		StoreCredit:     "500",
		PaymentMethod:   "upi",
		ShippingAddress: &Address{Recipient: " Asha ", City: "Pune", Country: "in"},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if order.ID != "ord_01J01" || order.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order identity %s/%s", order.ID, order.Status)
	}
	expect := map[string]decimal.Decimal{
		"subtotal":     decimal.NewFromInt(31500),
		"platform":     decimal.NewFromInt(69),
		"delivery":     decimal.NewFromInt(1069),
		"shipping":     decimal.NewFromInt(1069),
		"installation": decimal.NewFromInt(900),
		"grand":        decimal.NewFromInt(33469),
		"credit":       decimal.NewFromInt(500),
		"due":          decimal.NewFromInt(32969),
	}
	got := map[string]decimal.Decimal{
		"subtotal":     order.Subtotal,
		"platform":     order.PlatformCharge,
		"delivery":     order.DeliveryCharge,
		"shipping":     order.ShippingCharge,
		"installation": order.InstallationTotal,
		"grand":        order.GrandTotal,
		"credit":       order.CreditUsed,
		"due":          order.AmountDue,
	}
	for key, want := range expect {
		if !got[key].Equal(want) {
			t.Fatalf("%s: expected %s, got %s", key, want, got[key])
		}
	}

	if len(order.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.ID != "itm_01J02" || item.TripsRequired != 2 || item.SellerID != "seller-1" {
		t.Fatalf("unexpected item %+v", item)
	}
	if !item.Total.Equal(decimal.NewFromInt(33400)) {
		t.Fatalf("expected item total 33400, got %s", item.Total)
	}
	if order.ShippingAddress == nil || order.ShippingAddress.Recipient != "Asha" || order.ShippingAddress.Country != "IN" {
		t.Fatalf("expected cleaned address, got %+v", order.ShippingAddress)
	}

	if len(f.debits) != 1 || !f.debits[0].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected credit debit of 500, got %v", f.debits)
	}
	if len(f.publisher.orders) != 1 || f.publisher.orders[0].SellerIDs[0] != "seller-1" {
		t.Fatalf("expected order.created event, got %+v", f.publisher.orders)
	}
}

func TestCheckoutRejectsCreditAboveBalance(t *testing.T) {
	f := newCheckoutFixture(t, true)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:  "cust-1",
		Lines:       []LineItemInput{sofaLine("1")},
		StoreCredit: "1000.01",
	})
	if !errors.Is(err, ErrCheckoutInsufficientCredit) {
		t.Fatalf("expected ErrCheckoutInsufficientCredit, got %v", err)
	}
	if len(f.inserted) != 0 {
		t.Fatalf("order must not be persisted")
	}
}

func TestCheckoutClampsCreditToGrandTotal(t *testing.T) {
	f := newCheckoutFixture(t, true)
	f.credits.balances["cust-1"] = decimal.NewFromInt(50000)

	order, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:  "cust-1",
		Lines:       []LineItemInput{sofaLine("3")},
		StoreCredit: "40000",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !order.CreditUsed.Equal(decimal.NewFromInt(33469)) || !order.AmountDue.IsZero() {
		t.Fatalf("expected credit clamped to grand total, got used=%s due=%s", order.CreditUsed, order.AmountDue)
	}
	if order.PaymentMethod != paymentMethodStoreCredit {
		t.Fatalf("expected store credit payment method, got %q", order.PaymentMethod)
	}
}

func TestCheckoutInvalidCredit(t *testing.T) {
	f := newCheckoutFixture(t, true)
	for _, raw := range []string{"-1", "abc"} {
		_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
			CustomerID:  "cust-1",
			Lines:       []LineItemInput{sofaLine("1")},
			StoreCredit: raw,
		})
		if !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("credit %q: expected ErrCheckoutInvalidInput, got %v", raw, err)
		}
	}
}

func TestCheckoutStoreCreditDisabled(t *testing.T) {
	f := newCheckoutFixture(t, false)
	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:  "cust-1",
		Lines:       []LineItemInput{sofaLine("1")},
		StoreCredit: "10",
	})
	if !errors.Is(err, ErrCheckoutStoreCreditDisabled) {
		t.Fatalf("expected ErrCheckoutStoreCreditDisabled, got %v", err)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	f := newCheckoutFixture(t, true)
	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: "cust-1",
		Lines:      []LineItemInput{{ProductID: "prd_gone", UnitPrice: "100", Quantity: "1"}},
	})
	if !errors.Is(err, ErrCheckoutProductNotFound) {
		t.Fatalf("expected ErrCheckoutProductNotFound, got %v", err)
	}
}

func TestCheckoutMapsConcurrentCreditDrain(t *testing.T) {
	f := newCheckoutFixture(t, true)
	f.orders.insertFn = func(_ context.Context, order domain.Order, _ decimal.Decimal) error {
		return repositories.NewStoreCreditError(order.CustomerID, repositories.StoreCreditErrorInsufficient, "balance drained")
	}
	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:  "cust-1",
		Lines:       []LineItemInput{sofaLine("1")},
		StoreCredit: "100",
	})
	if !errors.Is(err, ErrCheckoutInsufficientCredit) {
		t.Fatalf("expected ErrCheckoutInsufficientCredit, got %v", err)
	}
	if len(f.publisher.orders) != 0 {
		t.Fatalf("no event expected for failed checkout")
	}
}

func TestCheckoutQuoteFromSnapshot(t *testing.T) {
	f := newCheckoutFixture(t, true)

	snapshot, err := f.svc.SnapshotCart(context.Background(), []LineItemInput{
		{ProductID: "prd_legacy", UnitPrice: "2000", Quantity: "2", ShippingChargeType: "Free"},
	})
	if err != nil {
		t.Fatalf("SnapshotCart: %v", err)
	}

	quote, err := f.svc.Quote(context.Background(), QuoteCommand{CartSnapshot: snapshot})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !quote.Summary.Subtotal.Equal(decimal.NewFromInt(4000)) || !quote.Summary.GrandTotal.Equal(decimal.NewFromInt(4089)) {
		t.Fatalf("unexpected quote summary %+v", quote.Summary)
	}
	if quote.Currency != "INR" || quote.Formatted["grandTotal"] == "" {
		t.Fatalf("expected formatted INR amounts, got %+v", quote.Formatted)
	}
	if len(f.inserted) != 0 {
		t.Fatalf("quote must not persist")
	}
}

func TestCheckoutRejectsEmptyCartAndBadSnapshot(t *testing.T) {
	f := newCheckoutFixture(t, true)
	if _, err := f.svc.Quote(context.Background(), QuoteCommand{}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for empty cart, got %v", err)
	}
	if _, err := f.svc.Quote(context.Background(), QuoteCommand{CartSnapshot: "%%%"}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for unreadable snapshot, got %v", err)
	}
}

func TestCheckoutRejectsOversizedQuantity(t *testing.T) {
	f := newCheckoutFixture(t, true)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID: "cust-1",
		Lines:      []LineItemInput{sofaLine("1500000")},
	})
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for oversized quantity, got %v", err)
	}
	if _, err := f.svc.Quote(context.Background(), QuoteCommand{Lines: []LineItemInput{sofaLine("1500000")}}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected quote to reject oversized quantity, got %v", err)
	}
	if len(f.inserted) != 0 {
		t.Fatalf("oversized order must not persist")
	}
}

func TestInstallationChoice(t *testing.T) {
	if installationChoice(domain.InstallationNo, "yes") != domain.InstallationNo {
		t.Fatalf("customer cannot opt into installation the seller does not offer")
	}
	if installationChoice(domain.InstallationYes, "no") != domain.InstallationNo {
		t.Fatalf("customer may decline installation")
	}
	if installationChoice(domain.InstallationYes, "") != domain.InstallationYes {
		t.Fatalf("offered installation applies by default")
	}
}
