package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/obfuscate"
	"github.com/core2cover/api/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"
	maxCheckoutLines  = 100

	paymentMethodStoreCredit = "store_credit"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutProductNotFound indicates a cart line references a product that no longer exists.
	ErrCheckoutProductNotFound = errors.New("checkout: product not found")
	// ErrCheckoutInsufficientCredit indicates the requested store credit exceeds the balance.
	ErrCheckoutInsufficientCredit = errors.New("checkout: insufficient store credit")
	// ErrCheckoutStoreCreditDisabled indicates store credit was requested while the feature is off.
	ErrCheckoutStoreCreditDisabled = errors.New("checkout: store credit disabled")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders            repositories.OrderRepository
	Products          repositories.ProductRepository
	StoreCredits      repositories.StoreCreditRepository
	Pricing           *PricingEngine
	Notifications     NotificationPublisher
	EnableStoreCredit bool
	Clock             func() time.Time
	IDGenerator       func() string
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders        repositories.OrderRepository
	products      repositories.ProductRepository
	credits       repositories.StoreCreditRepository
	pricing       *PricingEngine
	notifications NotificationPublisher
	creditEnabled bool
	now           func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.StoreCredits == nil {
		return nil, errors.New("checkout service: store credit repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	pricing := deps.Pricing
	if pricing == nil {
		pricing = NewPricingEngine(PricingEngineDeps{Logger: logger})
	}

	return &checkoutService{
		orders:        deps.Orders,
		products:      deps.Products,
		credits:       deps.StoreCredits,
		pricing:       pricing,
		notifications: deps.Notifications,
		creditEnabled: deps.EnableStoreCredit,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Quote prices the cart with catalog values where the product is known. Lines for unknown
// products are priced as submitted so a stale cart still renders.
func (s *checkoutService) Quote(ctx context.Context, cmd QuoteCommand) (CheckoutQuote, error) {
	inputs, err := s.cartLines(cmd.Lines, cmd.CartSnapshot)
	if err != nil {
		return CheckoutQuote{}, err
	}
	items, err := s.resolveLines(ctx, inputs, false)
	if err != nil {
		return CheckoutQuote{}, err
	}
	summary := s.pricing.Summarize(ctx, items)

	credit, err := s.parseCredit(cmd.StoreCredit)
	if err != nil {
		return CheckoutQuote{}, err
	}
	if credit.IsPositive() && strings.TrimSpace(cmd.CustomerID) != "" {
		if _, err := s.availableCredit(ctx, cmd.CustomerID, credit); err != nil {
			return CheckoutQuote{}, err
		}
	}
	return s.buildQuote(items, summary, clampCredit(credit, summary.GrandTotal)), nil
}

// PlaceOrder reprices every line from the catalog, applies store credit and persists the order,
// its items and the credit debit in one transaction.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrCheckoutInvalidInput)
	}
	inputs, err := s.cartLines(cmd.Lines, cmd.CartSnapshot)
	if err != nil {
		return Order{}, err
	}
	items, err := s.resolveLines(ctx, inputs, true)
	if err != nil {
		return Order{}, err
	}
	summary := s.pricing.Summarize(ctx, items)

	requested, err := s.parseCredit(cmd.StoreCredit)
	if err != nil {
		return Order{}, err
	}
	creditUsed := decimal.Zero
	if requested.IsPositive() {
		if _, err := s.availableCredit(ctx, customerID, requested); err != nil {
			return Order{}, err
		}
		creditUsed = clampCredit(requested, summary.GrandTotal)
	}

	now := s.now()
	order := s.buildOrder(customerID, items, summary, creditUsed, cmd, now)

	if err := s.orders.Insert(ctx, order, creditUsed); err != nil {
		var creditErr *repositories.StoreCreditError
		if errors.As(err, &creditErr) && creditErr.Code == repositories.StoreCreditErrorInsufficient {
			return Order{}, fmt.Errorf("%w: %s", ErrCheckoutInsufficientCredit, creditErr.Message)
		}
		s.logger(ctx, "checkout.persist_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return Order{}, mapCheckoutRepositoryError(err)
	}

	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":    order.ID,
		"customerId": customerID,
		"lines":      len(order.Items),
		"grandTotal": order.GrandTotal.StringFixed(2),
		"creditUsed": creditUsed.StringFixed(2),
	})
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// SnapshotCart encodes the raw cart lines for the client to keep in local storage.
func (s *checkoutService) SnapshotCart(_ context.Context, lines []LineItemInput) (string, error) {
	if len(lines) == 0 || len(lines) > maxCheckoutLines {
		return "", fmt.Errorf("%w: cart must contain between 1 and %d lines", ErrCheckoutInvalidInput, maxCheckoutLines)
	}
	encoded, err := obfuscate.EncodeForDisplay(lines)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	return encoded, nil
}

func (s *checkoutService) cartLines(lines []LineItemInput, snapshot string) ([]LineItemInput, error) {
	if snapshot = strings.TrimSpace(snapshot); snapshot != "" {
		var decoded []LineItemInput
		if err := obfuscate.DecodeForDisplay(snapshot, &decoded); err != nil {
			return nil, fmt.Errorf("%w: cart snapshot is not readable", ErrCheckoutInvalidInput)
		}
		lines = decoded
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	}
	if len(lines) > maxCheckoutLines {
		return nil, fmt.Errorf("%w: cart exceeds %d lines", ErrCheckoutInvalidInput, maxCheckoutLines)
	}
	return lines, nil
}

// resolveLines normalises client lines and overlays catalog values. Only quantity is taken from
// the client for known products.
func (s *checkoutService) resolveLines(ctx context.Context, inputs []LineItemInput, strict bool) ([]LineItem, error) {
	for idx, input := range inputs {
		if ExceedsLineQuantity(input.Quantity.String()) {
			return nil, fmt.Errorf("%w: line %d quantity exceeds %d", ErrCheckoutInvalidInput, idx, MaxLineQuantity)
		}
	}
	items := s.pricing.NormalizeLines(ctx, inputs)
	for idx := range items {
		productID := items[idx].ProductID
		if productID == "" {
			if strict {
				return nil, fmt.Errorf("%w: line %d has no product id", ErrCheckoutInvalidInput, idx)
			}
			continue
		}
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				if strict {
					return nil, fmt.Errorf("%w: %s", ErrCheckoutProductNotFound, productID)
				}
				continue
			}
			return nil, mapCheckoutRepositoryError(err)
		}
		items[idx] = lineFromProduct(product, items[idx].Quantity, inputs[idx])
	}
	return items, nil
}

func lineFromProduct(product Product, quantity int, input LineItemInput) LineItem {
	unitsPerTrip := product.UnitsPerTrip
	if unitsPerTrip < 1 {
		unitsPerTrip = 0
	}
	return LineItem{
		ProductID:                 product.ID,
		SellerID:                  product.SellerID,
		Name:                      product.Name,
		UnitPrice:                 product.Price,
		Quantity:                  quantity,
		TripsRequired:             TripsRequired(quantity, unitsPerTrip),
		ShippingChargeType:        product.ShippingChargeType,
		ShippingChargePerTrip:     product.ShippingChargePerTrip,
		InstallationAvailable:     installationChoice(product.InstallationAvailable, input.InstallationAvailable),
		InstallationChargePerUnit: product.InstallationChargePerUnit,
	}
}

// installationChoice lets the customer decline installation the seller offers, never opt into
// installation the seller does not offer.
func installationChoice(offered domain.InstallationAvailability, requested string) domain.InstallationAvailability {
	if !offered.Enabled() {
		return domain.InstallationNo
	}
	if strings.EqualFold(strings.TrimSpace(requested), string(domain.InstallationNo)) {
		return domain.InstallationNo
	}
	return domain.InstallationYes
}

func (s *checkoutService) parseCredit(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	credit, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: store credit must be numeric", ErrCheckoutInvalidInput)
	}
	if credit.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: store credit must not be negative", ErrCheckoutInvalidInput)
	}
	if credit.IsPositive() && !s.creditEnabled {
		return decimal.Zero, ErrCheckoutStoreCreditDisabled
	}
	return credit.Round(2), nil
}

func (s *checkoutService) availableCredit(ctx context.Context, customerID string, requested decimal.Decimal) (decimal.Decimal, error) {
	account, err := s.credits.Get(ctx, customerID)
	if err != nil {
		return decimal.Zero, mapCheckoutRepositoryError(err)
	}
	if requested.GreaterThan(account.Balance) {
		return decimal.Zero, fmt.Errorf("%w: requested %s, available %s", ErrCheckoutInsufficientCredit,
			requested.StringFixed(2), account.Balance.StringFixed(2))
	}
	return account.Balance, nil
}

// clampCredit caps credit at the grand total so amount due never goes negative.
func clampCredit(credit, grandTotal decimal.Decimal) decimal.Decimal {
	if !grandTotal.IsPositive() {
		return decimal.Zero
	}
	if credit.GreaterThan(grandTotal) {
		return grandTotal
	}
	return credit
}

func (s *checkoutService) buildQuote(items []LineItem, summary OrderSummary, creditUse decimal.Decimal) CheckoutQuote {
	amountDue := summary.GrandTotal.Sub(creditUse)
	return CheckoutQuote{
		Currency:  s.pricing.Currency(),
		Items:     items,
		Summary:   summary,
		CreditUse: creditUse,
		AmountDue: amountDue,
		Formatted: map[string]string{
			"subtotal":          s.pricing.Format(summary.Subtotal),
			"deliveryCharge":    s.pricing.Format(summary.DeliveryCharge),
			"platformCharge":    s.pricing.Format(summary.PlatformCharge),
			"installationTotal": s.pricing.Format(summary.InstallationTotal),
			"grandTotal":        s.pricing.Format(summary.GrandTotal),
			"creditUsed":        s.pricing.Format(creditUse),
			"amountDue":         s.pricing.Format(amountDue),
		},
	}
}

func (s *checkoutService) buildOrder(customerID string, items []LineItem, summary OrderSummary, creditUsed decimal.Decimal, cmd PlaceOrderCommand, now time.Time) Order {
	orderID := orderIDPrefix + s.newID()
	orderItems := make([]OrderItem, 0, len(items))
	for _, line := range items {
		line = sanitizeLineItem(line)
		itemTotal := line.LineTotal()
		if !line.ShippingChargeType.IsFree() {
			itemTotal = itemTotal.Add(line.ShippingChargePerTrip.Mul(decimal.NewFromInt(int64(line.TripsRequired))))
		}
		if line.InstallationAvailable.Enabled() {
			itemTotal = itemTotal.Add(line.InstallationChargePerUnit.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		orderItems = append(orderItems, OrderItem{
			ID:                        orderItemIDPrefix + s.newID(),
			OrderID:                   orderID,
			CustomerID:                customerID,
			ProductID:                 line.ProductID,
			SellerID:                  line.SellerID,
			Name:                      line.Name,
			Status:                    domain.OrderStatusPending,
			UnitPrice:                 line.UnitPrice,
			Quantity:                  line.Quantity,
			TripsRequired:             line.TripsRequired,
			ShippingChargeType:        line.ShippingChargeType,
			ShippingChargePerTrip:     line.ShippingChargePerTrip,
			InstallationAvailable:     line.InstallationAvailable,
			InstallationChargePerUnit: line.InstallationChargePerUnit,
			Total:                     itemTotal,
			CreatedAt:                 now,
			UpdatedAt:                 now,
		})
	}

	paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
	if creditUsed.Equal(summary.GrandTotal) && summary.GrandTotal.IsPositive() {
		paymentMethod = paymentMethodStoreCredit
	}

	return Order{
		ID:                orderID,
		CustomerID:        customerID,
		Status:            domain.OrderStatusPending,
		Currency:          s.pricing.Currency(),
		Items:             orderItems,
		Subtotal:          summary.Subtotal,
		RawShipping:       summary.RawShipping,
		PlatformCharge:    summary.PlatformCharge,
		DeliveryCharge:    summary.DeliveryCharge,
		ShippingCharge:    summary.DeliveryCharge,
		InstallationTotal: summary.InstallationTotal,
		GrandTotal:        summary.GrandTotal,
		CreditUsed:        creditUsed,
		AmountDue:         summary.GrandTotal.Sub(creditUsed),
		PaymentMethod:     paymentMethod,
		ShippingAddress:   cleanAddress(cmd.ShippingAddress),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *checkoutService) publishOrderCreated(ctx context.Context, order Order) {
	if s.notifications == nil {
		return
	}
	event := OrderCreatedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		SellerIDs:  sellerIDs(order.Items),
		GrandTotal: order.GrandTotal,
		AmountDue:  order.AmountDue,
		Currency:   order.Currency,
	}
	if err := s.notifications.PublishOrderCreated(ctx, event); err != nil {
		s.logger(ctx, "checkout.publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func sellerIDs(items []OrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.SellerID == "" {
			continue
		}
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		ids = append(ids, item.SellerID)
	}
	sort.Strings(ids)
	return ids
}

func cleanAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	cleaned := Address{
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      strings.TrimSpace(addr.Phone),
	}
	if cleaned == (Address{}) {
		return nil
	}
	return &cleaned
}

func mapCheckoutRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
