package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// ErrPricingInvalidInput is returned by the strict summary when a line carries values the
	// permissive path would silently coerce.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

var (
	platformChargeLowCeiling  = decimal.NewFromInt(10000)
	platformChargeHighCeiling = decimal.NewFromInt(50000)

	platformChargeSmall  = decimal.NewFromInt(89)
	platformChargeMedium = decimal.NewFromInt(69)
	platformChargeLarge  = decimal.NewFromInt(59)

	commissionLowCeiling  = decimal.NewFromInt(10000)
	commissionHighCeiling = decimal.NewFromInt(50000)

	commissionRateSmall  = decimal.RequireFromString("0.07")
	commissionRateMedium = decimal.RequireFromString("0.05")
	commissionRateLarge  = decimal.RequireFromString("0.035")
)

const defaultPricingCurrency = "INR"

// PricingEngine wraps the pure pricing functions with request-scoped logging and the configured
// display currency.
type PricingEngine struct {
	currency string
	logger   func(context.Context, string, map[string]any)
}

// PricingEngineDeps configures a PricingEngine.
type PricingEngineDeps struct {
	Currency string
	Logger   func(context.Context, string, map[string]any)
}

// NewPricingEngine constructs the engine. An empty currency defaults to INR.
func NewPricingEngine(deps PricingEngineDeps) *PricingEngine {
	currencyCode := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currencyCode == "" {
		currencyCode = defaultPricingCurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{currency: currencyCode, logger: logger}
}

// Currency returns the ISO code used for display formatting and persisted orders.
func (e *PricingEngine) Currency() string {
	return e.currency
}

// NormalizeLines sanitises raw client lines, logging every field that had to be coerced.
func (e *PricingEngine) NormalizeLines(ctx context.Context, inputs []LineItemInput) []LineItem {
	items := make([]LineItem, 0, len(inputs))
	for idx, input := range inputs {
		item, coerced := normalizeLineItem(input)
		if len(coerced) > 0 {
			e.logger(ctx, "pricing.line_coerced", map[string]any{
				"index":     idx,
				"productId": item.ProductID,
				"fields":    coerced,
			})
		}
		items = append(items, item)
	}
	return items
}

// Summarize computes the order summary for already sanitised lines.
func (e *PricingEngine) Summarize(ctx context.Context, items []LineItem) OrderSummary {
	summary := ComputeOrderSummary(items)
	e.logger(ctx, "pricing.summary_computed", map[string]any{
		"lines":          len(items),
		"subtotal":       summary.Subtotal.StringFixed(2),
		"platformCharge": summary.PlatformCharge.StringFixed(2),
		"grandTotal":     summary.GrandTotal.StringFixed(2),
	})
	return summary
}

// Format renders an amount in the engine's currency.
func (e *PricingEngine) Format(amount decimal.Decimal) string {
	return FormatAmount(amount, e.currency)
}

// ComputeOrderSummary prices a set of lines. It never fails: out-of-range quantities, trips and
// charges are clamped before accumulation. Negative unit prices are accepted as given.
func ComputeOrderSummary(items []LineItem) OrderSummary {
	subtotal := decimal.Zero
	rawShipping := decimal.Zero
	installationTotal := decimal.Zero

	for _, raw := range items {
		item := sanitizeLineItem(raw)
		quantity := decimal.NewFromInt(int64(item.Quantity))

		subtotal = subtotal.Add(item.UnitPrice.Mul(quantity))
		if !item.ShippingChargeType.IsFree() {
			rawShipping = rawShipping.Add(item.ShippingChargePerTrip.Mul(decimal.NewFromInt(int64(item.TripsRequired))))
		}
		if item.InstallationAvailable.Enabled() {
			installationTotal = installationTotal.Add(item.InstallationChargePerUnit.Mul(quantity))
		}
	}

	platformCharge := PlatformCharge(subtotal)
	deliveryCharge := rawShipping.Add(platformCharge)

	return OrderSummary{
		Subtotal:          subtotal,
		RawShipping:       rawShipping,
		PlatformCharge:    platformCharge,
		DeliveryCharge:    deliveryCharge,
		InstallationTotal: installationTotal,
		GrandTotal:        subtotal.Add(deliveryCharge).Add(installationTotal),
	}
}

// ComputeOrderSummaryStrict rejects lines the permissive summary would coerce.
func ComputeOrderSummaryStrict(items []LineItem) (OrderSummary, error) {
	for idx, item := range items {
		switch {
		case item.UnitPrice.IsNegative():
			return OrderSummary{}, fmt.Errorf("%w: line %d unit price must not be negative", ErrPricingInvalidInput, idx)
		case item.Quantity < 1:
			return OrderSummary{}, fmt.Errorf("%w: line %d quantity must be at least 1", ErrPricingInvalidInput, idx)
		case item.TripsRequired < 1:
			return OrderSummary{}, fmt.Errorf("%w: line %d trips required must be at least 1", ErrPricingInvalidInput, idx)
		case item.ShippingChargePerTrip.IsNegative():
			return OrderSummary{}, fmt.Errorf("%w: line %d shipping charge must not be negative", ErrPricingInvalidInput, idx)
		case item.InstallationChargePerUnit.IsNegative():
			return OrderSummary{}, fmt.Errorf("%w: line %d installation charge must not be negative", ErrPricingInvalidInput, idx)
		}
	}
	return ComputeOrderSummary(items), nil
}

// PlatformCharge returns the flat fee added to delivery for an order subtotal.
func PlatformCharge(subtotal decimal.Decimal) decimal.Decimal {
	switch {
	case !subtotal.IsPositive():
		return decimal.Zero
	case subtotal.LessThan(platformChargeLowCeiling):
		return platformChargeSmall
	case subtotal.LessThanOrEqual(platformChargeHighCeiling):
		return platformChargeMedium
	default:
		return platformChargeLarge
	}
}

// CommissionRate returns the marketplace commission for a seller base price.
func CommissionRate(base decimal.Decimal) decimal.Decimal {
	switch {
	case base.LessThan(commissionLowCeiling):
		return commissionRateSmall
	case base.LessThan(commissionHighCeiling):
		return commissionRateMedium
	default:
		return commissionRateLarge
	}
}

// ComputeListingPrice derives the customer-facing price from a seller base price, rounded half
// away from zero to two decimals.
func ComputeListingPrice(base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return base.Add(base.Mul(CommissionRate(base))).Round(2)
}

// ParseListingPrice is ComputeListingPrice for raw form input. Unparseable input yields zero.
func ParseListingPrice(raw string) decimal.Decimal {
	base, ok := parseDecimal(raw)
	if !ok {
		return decimal.Zero
	}
	return ComputeListingPrice(base)
}

// TripsRequired returns how many delivery trips a quantity needs given a per-trip capacity.
func TripsRequired(quantity, unitsPerTrip int) int {
	if unitsPerTrip < 1 || quantity < 1 {
		return 1
	}
	trips := (quantity + unitsPerTrip - 1) / unitsPerTrip
	if trips < 1 {
		return 1
	}
	return trips
}

// NormalizeLineItem converts a loosely typed client line into a LineItem, substituting defaults
// for missing, non-numeric or negative values.
func NormalizeLineItem(in LineItemInput) LineItem {
	item, _ := normalizeLineItem(in)
	return item
}

// FormatAmount renders an amount with the currency symbol and thousands grouping. Digits come from
// the decimal itself so large amounts keep full precision. Unknown currency codes fall back to INR.
func FormatAmount(amount decimal.Decimal, currencyCode string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		unit = currency.INR
	}
	symbol := message.NewPrinter(language.English).Sprint(currency.Symbol(unit))
	return symbol + " " + groupThousands(amount.StringFixed(2))
}

func groupThousands(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}

func normalizeLineItem(in LineItemInput) (LineItem, []string) {
	var coerced []string

	unitPrice, ok := parseDecimal(in.UnitPrice.String())
	if !ok {
		unitPrice = decimal.Zero
		coerced = append(coerced, "unitPrice")
	}

	quantity, ok := parsePositiveInt(in.Quantity.String())
	if !ok {
		quantity = 1
		coerced = append(coerced, "quantity")
	} else if ExceedsLineQuantity(in.Quantity.String()) {
		coerced = append(coerced, "quantity")
	}

	trips, ok := parsePositiveInt(in.TripsRequired.String())
	if !ok {
		unitsPerTrip, unitsOK := parsePositiveInt(in.UnitsPerTrip.String())
		if !unitsOK {
			unitsPerTrip = 0
		}
		trips = TripsRequired(quantity, unitsPerTrip)
		if strings.TrimSpace(in.TripsRequired.String()) != "" {
			coerced = append(coerced, "tripsRequired")
		}
	}

	shipping, ok := parseDecimal(in.ShippingChargePerTrip.String())
	if !ok || shipping.IsNegative() {
		if strings.TrimSpace(in.ShippingChargePerTrip.String()) != "" {
			coerced = append(coerced, "shippingChargePerTrip")
		}
		shipping = decimal.Zero
	}

	installation, ok := parseDecimal(in.InstallationChargePerUnit.String())
	if !ok || installation.IsNegative() {
		if strings.TrimSpace(in.InstallationChargePerUnit.String()) != "" {
			coerced = append(coerced, "installationChargePerUnit")
		}
		installation = decimal.Zero
	}

	return LineItem{
		ProductID:                 strings.TrimSpace(in.ProductID),
		SellerID:                  strings.TrimSpace(in.SellerID),
		Name:                      strings.TrimSpace(in.Name),
		UnitPrice:                 unitPrice,
		Quantity:                  quantity,
		TripsRequired:             trips,
		ShippingChargeType:        ShippingChargeType(strings.TrimSpace(in.ShippingChargeType)),
		ShippingChargePerTrip:     shipping,
		InstallationAvailable:     InstallationAvailability(strings.ToLower(strings.TrimSpace(in.InstallationAvailable))),
		InstallationChargePerUnit: installation,
	}, coerced
}

func sanitizeLineItem(item LineItem) LineItem {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.TripsRequired < 1 {
		item.TripsRequired = 1
	}
	if item.ShippingChargePerTrip.IsNegative() {
		item.ShippingChargePerTrip = decimal.Zero
	}
	if item.InstallationChargePerUnit.IsNegative() {
		item.InstallationChargePerUnit = decimal.Zero
	}
	return item
}

func parseDecimal(raw string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// parsePositiveInt accepts whole or fractional numerals and truncates toward zero. Values below
// one are rejected; values above MaxLineQuantity are clamped to it.
func parsePositiveInt(raw string) (int, bool) {
	value, ok := parseDecimal(raw)
	if !ok {
		return 0, false
	}
	whole := value.Truncate(0)
	if whole.LessThan(decimal.NewFromInt(1)) {
		return 0, false
	}
	if whole.GreaterThan(decimal.NewFromInt(MaxLineQuantity)) {
		return MaxLineQuantity, true
	}
	return int(whole.IntPart()), true
}

// MaxLineQuantity is the largest quantity one line can be priced at.
const MaxLineQuantity = 1_000_000

// ExceedsLineQuantity reports whether raw is a well-formed quantity above MaxLineQuantity.
func ExceedsLineQuantity(raw string) bool {
	value, ok := parseDecimal(raw)
	if !ok {
		return false
	}
	return value.Truncate(0).GreaterThan(decimal.NewFromInt(MaxLineQuantity))
}
