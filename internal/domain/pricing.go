package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ShippingChargeType declares whether a seller ships a line item for free or charges per trip.
type ShippingChargeType string

const (
	// ShippingChargeFree means the seller absorbs delivery for the item.
	ShippingChargeFree ShippingChargeType = "Free"
	// ShippingChargePaid means ShippingChargePerTrip is applied once per delivery trip.
	ShippingChargePaid ShippingChargeType = "Paid"
)

// IsFree reports whether the value names free shipping. Matching is case-insensitive; any other
// value, including an empty one, is treated as charged.
func (t ShippingChargeType) IsFree() bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(ShippingChargeFree))
}

// InstallationAvailability captures whether installation is offered for a line item.
type InstallationAvailability string

const (
	InstallationYes InstallationAvailability = "yes"
	InstallationNo  InstallationAvailability = "no"
)

// Enabled reports whether installation charges apply. Anything other than "yes" disables them.
func (a InstallationAvailability) Enabled() bool {
	return strings.EqualFold(strings.TrimSpace(string(a)), string(InstallationYes))
}

// LineItem is the sanitised cart or order line consumed by the pricing engine.
type LineItem struct {
	ProductID                 string
	SellerID                  string
	Name                      string
	UnitPrice                 decimal.Decimal
	Quantity                  int
	TripsRequired             int
	ShippingChargeType        ShippingChargeType
	ShippingChargePerTrip     decimal.Decimal
	InstallationAvailable     InstallationAvailability
	InstallationChargePerUnit decimal.Decimal
}

// LineTotal returns unit price multiplied by quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineItemInput is the loosely typed line shape submitted by clients. Numeric fields arrive as
// free-form values so stray values like "" or "abc" can be coerced instead of rejected.
type LineItemInput struct {
	ProductID                 string       `json:"productId"`
	SellerID                  string       `json:"sellerId"`
	Name                      string       `json:"name"`
	UnitPrice                 NumericInput `json:"unitPrice"`
	Quantity                  NumericInput `json:"quantity"`
	UnitsPerTrip              NumericInput `json:"unitsPerTrip"`
	TripsRequired             NumericInput `json:"tripsRequired"`
	ShippingChargeType        string       `json:"shippingChargeType"`
	ShippingChargePerTrip     NumericInput `json:"shippingChargePerTrip"`
	InstallationAvailable     string       `json:"installationAvailable"`
	InstallationChargePerUnit NumericInput `json:"installationChargePerUnit"`
}

// OrderSummary aggregates the monetary outcome of pricing a set of line items.
type OrderSummary struct {
	Subtotal          decimal.Decimal
	RawShipping       decimal.Decimal
	PlatformCharge    decimal.Decimal
	DeliveryCharge    decimal.Decimal
	InstallationTotal decimal.Decimal
	GrandTotal        decimal.Decimal
}

// Equal compares two summaries by value, ignoring decimal exponent differences.
func (s OrderSummary) Equal(other OrderSummary) bool {
	return s.Subtotal.Equal(other.Subtotal) &&
		s.RawShipping.Equal(other.RawShipping) &&
		s.PlatformCharge.Equal(other.PlatformCharge) &&
		s.DeliveryCharge.Equal(other.DeliveryCharge) &&
		s.InstallationTotal.Equal(other.InstallationTotal) &&
		s.GrandTotal.Equal(other.GrandTotal)
}

// NumericInput accepts JSON numbers, numeric strings, null and other scalars, keeping the raw
// text so the pricing engine can decide how to coerce it.
type NumericInput string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NumericInput) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "" || raw == "null" || raw == "true" || raw == "false":
		*n = ""
	case strings.HasPrefix(raw, "\""):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericInput(strings.TrimSpace(s))
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		*n = ""
	default:
		*n = NumericInput(raw)
	}
	return nil
}

// String returns the raw text.
func (n NumericInput) String() string { return string(n) }
