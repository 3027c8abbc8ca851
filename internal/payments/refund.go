package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrInvalidRefund is returned when a refund request cannot be sent to the provider.
	ErrInvalidRefund = errors.New("payments: invalid refund request")
	// ErrRefundDeclined is returned when the provider accepts the call but reports the refund as failed.
	ErrRefundDeclined = errors.New("payments: refund declined")
)

// Status enumerates the normalised refund states shared across providers.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// MinorUnits converts amount to the provider's integer representation for currencyCode, e.g.
// paise for INR and yen for JPY. Fractions below the currency's precision are rounded half up.
func MinorUnits(amount decimal.Decimal, currencyCode string) (int64, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		return 0, fmt.Errorf("%w: unknown currency %q", ErrInvalidRefund, currencyCode)
	}
	scale, _ := currency.Standard.Rounding(unit)
	minor := amount.Shift(int32(scale)).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidRefund)
	}
	return minor.IntPart(), nil
}
