package repositories

import "fmt"

// StoreCreditErrorCode enumerates failure reasons for balance mutations.
type StoreCreditErrorCode string

const (
	// StoreCreditErrorInvalidAmount indicates a non-positive debit or credit was requested.
	StoreCreditErrorInvalidAmount StoreCreditErrorCode = "store_credit_invalid_amount"
	// StoreCreditErrorInsufficient indicates the balance cannot cover the requested debit.
	StoreCreditErrorInsufficient StoreCreditErrorCode = "store_credit_insufficient"
)

// StoreCreditError wraps balance failures raised inside persistence transactions.
type StoreCreditError struct {
	CustomerID string
	Code       StoreCreditErrorCode
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StoreCreditError) Error() string {
	if e == nil {
		return ""
	}
	if e.CustomerID != "" {
		return fmt.Sprintf("store credit %s: %s", e.CustomerID, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StoreCreditError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStoreCreditError constructs a typed balance error.
func NewStoreCreditError(customerID string, code StoreCreditErrorCode, message string) *StoreCreditError {
	if message == "" {
		message = string(code)
	}
	return &StoreCreditError{CustomerID: customerID, Code: code, Message: message}
}
