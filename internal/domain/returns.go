package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the decision recorded independently by the seller and by the admin process.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ParseApprovalStatus normalises persisted or client supplied values. Unknown values collapse to
// ApprovalPending so a malformed flag never approves or rejects a return on its own.
func ParseApprovalStatus(value string) ApprovalStatus {
	switch ApprovalStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case ApprovalApproved:
		return ApprovalApproved
	case ApprovalRejected:
		return ApprovalRejected
	default:
		return ApprovalPending
	}
}

// RefundStatus tracks whether the refund for an approved return has been paid out.
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundCompleted RefundStatus = "COMPLETED"
)

// ParseRefundStatus maps unknown values to RefundPending.
func ParseRefundStatus(value string) RefundStatus {
	if RefundStatus(strings.ToUpper(strings.TrimSpace(value))) == RefundCompleted {
		return RefundCompleted
	}
	return RefundPending
}

// RefundMethod selects how an approved return is paid back.
type RefundMethod string

const (
	RefundMethodStoreCredit     RefundMethod = "STORE_CREDIT"
	RefundMethodOriginalPayment RefundMethod = "ORIGINAL_PAYMENT"
)

// ParseRefundMethod returns the matching method and whether the value was recognised.
func ParseRefundMethod(value string) (RefundMethod, bool) {
	switch RefundMethod(strings.ToUpper(strings.TrimSpace(value))) {
	case RefundMethodStoreCredit:
		return RefundMethodStoreCredit, true
	case RefundMethodOriginalPayment:
		return RefundMethodOriginalPayment, true
	default:
		return "", false
	}
}

// ReturnLifecycleState is derived on every read from the two approval flags; it is never stored.
type ReturnLifecycleState string

const (
	ReturnStateRequested   ReturnLifecycleState = "REQUESTED"
	ReturnStateUnderReview ReturnLifecycleState = "UNDER_REVIEW"
	ReturnStateApproved    ReturnLifecycleState = "APPROVED"
	ReturnStateRejected    ReturnLifecycleState = "REJECTED"
)

// ReturnRequest is the persisted return record. At most one exists per order item.
type ReturnRequest struct {
	ID                   string
	OrderID              string
	OrderItemID          string
	CustomerID           string
	SellerID             string
	Reason               string
	RefundMethod         RefundMethod
	RefundAmount         decimal.Decimal
	SellerApprovalStatus ApprovalStatus
	AdminApprovalStatus  ApprovalStatus
	RefundStatus         RefundStatus
	RefundReference      string
	ImagePaths           []string
	SellerDecidedAt      *time.Time
	SellerDecidedBy      string
	AdminDecidedAt       *time.Time
	AdminDecidedBy       string
	RefundedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StatusLabel is the user-facing rendering of an order or return state.
type StatusLabel struct {
	Text     string
	StyleTag string
}

// Style tags understood by the storefront and seller dashboards.
const (
	StyleInfo    = "info"
	StyleSuccess = "success"
	StyleWarning = "warning"
	StyleDanger  = "danger"
	StyleNeutral = "neutral"
)
