package services

import (
	"strings"

	domain "github.com/core2cover/api/internal/domain"
)

// DeriveReturnState folds the two independent approval flags into a single lifecycle state.
// A rejection from either party is a veto. Values outside the enum behave as pending.
func DeriveReturnState(seller, admin ApprovalStatus) ReturnLifecycleState {
	seller = domain.ParseApprovalStatus(string(seller))
	admin = domain.ParseApprovalStatus(string(admin))

	switch {
	case seller == domain.ApprovalRejected || admin == domain.ApprovalRejected:
		return domain.ReturnStateRejected
	case seller == domain.ApprovalApproved && admin == domain.ApprovalApproved:
		return domain.ReturnStateApproved
	case seller == domain.ApprovalApproved:
		return domain.ReturnStateUnderReview
	default:
		return domain.ReturnStateRequested
	}
}

// IsRefundCompleted reports the terminal sub-state of an approved return.
func IsRefundCompleted(state ReturnLifecycleState, refund RefundStatus) bool {
	return state == domain.ReturnStateApproved && domain.ParseRefundStatus(string(refund)) == domain.RefundCompleted
}

var orderStatusLabels = map[OrderStatus]StatusLabel{
	domain.OrderStatusPending:        {Text: "Processing", StyleTag: domain.StyleNeutral},
	domain.OrderStatusConfirmed:      {Text: "Confirmed", StyleTag: domain.StyleInfo},
	domain.OrderStatusOutForDelivery: {Text: "Out for Delivery", StyleTag: domain.StyleInfo},
	domain.OrderStatusFulfilled:      {Text: "Delivered", StyleTag: domain.StyleSuccess},
	domain.OrderStatusRejected:       {Text: "Cancelled", StyleTag: domain.StyleDanger},
	domain.OrderStatusCancelled:      {Text: "Cancelled", StyleTag: domain.StyleDanger},
}

// LabelForOrder picks the text shown for an order item. A nil returnState means no return exists
// for the item. A completed refund outranks the store credit label.
func LabelForOrder(orderStatus OrderStatus, returnState *ReturnLifecycleState, method RefundMethod, refund RefundStatus) StatusLabel {
	if returnState != nil {
		switch *returnState {
		case domain.ReturnStateRequested:
			return StatusLabel{Text: "Return Requested", StyleTag: domain.StyleWarning}
		case domain.ReturnStateApproved:
			if IsRefundCompleted(*returnState, refund) {
				return StatusLabel{Text: "Refund Completed", StyleTag: domain.StyleSuccess}
			}
			if m, ok := domain.ParseRefundMethod(string(method)); ok && m == domain.RefundMethodStoreCredit {
				return StatusLabel{Text: "Returned (Store Credit)", StyleTag: domain.StyleSuccess}
			}
			return StatusLabel{Text: "Refund Processing", StyleTag: domain.StyleInfo}
		case domain.ReturnStateRejected:
			return StatusLabel{Text: "Return Rejected", StyleTag: domain.StyleDanger}
		}
	}
	return orderLabel(orderStatus)
}

// ResolveReturnLabel derives the lifecycle state of an optional return and labels the item.
func ResolveReturnLabel(orderStatus OrderStatus, ret *ReturnRequest) StatusLabel {
	if ret == nil {
		return LabelForOrder(orderStatus, nil, "", "")
	}
	state := DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus)
	return LabelForOrder(orderStatus, &state, ret.RefundMethod, ret.RefundStatus)
}

func orderLabel(status OrderStatus) StatusLabel {
	normalized := OrderStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if label, ok := orderStatusLabels[normalized]; ok {
		return label
	}
	return StatusLabel{Text: "Processing", StyleTag: domain.StyleNeutral}
}
