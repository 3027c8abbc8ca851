package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/storage"
	"github.com/core2cover/api/internal/platform/textutil"
	"github.com/core2cover/api/internal/repositories"
)

const (
	returnIDPrefix      = "ret_"
	maxReturnReasonLen  = 1000
	maxReturnImagePaths = 5

	returnActionCreated         = "created"
	returnActionSellerApproved  = "seller_approved"
	returnActionSellerRejected  = "seller_rejected"
	returnActionAdminApproved   = "admin_approved"
	returnActionAdminRejected   = "admin_rejected"
	returnActionRefundCompleted = "refund_completed"
)

var (
	// ErrReturnInvalidInput indicates the caller supplied invalid input parameters.
	ErrReturnInvalidInput = errors.New("return: invalid input")
	// ErrReturnNotFound indicates the return or item does not exist or is not visible to the caller.
	ErrReturnNotFound = errors.New("return: not found")
	// ErrReturnForbidden indicates the caller may see the return but not act on it.
	ErrReturnForbidden = errors.New("return: forbidden")
	// ErrReturnNotEligible indicates the order item cannot be returned in its current status.
	ErrReturnNotEligible = errors.New("return: item not eligible")
	// ErrReturnAlreadyExists indicates a return was already requested for the order item.
	ErrReturnAlreadyExists = errors.New("return: already exists")
	// ErrReturnInvalidState indicates the decision or refund is not allowed in the current state.
	ErrReturnInvalidState = errors.New("return: invalid state")
	// ErrReturnConflict indicates the return changed concurrently.
	ErrReturnConflict = errors.New("return: conflict")
	// ErrReturnRefundUnavailable indicates the refund cannot be paid through the selected method.
	ErrReturnRefundUnavailable = errors.New("return: refund unavailable")
	// ErrReturnRefundFailed indicates the payment provider rejected the refund.
	ErrReturnRefundFailed = errors.New("return: refund failed")
	// ErrReturnUploadsUnavailable indicates media uploads are not configured.
	ErrReturnUploadsUnavailable = errors.New("return: uploads unavailable")
	// ErrReturnUnavailable indicates persistence is currently unavailable.
	ErrReturnUnavailable = errors.New("return: unavailable")
)

// ReturnServiceDeps bundles collaborators required by the return service. Refunds and Uploads are
// optional; without them original-payment refunds and evidence uploads report unavailable.
type ReturnServiceDeps struct {
	Returns           repositories.ReturnRepository
	OrderItems        repositories.OrderItemRepository
	Orders            repositories.OrderRepository
	Refunds           RefundGateway
	Uploads           UploadSigner
	Notifications     NotificationPublisher
	EnableStoreCredit bool
	Currency          string
	Clock             func() time.Time
	IDGenerator       func() string
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type returnService struct {
	returns       repositories.ReturnRepository
	items         repositories.OrderItemRepository
	orders        repositories.OrderRepository
	refunds       RefundGateway
	uploads       UploadSigner
	notifications NotificationPublisher
	creditEnabled bool
	currency      string
	now           func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewReturnService constructs a ReturnService validating required dependencies.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	if deps.Returns == nil {
		return nil, errors.New("return service: return repository is required")
	}
	if deps.OrderItems == nil {
		return nil, errors.New("return service: order item repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("return service: order repository is required")
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
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultPricingCurrency
	}
	return &returnService{
		returns:       deps.Returns,
		items:         deps.OrderItems,
		orders:        deps.Orders,
		refunds:       deps.Refunds,
		uploads:       deps.Uploads,
		notifications: deps.Notifications,
		creditEnabled: deps.EnableStoreCredit,
		currency:      currency,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateReturn opens a return for a delivered item owned by the customer. The return id is
// derived from the item id so the store rejects a second request for the same item.
func (s *returnService) CreateReturn(ctx context.Context, cmd CreateReturnCommand) (ReturnView, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	itemID := strings.TrimSpace(cmd.OrderItemID)
	if customerID == "" || itemID == "" {
		return ReturnView{}, fmt.Errorf("%w: customer and order item are required", ErrReturnInvalidInput)
	}

	reason := textutil.PlainText(cmd.Reason)
	if reason == "" {
		return ReturnView{}, fmt.Errorf("%w: reason is required", ErrReturnInvalidInput)
	}
	if textutil.RuneLen(reason) > maxReturnReasonLen {
		return ReturnView{}, fmt.Errorf("%w: reason must be at most %d characters", ErrReturnInvalidInput, maxReturnReasonLen)
	}
	method, ok := domain.ParseRefundMethod(cmd.RefundMethod)
	if !ok {
		return ReturnView{}, fmt.Errorf("%w: unsupported refund method %q", ErrReturnInvalidInput, cmd.RefundMethod)
	}
	if method == domain.RefundMethodStoreCredit && !s.creditEnabled {
		return ReturnView{}, fmt.Errorf("%w: store credit refunds are disabled", ErrReturnInvalidInput)
	}

	item, err := s.returnableItem(ctx, customerID, itemID)
	if err != nil {
		return ReturnView{}, err
	}
	images, err := evidencePaths(cmd.ImagePaths, customerID, itemID)
	if err != nil {
		return ReturnView{}, err
	}

	now := s.now()
	ret := ReturnRequest{
		ID:                   returnIDPrefix + item.ID,
		OrderID:              item.OrderID,
		OrderItemID:          item.ID,
		CustomerID:           customerID,
		SellerID:             item.SellerID,
		Reason:               reason,
		RefundMethod:         method,
		RefundAmount:         item.Total,
		SellerApprovalStatus: domain.ApprovalPending,
		AdminApprovalStatus:  domain.ApprovalPending,
		RefundStatus:         domain.RefundPending,
		ImagePaths:           images,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.returns.Create(ctx, ret); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return ReturnView{}, ErrReturnAlreadyExists
		}
		return ReturnView{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "return.created", map[string]any{
		"returnId":     ret.ID,
		"orderItemId":  ret.OrderItemID,
		"customerId":   customerID,
		"refundMethod": string(method),
	})
	s.publish(ctx, ret, returnActionCreated)
	return returnView(ret), nil
}

// GetReturn loads a return visible to the actor. Returns belonging to someone else read as not found.
func (s *returnService) GetReturn(ctx context.Context, actor ReturnActor, returnID string) (ReturnView, error) {
	returnID = strings.TrimSpace(returnID)
	if returnID == "" {
		return ReturnView{}, ErrReturnInvalidInput
	}
	ret, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		return ReturnView{}, s.mapRepositoryError(err)
	}
	if !canView(actor, ret) {
		return ReturnView{}, ErrReturnNotFound
	}
	return returnView(ret), nil
}

// ListReturns pages through returns for exactly one customer or seller.
func (s *returnService) ListReturns(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[ReturnView], error) {
	customerID := strings.TrimSpace(filter.CustomerID)
	sellerID := strings.TrimSpace(filter.SellerID)
	if (customerID == "") == (sellerID == "") {
		return domain.CursorPage[ReturnView]{}, fmt.Errorf("%w: exactly one of customer or seller is required", ErrReturnInvalidInput)
	}
	page, err := s.returns.List(ctx, repositories.ReturnListFilter{
		CustomerID: customerID,
		SellerID:   sellerID,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[ReturnView]{}, s.mapRepositoryError(err)
	}
	views := make([]ReturnView, 0, len(page.Items))
	for _, ret := range page.Items {
		views = append(views, returnView(ret))
	}
	return domain.CursorPage[ReturnView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

// SellerDecision records the selling party's verdict. Only the item's seller may decide, once.
func (s *returnService) SellerDecision(ctx context.Context, cmd ReturnDecisionCommand) (ReturnView, error) {
	return s.decide(ctx, cmd, func(ret *ReturnRequest, at time.Time) (string, error) {
		if ret.SellerID != strings.TrimSpace(cmd.ActorID) {
			return "", ErrReturnForbidden
		}
		if domain.ParseApprovalStatus(string(ret.SellerApprovalStatus)) != domain.ApprovalPending {
			return "", fmt.Errorf("%w: seller already decided", ErrReturnInvalidState)
		}
		ret.SellerApprovalStatus = decisionStatus(cmd.Approve)
		ret.SellerDecidedAt = &at
		ret.SellerDecidedBy = strings.TrimSpace(cmd.ActorID)
		if cmd.Approve {
			return returnActionSellerApproved, nil
		}
		return returnActionSellerRejected, nil
	})
}

// AdminDecision records the platform's verdict.
func (s *returnService) AdminDecision(ctx context.Context, cmd ReturnDecisionCommand) (ReturnView, error) {
	return s.decide(ctx, cmd, func(ret *ReturnRequest, at time.Time) (string, error) {
		if domain.ParseApprovalStatus(string(ret.AdminApprovalStatus)) != domain.ApprovalPending {
			return "", fmt.Errorf("%w: admin already decided", ErrReturnInvalidState)
		}
		ret.AdminApprovalStatus = decisionStatus(cmd.Approve)
		ret.AdminDecidedAt = &at
		ret.AdminDecidedBy = strings.TrimSpace(cmd.ActorID)
		if cmd.Approve {
			return returnActionAdminApproved, nil
		}
		return returnActionAdminRejected, nil
	})
}

func (s *returnService) decide(ctx context.Context, cmd ReturnDecisionCommand, apply func(*ReturnRequest, time.Time) (string, error)) (ReturnView, error) {
	returnID := strings.TrimSpace(cmd.ReturnID)
	if returnID == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return ReturnView{}, ErrReturnInvalidInput
	}
	ret, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		return ReturnView{}, s.mapRepositoryError(err)
	}
	if DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus) == domain.ReturnStateRejected {
		return ReturnView{}, fmt.Errorf("%w: return already rejected", ErrReturnInvalidState)
	}

	now := s.now()
	expected := ret.UpdatedAt
	action, err := apply(&ret, now)
	if err != nil {
		return ReturnView{}, err
	}
	ret.UpdatedAt = now
	if err := s.returns.Update(ctx, ret, expected); err != nil {
		return ReturnView{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "return.decision", map[string]any{
		"returnId": ret.ID,
		"actorId":  strings.TrimSpace(cmd.ActorID),
		"action":   action,
	})
	s.publish(ctx, ret, action)
	return returnView(ret), nil
}

// CompleteRefund pays out an approved return. Store credit refunds credit the customer's balance
// in the same write that completes the refund; original payment refunds go through the gateway
// first, keyed by return id so a retry never pays twice.
func (s *returnService) CompleteRefund(ctx context.Context, cmd CompleteRefundCommand) (ReturnView, error) {
	returnID := strings.TrimSpace(cmd.ReturnID)
	if returnID == "" {
		return ReturnView{}, ErrReturnInvalidInput
	}
	ret, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		return ReturnView{}, s.mapRepositoryError(err)
	}
	state := DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus)
	if state != domain.ReturnStateApproved {
		return ReturnView{}, fmt.Errorf("%w: return is %s", ErrReturnInvalidState, state)
	}
	if IsRefundCompleted(state, ret.RefundStatus) {
		return ReturnView{}, fmt.Errorf("%w: refund already completed", ErrReturnInvalidState)
	}

	credit := decimal.Zero
	switch method, _ := domain.ParseRefundMethod(string(ret.RefundMethod)); method {
	case domain.RefundMethodStoreCredit:
		credit = ret.RefundAmount
	case domain.RefundMethodOriginalPayment:
		reference, err := s.refundOriginalPayment(ctx, ret)
		if err != nil {
			return ReturnView{}, err
		}
		ret.RefundReference = reference
	default:
		return ReturnView{}, fmt.Errorf("%w: unknown refund method %q", ErrReturnRefundUnavailable, ret.RefundMethod)
	}

	if err := s.returns.CompleteRefund(ctx, ret, credit); err != nil {
		s.logger(ctx, "return.refund_persist_failed", map[string]any{
			"returnId":  ret.ID,
			"reference": ret.RefundReference,
			"error":     err.Error(),
		})
		return ReturnView{}, s.mapRepositoryError(err)
	}
	completed, err := s.returns.FindByID(ctx, ret.ID)
	if err != nil {
		return ReturnView{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "return.refund_completed", map[string]any{
		"returnId": completed.ID,
		"actorId":  strings.TrimSpace(cmd.ActorID),
		"method":   string(completed.RefundMethod),
		"amount":   completed.RefundAmount.StringFixed(2),
	})
	s.publish(ctx, completed, returnActionRefundCompleted)
	return returnView(completed), nil
}

func (s *returnService) refundOriginalPayment(ctx context.Context, ret ReturnRequest) (string, error) {
	if s.refunds == nil {
		return "", fmt.Errorf("%w: payment refunds are not configured", ErrReturnRefundUnavailable)
	}
	order, err := s.orders.FindByID(ctx, ret.OrderID)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	if strings.TrimSpace(order.PaymentReference) == "" {
		return "", fmt.Errorf("%w: order %s has no payment reference", ErrReturnRefundUnavailable, order.ID)
	}
	currency := order.Currency
	if strings.TrimSpace(currency) == "" {
		currency = s.currency
	}
	result, err := s.refunds.Refund(ctx, RefundRequest{
		PaymentReference: order.PaymentReference,
		Amount:           ret.RefundAmount,
		Currency:         currency,
		IdempotencyKey:   ret.ID,
		Metadata: textutil.NormalizeStringMap(map[string]string{
			"returnId":    ret.ID,
			"orderId":     ret.OrderID,
			"orderItemId": ret.OrderItemID,
		}),
	})
	if err != nil {
		s.logger(ctx, "return.refund_failed", map[string]any{
			"returnId": ret.ID,
			"error":    err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrReturnRefundFailed, err)
	}
	return result.Reference, nil
}

// IssueEvidenceUpload signs an upload URL for a photo the customer attaches to a return.
func (s *returnService) IssueEvidenceUpload(ctx context.Context, cmd ReturnEvidenceUploadCommand) (SignedUpload, error) {
	if s.uploads == nil {
		return SignedUpload{}, ErrReturnUploadsUnavailable
	}
	customerID := strings.TrimSpace(cmd.CustomerID)
	itemID := strings.TrimSpace(cmd.OrderItemID)
	if customerID == "" || itemID == "" {
		return SignedUpload{}, ErrReturnInvalidInput
	}
	if _, err := s.returnableItem(ctx, customerID, itemID); err != nil {
		return SignedUpload{}, err
	}
	objectPath, err := storage.ReturnEvidencePath(customerID, itemID, s.newID(), cmd.FileName)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrReturnInvalidInput, err)
	}
	upload, err := s.uploads.SignedUpload(ctx, objectPath, cmd.ContentType, cmd.SizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeDenied) || errors.Is(err, storage.ErrUploadTooLarge) {
			return SignedUpload{}, fmt.Errorf("%w: %v", ErrReturnInvalidInput, err)
		}
		return SignedUpload{}, err
	}
	return upload, nil
}

func (s *returnService) returnableItem(ctx context.Context, customerID, itemID string) (OrderItem, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return OrderItem{}, s.mapRepositoryError(err)
	}
	if item.CustomerID != customerID {
		return OrderItem{}, ErrReturnNotFound
	}
	if status, _ := parseOrderStatus(string(item.Status)); status != domain.OrderStatusFulfilled {
		return OrderItem{}, fmt.Errorf("%w: item is %s", ErrReturnNotEligible, item.Status)
	}
	return item, nil
}

func (s *returnService) publish(ctx context.Context, ret ReturnRequest, action string) {
	if s.notifications == nil {
		return
	}
	event := ReturnUpdatedEvent{
		ReturnID:    ret.ID,
		OrderID:     ret.OrderID,
		OrderItemID: ret.OrderItemID,
		CustomerID:  ret.CustomerID,
		SellerID:    ret.SellerID,
		State:       DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus),
		Refund:      domain.ParseRefundStatus(string(ret.RefundStatus)),
		Action:      action,
	}
	if err := s.notifications.PublishReturnUpdated(ctx, event); err != nil {
		s.logger(ctx, "return.publish_failed", map[string]any{
			"returnId": ret.ID,
			"action":   action,
			"error":    err.Error(),
		})
	}
}

func (s *returnService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReturnNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReturnConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrReturnUnavailable, err)
		}
	}
	return err
}

func returnView(ret ReturnRequest) ReturnView {
	return ReturnView{
		Return: ret,
		State:  DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus),
		Label:  ResolveReturnLabel(domain.OrderStatusFulfilled, &ret),
	}
}

func canView(actor ReturnActor, ret ReturnRequest) bool {
	switch {
	case actor.Admin:
		return true
	case actor.CustomerID != "" && actor.CustomerID == ret.CustomerID:
		return true
	case actor.SellerID != "" && actor.SellerID == ret.SellerID:
		return true
	default:
		return false
	}
}

func decisionStatus(approve bool) ApprovalStatus {
	if approve {
		return domain.ApprovalApproved
	}
	return domain.ApprovalRejected
}

func evidencePaths(paths []string, customerID, itemID string) ([]string, error) {
	if len(paths) > maxReturnImagePaths {
		return nil, fmt.Errorf("%w: at most %d images", ErrReturnInvalidInput, maxReturnImagePaths)
	}
	prefix := "returns/" + customerID + "/" + itemID
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !storage.IsOwnedPath(p, prefix) {
			return nil, fmt.Errorf("%w: image %q is not an upload for this item", ErrReturnInvalidInput, p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
