package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid input parameters.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or item does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the requested status change is not allowed from the current status.
	ErrOrderInvalidState = errors.New("order: invalid state transition")
	// ErrOrderConflict indicates the item changed concurrently.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates persistence is currently unavailable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// itemStatusTransitions lists the moves a seller may make on an order item.
var itemStatusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusConfirmed, domain.OrderStatusRejected},
	domain.OrderStatusConfirmed:      {domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusFulfilled},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	OrderItems repositories.OrderItemRepository
	Returns    repositories.ReturnRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders  repositories.OrderRepository
	items   repositories.OrderItemRepository
	returns repositories.ReturnRepository
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.OrderItems == nil {
		return nil, errors.New("order service: order item repository is required")
	}
	if deps.Returns == nil {
		return nil, errors.New("order service: return repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:  deps.Orders,
		items:   deps.OrderItems,
		returns: deps.Returns,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetOrder returns one of the customer's orders. Orders owned by someone else read as not found.
func (s *orderService) GetOrder(ctx context.Context, customerID, orderID string) (OrderView, error) {
	customerID = strings.TrimSpace(customerID)
	orderID = strings.TrimSpace(orderID)
	if customerID == "" || orderID == "" {
		return OrderView{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	if order.CustomerID != customerID {
		return OrderView{}, ErrOrderNotFound
	}
	views, err := s.decorateOrders(ctx, []Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

// ListOrders pages through the customer's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error) {
	customerID := strings.TrimSpace(filter.CustomerID)
	if customerID == "" {
		return domain.CursorPage[OrderView]{}, ErrOrderInvalidInput
	}
	page, err := s.orders.ListByCustomer(ctx, repositories.OrderListFilter{
		CustomerID: customerID,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[OrderView]{}, s.mapRepositoryError(err)
	}
	views, err := s.decorateOrders(ctx, page.Items)
	if err != nil {
		return domain.CursorPage[OrderView]{}, err
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

// ListSellerItems pages through the items a seller has to fulfil, optionally filtered by status.
func (s *orderService) ListSellerItems(ctx context.Context, filter SellerItemFilter) (domain.CursorPage[OrderItemView], error) {
	sellerID := strings.TrimSpace(filter.SellerID)
	if sellerID == "" {
		return domain.CursorPage[OrderItemView]{}, ErrOrderInvalidInput
	}
	statuses := make([]domain.OrderStatus, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		normalized, ok := parseOrderStatus(string(status))
		if !ok {
			return domain.CursorPage[OrderItemView]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
		statuses = append(statuses, normalized)
	}

	page, err := s.items.ListBySeller(ctx, repositories.SellerItemFilter{
		SellerID:   sellerID,
		Statuses:   statuses,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[OrderItemView]{}, s.mapRepositoryError(err)
	}
	views, err := s.decorateItems(ctx, page.Items)
	if err != nil {
		return domain.CursorPage[OrderItemView]{}, err
	}
	return domain.CursorPage[OrderItemView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

// UpdateItemStatus moves one of the seller's items along the fulfilment table. Repeating the
// current status is a no-op.
func (s *orderService) UpdateItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (OrderItemView, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	itemID := strings.TrimSpace(cmd.ItemID)
	target, ok := parseOrderStatus(string(cmd.TargetStatus))
	if sellerID == "" || itemID == "" || !ok {
		return OrderItemView{}, ErrOrderInvalidInput
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return OrderItemView{}, s.mapRepositoryError(err)
	}
	if item.SellerID != sellerID {
		return OrderItemView{}, ErrOrderNotFound
	}

	if item.Status != target {
		if !canTransition(item.Status, target) {
			return OrderItemView{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, item.Status, target)
		}
		previous := item.Status
		item, err = s.items.UpdateStatus(ctx, itemID, previous, target, s.clock())
		if err != nil {
			return OrderItemView{}, s.mapRepositoryError(err)
		}
		s.logger(ctx, "order.item_status_changed", map[string]any{
			"itemId":   itemID,
			"orderId":  item.OrderID,
			"sellerId": sellerID,
			"from":     string(previous),
			"to":       string(target),
		})
	}

	views, err := s.decorateItems(ctx, []OrderItem{item})
	if err != nil {
		return OrderItemView{}, err
	}
	return views[0], nil
}

func (s *orderService) decorateOrders(ctx context.Context, orders []Order) ([]OrderView, error) {
	var itemIDs []string
	for _, order := range orders {
		for _, item := range order.Items {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	returns, err := s.returnsFor(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		items := make([]OrderItemView, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, decorateItem(item, returns))
		}
		views = append(views, OrderView{Order: order, Items: items})
	}
	return views, nil
}

func (s *orderService) decorateItems(ctx context.Context, items []OrderItem) ([]OrderItemView, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	returns, err := s.returnsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]OrderItemView, 0, len(items))
	for _, item := range items {
		views = append(views, decorateItem(item, returns))
	}
	return views, nil
}

func (s *orderService) returnsFor(ctx context.Context, itemIDs []string) (map[string]ReturnRequest, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	returns, err := s.returns.FindByOrderItemIDs(ctx, itemIDs)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return returns, nil
}

func decorateItem(item OrderItem, returns map[string]ReturnRequest) OrderItemView {
	view := OrderItemView{Item: item}
	ret, ok := returns[item.ID]
	if !ok {
		view.Label = LabelForOrder(item.Status, nil, "", "")
		return view
	}
	state := DeriveReturnState(ret.SellerApprovalStatus, ret.AdminApprovalStatus)
	view.Return = &ret
	view.ReturnState = &state
	view.Label = LabelForOrder(item.Status, &state, ret.RefundMethod, ret.RefundStatus)
	return view
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusOutForDelivery,
		domain.OrderStatusFulfilled, domain.OrderStatusRejected, domain.OrderStatusCancelled:
		return status, true
	default:
		return "", false
	}
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := itemStatusTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
