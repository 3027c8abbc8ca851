package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Returns() ReturnRepository
	Products() ProductRepository
	StoreCredits() StoreCreditRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists checkout results. Insert writes the order, its items and the optional
// store credit debit atomically.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order, creditDebit decimal.Decimal) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByCustomer(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderItemRepository reads and transitions individual order lines.
type OrderItemRepository interface {
	FindByID(ctx context.Context, itemID string) (domain.OrderItem, error)
	ListBySeller(ctx context.Context, filter SellerItemFilter) (domain.CursorPage[domain.OrderItem], error)
	// UpdateStatus moves an item to next only when its stored status still equals expected.
	UpdateStatus(ctx context.Context, itemID string, expected, next domain.OrderStatus, at time.Time) (domain.OrderItem, error)
}

// ReturnRepository persists return requests. Create fails with a conflict error when a return for
// the same order item already exists.
type ReturnRepository interface {
	Create(ctx context.Context, ret domain.ReturnRequest) error
	FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error)
	FindByOrderItemIDs(ctx context.Context, itemIDs []string) (map[string]domain.ReturnRequest, error)
	List(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error)
	// Update stores ret only when the persisted UpdatedAt equals expectedUpdatedAt.
	Update(ctx context.Context, ret domain.ReturnRequest, expectedUpdatedAt time.Time) error
	// CompleteRefund marks the refund completed and credits the customer's balance by credit in
	// the same transaction. A zero credit skips the balance write.
	CompleteRefund(ctx context.Context, ret domain.ReturnRequest, credit decimal.Decimal) error
}

// ProductRepository persists seller listings.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	ListBySeller(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
}

// StoreCreditRepository reads customer balances. Missing accounts read as a zero balance.
type StoreCreditRepository interface {
	Get(ctx context.Context, customerID string) (domain.StoreCreditAccount, error)
}

// HealthRepository provides readiness information for dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter scopes customer order listings.
type OrderListFilter struct {
	CustomerID string
	Pagination domain.Pagination
}

// SellerItemFilter scopes seller order item listings.
type SellerItemFilter struct {
	SellerID   string
	Statuses   []domain.OrderStatus
	Pagination domain.Pagination
}

// ReturnListFilter scopes return listings. Exactly one of CustomerID and SellerID is expected.
type ReturnListFilter struct {
	CustomerID string
	SellerID   string
	Pagination domain.Pagination
}

// ProductListFilter scopes seller product listings.
type ProductListFilter struct {
	SellerID   string
	Pagination domain.Pagination
}
