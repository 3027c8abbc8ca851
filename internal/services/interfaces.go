package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination               = domain.Pagination
	LineItem                 = domain.LineItem
	LineItemInput            = domain.LineItemInput
	OrderSummary             = domain.OrderSummary
	ShippingChargeType       = domain.ShippingChargeType
	InstallationAvailability = domain.InstallationAvailability
	Order                    = domain.Order
	OrderItem                = domain.OrderItem
	OrderStatus              = domain.OrderStatus
	Address                  = domain.Address
	Product                  = domain.Product
	StoreCreditAccount       = domain.StoreCreditAccount
	ApprovalStatus           = domain.ApprovalStatus
	RefundStatus             = domain.RefundStatus
	RefundMethod             = domain.RefundMethod
	ReturnLifecycleState     = domain.ReturnLifecycleState
	ReturnRequest            = domain.ReturnRequest
	StatusLabel              = domain.StatusLabel
	SystemHealthReport       = domain.SystemHealthReport
	SignedUpload             = domain.SignedUpload
)

// CheckoutService prices carts and turns them into persisted orders.
type CheckoutService interface {
	Quote(ctx context.Context, cmd QuoteCommand) (CheckoutQuote, error)
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	SnapshotCart(ctx context.Context, lines []LineItemInput) (string, error)
}

// OrderService exposes order reads for customers and sellers and seller-side item transitions.
type OrderService interface {
	GetOrder(ctx context.Context, customerID, orderID string) (OrderView, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error)
	ListSellerItems(ctx context.Context, filter SellerItemFilter) (domain.CursorPage[OrderItemView], error)
	UpdateItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (OrderItemView, error)
}

// ReturnService manages the two-party return approval flow and refunds.
type ReturnService interface {
	CreateReturn(ctx context.Context, cmd CreateReturnCommand) (ReturnView, error)
	GetReturn(ctx context.Context, actor ReturnActor, returnID string) (ReturnView, error)
	ListReturns(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[ReturnView], error)
	SellerDecision(ctx context.Context, cmd ReturnDecisionCommand) (ReturnView, error)
	AdminDecision(ctx context.Context, cmd ReturnDecisionCommand) (ReturnView, error)
	CompleteRefund(ctx context.Context, cmd CompleteRefundCommand) (ReturnView, error)
	IssueEvidenceUpload(ctx context.Context, cmd ReturnEvidenceUploadCommand) (SignedUpload, error)
}

// ProductService manages seller listings.
type ProductService interface {
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	ListSellerProducts(ctx context.Context, sellerID string, page Pagination) (domain.CursorPage[Product], error)
	IssueImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (SignedUpload, error)
}

// StoreCreditService reads customer balances.
type StoreCreditService interface {
	Balance(ctx context.Context, customerID string) (StoreCreditAccount, error)
}

// SystemService reports readiness.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// NotificationPublisher fans domain events out to downstream consumers (email, dashboards).
type NotificationPublisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error
	PublishReturnUpdated(ctx context.Context, event ReturnUpdatedEvent) error
}

// RefundGateway pays money back to the customer's original payment instrument.
type RefundGateway interface {
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// UploadSigner issues signed upload URLs for media objects.
type UploadSigner interface {
	SignedUpload(ctx context.Context, objectPath, contentType string, sizeBytes int64) (SignedUpload, error)
}

// Commands and views ---------------------------------------------------------

// QuoteCommand prices lines without persisting anything. CartSnapshot, when set, replaces Lines.
type QuoteCommand struct {
	Lines        []LineItemInput
	CartSnapshot string
	StoreCredit  string
	CustomerID   string
}

// CheckoutQuote is the priced cart returned to clients.
type CheckoutQuote struct {
	Currency  string
	Items     []LineItem
	Summary   OrderSummary
	CreditUse decimal.Decimal
	AmountDue decimal.Decimal
	Formatted map[string]string
}

// PlaceOrderCommand converts a priced cart into an order.
type PlaceOrderCommand struct {
	CustomerID      string
	Lines           []LineItemInput
	CartSnapshot    string
	StoreCredit     string
	PaymentMethod   string
	ShippingAddress *Address
}

// OrderListFilter scopes customer order listings.
type OrderListFilter struct {
	CustomerID string
	Pagination Pagination
}

// SellerItemFilter scopes seller item listings.
type SellerItemFilter struct {
	SellerID   string
	Statuses   []OrderStatus
	Pagination Pagination
}

// OrderItemView decorates an order item with its return and display label.
type OrderItemView struct {
	Item        OrderItem
	Return      *ReturnRequest
	ReturnState *ReturnLifecycleState
	Label       StatusLabel
}

// OrderView is an order with decorated items.
type OrderView struct {
	Order Order
	Items []OrderItemView
}

// UpdateItemStatusCommand moves a seller's item through fulfilment.
type UpdateItemStatusCommand struct {
	SellerID     string
	ItemID       string
	TargetStatus OrderStatus
}

// CreateReturnCommand opens a return for a delivered item.
type CreateReturnCommand struct {
	CustomerID   string
	OrderItemID  string
	Reason       string
	RefundMethod string
	ImagePaths   []string
}

// ReturnEvidenceUploadCommand requests a signed upload for a photo attached to a return.
type ReturnEvidenceUploadCommand struct {
	CustomerID  string
	OrderItemID string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// ReturnActor identifies who is reading a return.
type ReturnActor struct {
	CustomerID string
	SellerID   string
	Admin      bool
}

// ReturnListFilter scopes return listings.
type ReturnListFilter struct {
	CustomerID string
	SellerID   string
	Pagination Pagination
}

// ReturnView is a return with its derived lifecycle state and label.
type ReturnView struct {
	Return ReturnRequest
	State  ReturnLifecycleState
	Label  StatusLabel
}

// ReturnDecisionCommand records an approval or rejection. ActorID is the seller uid for seller
// decisions and the calling service account for admin decisions.
type ReturnDecisionCommand struct {
	ReturnID string
	ActorID  string
	Approve  bool
}

// CompleteRefundCommand pays out an approved return.
type CompleteRefundCommand struct {
	ReturnID string
	ActorID  string
}

// UpsertProductCommand creates or updates a listing. ProductID is ignored on create.
type UpsertProductCommand struct {
	ProductID                 string
	SellerID                  string
	Name                      string
	Description               string
	Category                  string
	BasePrice                 string
	UnitsPerTrip              int
	ShippingChargeType        string
	ShippingChargePerTrip     string
	InstallationAvailable     string
	InstallationChargePerUnit string
	ImagePaths                []string
}

// ProductImageUploadCommand requests a signed upload for a product image.
type ProductImageUploadCommand struct {
	SellerID    string
	ProductID   string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// RefundRequest asks the payment provider to refund an order payment.
type RefundRequest struct {
	PaymentReference string
	Amount           decimal.Decimal
	Currency         string
	IdempotencyKey   string
	Metadata         map[string]string
}

// RefundResult is the provider's acknowledgement.
type RefundResult struct {
	Reference string
	Status    string
}

// OrderCreatedEvent is published after checkout commits.
type OrderCreatedEvent struct {
	OrderID    string
	CustomerID string
	SellerIDs  []string
	GrandTotal decimal.Decimal
	AmountDue  decimal.Decimal
	Currency   string
}

// ReturnUpdatedEvent is published after every return mutation.
type ReturnUpdatedEvent struct {
	ReturnID    string
	OrderID     string
	OrderItemID string
	CustomerID  string
	SellerID    string
	State       ReturnLifecycleState
	Refund      RefundStatus
	Action      string
}
