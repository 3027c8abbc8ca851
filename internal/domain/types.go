package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc orders results from oldest to newest.
	SortAsc SortOrder = "asc"
	// SortDesc orders results from newest to oldest.
	SortDesc SortOrder = "desc"
)

// Pagination captures cursor pagination input.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the fulfilment states of an order item.
type OrderStatus string

const (
	// OrderStatusPending indicates the seller has not yet acknowledged the item.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the seller accepted the item.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusOutForDelivery indicates the item left the seller's premises.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusFulfilled indicates the item was delivered. Returns may be requested from here.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusRejected indicates the seller declined the item.
	OrderStatusRejected OrderStatus = "rejected"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the persisted checkout result. Monetary fields are copied from the OrderSummary at
// checkout time. ShippingCharge is a legacy field that mirrors DeliveryCharge.
type Order struct {
	ID                string
	CustomerID        string
	Status            OrderStatus
	Currency          string
	Items             []OrderItem
	Subtotal          decimal.Decimal
	RawShipping       decimal.Decimal
	PlatformCharge    decimal.Decimal
	DeliveryCharge    decimal.Decimal
	ShippingCharge    decimal.Decimal
	InstallationTotal decimal.Decimal
	GrandTotal        decimal.Decimal
	CreditUsed        decimal.Decimal
	AmountDue         decimal.Decimal
	PaymentMethod     string
	PaymentReference  string
	ShippingAddress   *Address
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem is one purchased line. Total is unit price times quantity plus the item's own
// shipping and installation charges.
type OrderItem struct {
	ID                        string
	OrderID                   string
	CustomerID                string
	ProductID                 string
	SellerID                  string
	Name                      string
	Status                    OrderStatus
	UnitPrice                 decimal.Decimal
	Quantity                  int
	TripsRequired             int
	ShippingChargeType        ShippingChargeType
	ShippingChargePerTrip     decimal.Decimal
	InstallationAvailable     InstallationAvailability
	InstallationChargePerUnit decimal.Decimal
	Total                     decimal.Decimal
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Address is a delivery destination captured at checkout.
type Address struct {
	Recipient  string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Product is a seller listing. Price is the customer-facing, commission-inclusive amount derived
// from BasePrice whenever the product is written.
type Product struct {
	ID                        string
	SellerID                  string
	Name                      string
	Description               string
	Category                  string
	BasePrice                 decimal.Decimal
	Price                     decimal.Decimal
	UnitsPerTrip              int
	ShippingChargeType        ShippingChargeType
	ShippingChargePerTrip     decimal.Decimal
	InstallationAvailable     InstallationAvailability
	InstallationChargePerUnit decimal.Decimal
	ImagePaths                []string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// StoreCreditAccount is a customer's spendable balance.
type StoreCreditAccount struct {
	CustomerID string
	Balance    decimal.Decimal
	UpdatedAt  time.Time
}

// HealthStatus enumerates readiness states.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthReport summarises readiness probes for /readyz.
type SystemHealthReport struct {
	Status      HealthStatus
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// SystemHealthCheck describes the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Latency   time.Duration
	Detail    string
	Error     string
	CheckedAt time.Time
}

// SignedUpload describes a signed URL a client uses to upload media directly to storage.
type SignedUpload struct {
	URL        string
	Method     string
	Headers    map[string]string
	ObjectPath string
	ExpiresAt  time.Time
}
