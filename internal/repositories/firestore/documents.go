package firestore

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
)

const (
	ordersCollection       = "orders"
	orderItemsCollection   = "orderItems"
	returnsCollection      = "returns"
	productsCollection     = "products"
	storeCreditsCollection = "storeCredits"
)

// Amounts are persisted as decimal strings so that no float rounding happens in storage.
func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Firestore keeps microsecond precision; truncating on write keeps optimistic checks exact.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func optionalTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := storedTime(*t)
	return &v
}

type addressDocument struct {
	Recipient  string `firestore:"recipient"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type orderDocument struct {
	CustomerID        string           `firestore:"customerId"`
	Status            string           `firestore:"status"`
	Currency          string           `firestore:"currency"`
	SellerIDs         []string         `firestore:"sellerIds"`
	Subtotal          string           `firestore:"subtotal"`
	RawShipping       string           `firestore:"rawShipping"`
	PlatformCharge    string           `firestore:"platformCharge"`
	DeliveryCharge    string           `firestore:"deliveryCharge"`
	ShippingCharge    string           `firestore:"shippingCharge"`
	InstallationTotal string           `firestore:"installationTotal"`
	GrandTotal        string           `firestore:"grandTotal"`
	CreditUsed        string           `firestore:"creditUsed"`
	AmountDue         string           `firestore:"amountDue"`
	PaymentMethod     string           `firestore:"paymentMethod,omitempty"`
	PaymentReference  string           `firestore:"paymentReference,omitempty"`
	ShippingAddress   *addressDocument `firestore:"shippingAddress,omitempty"`
	CreatedAt         time.Time        `firestore:"createdAt"`
	UpdatedAt         time.Time        `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		CustomerID:        order.CustomerID,
		Status:            string(order.Status),
		Currency:          order.Currency,
		Subtotal:          amount(order.Subtotal),
		RawShipping:       amount(order.RawShipping),
		PlatformCharge:    amount(order.PlatformCharge),
		DeliveryCharge:    amount(order.DeliveryCharge),
		ShippingCharge:    amount(order.ShippingCharge),
		InstallationTotal: amount(order.InstallationTotal),
		GrandTotal:        amount(order.GrandTotal),
		CreditUsed:        amount(order.CreditUsed),
		AmountDue:         amount(order.AmountDue),
		PaymentMethod:     order.PaymentMethod,
		PaymentReference:  order.PaymentReference,
		CreatedAt:         storedTime(order.CreatedAt),
		UpdatedAt:         storedTime(order.UpdatedAt),
	}
	seen := map[string]bool{}
	for _, item := range order.Items {
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			doc.SellerIDs = append(doc.SellerIDs, item.SellerID)
		}
	}
	if a := order.ShippingAddress; a != nil {
		doc.ShippingAddress = &addressDocument{
			Recipient:  a.Recipient,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                id,
		CustomerID:        d.CustomerID,
		Status:            domain.OrderStatus(d.Status),
		Currency:          d.Currency,
		Subtotal:          parseAmount(d.Subtotal),
		RawShipping:       parseAmount(d.RawShipping),
		PlatformCharge:    parseAmount(d.PlatformCharge),
		DeliveryCharge:    parseAmount(d.DeliveryCharge),
		ShippingCharge:    parseAmount(d.ShippingCharge),
		InstallationTotal: parseAmount(d.InstallationTotal),
		GrandTotal:        parseAmount(d.GrandTotal),
		CreditUsed:        parseAmount(d.CreditUsed),
		AmountDue:         parseAmount(d.AmountDue),
		PaymentMethod:     d.PaymentMethod,
		PaymentReference:  d.PaymentReference,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
	if a := d.ShippingAddress; a != nil {
		order.ShippingAddress = &domain.Address{
			Recipient:  a.Recipient,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		}
	}
	return order
}

type orderItemDocument struct {
	OrderID                   string    `firestore:"orderId"`
	CustomerID                string    `firestore:"customerId"`
	ProductID                 string    `firestore:"productId"`
	SellerID                  string    `firestore:"sellerId"`
	Name                      string    `firestore:"name"`
	Status                    string    `firestore:"status"`
	UnitPrice                 string    `firestore:"unitPrice"`
	Quantity                  int64     `firestore:"quantity"`
	TripsRequired             int64     `firestore:"tripsRequired"`
	ShippingChargeType        string    `firestore:"shippingChargeType"`
	ShippingChargePerTrip     string    `firestore:"shippingChargePerTrip"`
	InstallationAvailable     string    `firestore:"installationAvailable"`
	InstallationChargePerUnit string    `firestore:"installationChargePerUnit"`
	Total                     string    `firestore:"total"`
	CreatedAt                 time.Time `firestore:"createdAt"`
	UpdatedAt                 time.Time `firestore:"updatedAt"`
}

func newOrderItemDocument(item domain.OrderItem) orderItemDocument {
	return orderItemDocument{
		OrderID:                   item.OrderID,
		CustomerID:                item.CustomerID,
		ProductID:                 item.ProductID,
		SellerID:                  item.SellerID,
		Name:                      item.Name,
		Status:                    string(item.Status),
		UnitPrice:                 amount(item.UnitPrice),
		Quantity:                  int64(item.Quantity),
		TripsRequired:             int64(item.TripsRequired),
		ShippingChargeType:        string(item.ShippingChargeType),
		ShippingChargePerTrip:     amount(item.ShippingChargePerTrip),
		InstallationAvailable:     string(item.InstallationAvailable),
		InstallationChargePerUnit: amount(item.InstallationChargePerUnit),
		Total:                     amount(item.Total),
		CreatedAt:                 storedTime(item.CreatedAt),
		UpdatedAt:                 storedTime(item.UpdatedAt),
	}
}

func (d orderItemDocument) toDomain(id string) domain.OrderItem {
	return domain.OrderItem{
		ID:                        id,
		OrderID:                   d.OrderID,
		CustomerID:                d.CustomerID,
		ProductID:                 d.ProductID,
		SellerID:                  d.SellerID,
		Name:                      d.Name,
		Status:                    domain.OrderStatus(d.Status),
		UnitPrice:                 parseAmount(d.UnitPrice),
		Quantity:                  int(d.Quantity),
		TripsRequired:             int(d.TripsRequired),
		ShippingChargeType:        domain.ShippingChargeType(d.ShippingChargeType),
		ShippingChargePerTrip:     parseAmount(d.ShippingChargePerTrip),
		InstallationAvailable:     domain.InstallationAvailability(d.InstallationAvailable),
		InstallationChargePerUnit: parseAmount(d.InstallationChargePerUnit),
		Total:                     parseAmount(d.Total),
		CreatedAt:                 d.CreatedAt.UTC(),
		UpdatedAt:                 d.UpdatedAt.UTC(),
	}
}

type returnDocument struct {
	OrderID              string     `firestore:"orderId"`
	OrderItemID          string     `firestore:"orderItemId"`
	CustomerID           string     `firestore:"customerId"`
	SellerID             string     `firestore:"sellerId"`
	Reason               string     `firestore:"reason"`
	RefundMethod         string     `firestore:"refundMethod"`
	RefundAmount         string     `firestore:"refundAmount"`
	SellerApprovalStatus string     `firestore:"sellerApprovalStatus"`
	AdminApprovalStatus  string     `firestore:"adminApprovalStatus"`
	RefundStatus         string     `firestore:"refundStatus"`
	RefundReference      string     `firestore:"refundReference,omitempty"`
	ImagePaths           []string   `firestore:"imagePaths,omitempty"`
	SellerDecidedAt      *time.Time `firestore:"sellerDecidedAt,omitempty"`
	SellerDecidedBy      string     `firestore:"sellerDecidedBy,omitempty"`
	AdminDecidedAt       *time.Time `firestore:"adminDecidedAt,omitempty"`
	AdminDecidedBy       string     `firestore:"adminDecidedBy,omitempty"`
	RefundedAt           *time.Time `firestore:"refundedAt,omitempty"`
	CreatedAt            time.Time  `firestore:"createdAt"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

func newReturnDocument(ret domain.ReturnRequest) returnDocument {
	return returnDocument{
		OrderID:              ret.OrderID,
		OrderItemID:          ret.OrderItemID,
		CustomerID:           ret.CustomerID,
		SellerID:             ret.SellerID,
		Reason:               ret.Reason,
		RefundMethod:         string(ret.RefundMethod),
		RefundAmount:         amount(ret.RefundAmount),
		SellerApprovalStatus: string(ret.SellerApprovalStatus),
		AdminApprovalStatus:  string(ret.AdminApprovalStatus),
		RefundStatus:         string(ret.RefundStatus),
		RefundReference:      ret.RefundReference,
		ImagePaths:           ret.ImagePaths,
		SellerDecidedAt:      optionalTime(ret.SellerDecidedAt),
		SellerDecidedBy:      ret.SellerDecidedBy,
		AdminDecidedAt:       optionalTime(ret.AdminDecidedAt),
		AdminDecidedBy:       ret.AdminDecidedBy,
		RefundedAt:           optionalTime(ret.RefundedAt),
		CreatedAt:            storedTime(ret.CreatedAt),
		UpdatedAt:            storedTime(ret.UpdatedAt),
	}
}

// Stored statuses are read back as-is; derivation normalises unknown values.
func (d returnDocument) toDomain(id string) domain.ReturnRequest {
	return domain.ReturnRequest{
		ID:                   id,
		OrderID:              d.OrderID,
		OrderItemID:          d.OrderItemID,
		CustomerID:           d.CustomerID,
		SellerID:             d.SellerID,
		Reason:               d.Reason,
		RefundMethod:         domain.RefundMethod(d.RefundMethod),
		RefundAmount:         parseAmount(d.RefundAmount),
		SellerApprovalStatus: domain.ApprovalStatus(d.SellerApprovalStatus),
		AdminApprovalStatus:  domain.ApprovalStatus(d.AdminApprovalStatus),
		RefundStatus:         domain.RefundStatus(d.RefundStatus),
		RefundReference:      d.RefundReference,
		ImagePaths:           d.ImagePaths,
		SellerDecidedAt:      d.SellerDecidedAt,
		SellerDecidedBy:      d.SellerDecidedBy,
		AdminDecidedAt:       d.AdminDecidedAt,
		AdminDecidedBy:       d.AdminDecidedBy,
		RefundedAt:           d.RefundedAt,
		CreatedAt:            d.CreatedAt.UTC(),
		UpdatedAt:            d.UpdatedAt.UTC(),
	}
}

type productDocument struct {
	SellerID                  string    `firestore:"sellerId"`
	Name                      string    `firestore:"name"`
	Description               string    `firestore:"description,omitempty"`
	Category                  string    `firestore:"category,omitempty"`
	BasePrice                 string    `firestore:"basePrice"`
	Price                     string    `firestore:"price"`
	UnitsPerTrip              int64     `firestore:"unitsPerTrip"`
	ShippingChargeType        string    `firestore:"shippingChargeType"`
	ShippingChargePerTrip     string    `firestore:"shippingChargePerTrip"`
	InstallationAvailable     string    `firestore:"installationAvailable"`
	InstallationChargePerUnit string    `firestore:"installationChargePerUnit"`
	ImagePaths                []string  `firestore:"imagePaths,omitempty"`
	CreatedAt                 time.Time `firestore:"createdAt"`
	UpdatedAt                 time.Time `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		SellerID:                  p.SellerID,
		Name:                      p.Name,
		Description:               p.Description,
		Category:                  p.Category,
		BasePrice:                 amount(p.BasePrice),
		Price:                     amount(p.Price),
		UnitsPerTrip:              int64(p.UnitsPerTrip),
		ShippingChargeType:        string(p.ShippingChargeType),
		ShippingChargePerTrip:     amount(p.ShippingChargePerTrip),
		InstallationAvailable:     string(p.InstallationAvailable),
		InstallationChargePerUnit: amount(p.InstallationChargePerUnit),
		ImagePaths:                p.ImagePaths,
		CreatedAt:                 storedTime(p.CreatedAt),
		UpdatedAt:                 storedTime(p.UpdatedAt),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:                        id,
		SellerID:                  d.SellerID,
		Name:                      d.Name,
		Description:               d.Description,
		Category:                  d.Category,
		BasePrice:                 parseAmount(d.BasePrice),
		Price:                     parseAmount(d.Price),
		UnitsPerTrip:              int(d.UnitsPerTrip),
		ShippingChargeType:        domain.ShippingChargeType(d.ShippingChargeType),
		ShippingChargePerTrip:     parseAmount(d.ShippingChargePerTrip),
		InstallationAvailable:     domain.InstallationAvailability(d.InstallationAvailable),
		InstallationChargePerUnit: parseAmount(d.InstallationChargePerUnit),
		ImagePaths:                d.ImagePaths,
		CreatedAt:                 d.CreatedAt.UTC(),
		UpdatedAt:                 d.UpdatedAt.UTC(),
	}
}

type storeCreditDocument struct {
	Balance   string    `firestore:"balance"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// structCodec builds the encoder and decoder pair for a document type with a toDomain method.
func structCodec[D any, T any](fromDomain func(T) D, toDomain func(D, string) T) (func(T) (any, error), func(*firestore.DocumentSnapshot) (T, error)) {
	encode := func(value T) (any, error) {
		return fromDomain(value), nil
	}
	decode := func(snap *firestore.DocumentSnapshot) (T, error) {
		var doc D
		if err := snap.DataTo(&doc); err != nil {
			var zero T
			return zero, err
		}
		return toDomain(doc, snap.Ref.ID), nil
	}
	return encode, decode
}
