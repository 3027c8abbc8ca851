package handlers

import (
	"strings"

	"github.com/core2cover/api/internal/services"
)

type lineItemPayload struct {
	ProductID                 string `json:"productId"`
	SellerID                  string `json:"sellerId,omitempty"`
	Name                      string `json:"name"`
	UnitPrice                 string `json:"unitPrice"`
	Quantity                  int    `json:"quantity"`
	TripsRequired             int    `json:"tripsRequired"`
	ShippingChargeType        string `json:"shippingChargeType"`
	ShippingChargePerTrip     string `json:"shippingChargePerTrip"`
	InstallationAvailable     string `json:"installationAvailable"`
	InstallationChargePerUnit string `json:"installationChargePerUnit"`
	LineTotal                 string `json:"lineTotal"`
}

type summaryPayload struct {
	Subtotal          string `json:"subtotal"`
	RawShipping       string `json:"rawShipping"`
	PlatformCharge    string `json:"platformCharge"`
	DeliveryCharge    string `json:"deliveryCharge"`
	InstallationTotal string `json:"installationTotal"`
	GrandTotal        string `json:"grandTotal"`
}

type quotePayload struct {
	Currency  string            `json:"currency"`
	Items     []lineItemPayload `json:"items"`
	Summary   summaryPayload    `json:"summary"`
	CreditUse string            `json:"creditUse"`
	AmountDue string            `json:"amountDue"`
	Formatted map[string]string `json:"formatted,omitempty"`
}

type addressPayload struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type labelPayload struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type returnPayload struct {
	ID                   string       `json:"id"`
	OrderID              string       `json:"orderId"`
	OrderItemID          string       `json:"orderItemId"`
	CustomerID           string       `json:"customerId"`
	SellerID             string       `json:"sellerId"`
	Reason               string       `json:"reason"`
	RefundMethod         string       `json:"refundMethod"`
	RefundAmount         string       `json:"refundAmount"`
	SellerApprovalStatus string       `json:"sellerApprovalStatus"`
	AdminApprovalStatus  string       `json:"adminApprovalStatus"`
	RefundStatus         string       `json:"refundStatus"`
	RefundReference      string       `json:"refundReference,omitempty"`
	State                string       `json:"state"`
	Label                labelPayload `json:"label"`
	ImagePaths           []string     `json:"imagePaths"`
	CreatedAt            string       `json:"createdAt"`
	UpdatedAt            string       `json:"updatedAt"`
	RefundedAt           string       `json:"refundedAt,omitempty"`
}

type orderItemPayload struct {
	ID            string         `json:"id"`
	OrderID       string         `json:"orderId"`
	ProductID     string         `json:"productId"`
	SellerID      string         `json:"sellerId"`
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	UnitPrice     string         `json:"unitPrice"`
	Quantity      int            `json:"quantity"`
	TripsRequired int            `json:"tripsRequired"`
	Total         string         `json:"total"`
	Label         labelPayload   `json:"label"`
	ReturnState   string         `json:"returnState,omitempty"`
	Return        *returnPayload `json:"return,omitempty"`
	UpdatedAt     string         `json:"updatedAt"`
}

type orderPayload struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customerId"`
	Status            string             `json:"status"`
	Currency          string             `json:"currency"`
	Subtotal          string             `json:"subtotal"`
	ShippingCharge    string             `json:"shippingCharge"`
	PlatformCharge    string             `json:"platformCharge"`
	DeliveryCharge    string             `json:"deliveryCharge"`
	InstallationTotal string             `json:"installationTotal"`
	GrandTotal        string             `json:"grandTotal"`
	CreditUsed        string             `json:"creditUsed"`
	AmountDue         string             `json:"amountDue"`
	PaymentMethod     string             `json:"paymentMethod"`
	ShippingAddress   *addressPayload    `json:"shippingAddress,omitempty"`
	Items             []orderItemPayload `json:"items"`
	CreatedAt         string             `json:"createdAt"`
}

type productPayload struct {
	ID                        string   `json:"id"`
	SellerID                  string   `json:"sellerId"`
	Name                      string   `json:"name"`
	Description               string   `json:"description,omitempty"`
	Category                  string   `json:"category,omitempty"`
	BasePrice                 string   `json:"basePrice"`
	Price                     string   `json:"price"`
	UnitsPerTrip              int      `json:"unitsPerTrip"`
	ShippingChargeType        string   `json:"shippingChargeType"`
	ShippingChargePerTrip     string   `json:"shippingChargePerTrip"`
	InstallationAvailable     string   `json:"installationAvailable"`
	InstallationChargePerUnit string   `json:"installationChargePerUnit"`
	ImagePaths                []string `json:"imagePaths"`
	CreatedAt                 string   `json:"createdAt"`
	UpdatedAt                 string   `json:"updatedAt"`
}

type uploadPayload struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ObjectPath string            `json:"objectPath"`
	ExpiresAt  string            `json:"expiresAt"`
}

type pagePayload[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

func buildLineItems(items []services.LineItem) []lineItemPayload {
	out := make([]lineItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, lineItemPayload{
			ProductID:                 item.ProductID,
			SellerID:                  item.SellerID,
			Name:                      item.Name,
			UnitPrice:                 money(item.UnitPrice),
			Quantity:                  item.Quantity,
			TripsRequired:             item.TripsRequired,
			ShippingChargeType:        string(item.ShippingChargeType),
			ShippingChargePerTrip:     money(item.ShippingChargePerTrip),
			InstallationAvailable:     string(item.InstallationAvailable),
			InstallationChargePerUnit: money(item.InstallationChargePerUnit),
			LineTotal:                 money(item.LineTotal()),
		})
	}
	return out
}

func buildSummary(summary services.OrderSummary) summaryPayload {
	return summaryPayload{
		Subtotal:          money(summary.Subtotal),
		RawShipping:       money(summary.RawShipping),
		PlatformCharge:    money(summary.PlatformCharge),
		DeliveryCharge:    money(summary.DeliveryCharge),
		InstallationTotal: money(summary.InstallationTotal),
		GrandTotal:        money(summary.GrandTotal),
	}
}

func buildQuote(quote services.CheckoutQuote) quotePayload {
	return quotePayload{
		Currency:  quote.Currency,
		Items:     buildLineItems(quote.Items),
		Summary:   buildSummary(quote.Summary),
		CreditUse: money(quote.CreditUse),
		AmountDue: money(quote.AmountDue),
		Formatted: quote.Formatted,
	}
}

func buildLabel(label services.StatusLabel) labelPayload {
	return labelPayload{Text: label.Text, Style: label.StyleTag}
}

func buildAddress(addr *services.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	return &addressPayload{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func (p *addressPayload) toAddress() *services.Address {
	if p == nil {
		return nil
	}
	return &services.Address{
		Recipient:  p.Recipient,
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		Phone:      p.Phone,
	}
}

func buildReturn(view services.ReturnView) returnPayload {
	ret := view.Return
	paths := ret.ImagePaths
	if paths == nil {
		paths = []string{}
	}
	return returnPayload{
		ID:                   ret.ID,
		OrderID:              ret.OrderID,
		OrderItemID:          ret.OrderItemID,
		CustomerID:           ret.CustomerID,
		SellerID:             ret.SellerID,
		Reason:               ret.Reason,
		RefundMethod:         string(ret.RefundMethod),
		RefundAmount:         money(ret.RefundAmount),
		SellerApprovalStatus: string(ret.SellerApprovalStatus),
		AdminApprovalStatus:  string(ret.AdminApprovalStatus),
		RefundStatus:         string(ret.RefundStatus),
		RefundReference:      ret.RefundReference,
		State:                string(view.State),
		Label:                buildLabel(view.Label),
		ImagePaths:           paths,
		CreatedAt:            formatTime(ret.CreatedAt),
		UpdatedAt:            formatTime(ret.UpdatedAt),
		RefundedAt:           formatTimePtr(ret.RefundedAt),
	}
}

func buildOrderItem(view services.OrderItemView) orderItemPayload {
	item := view.Item
	payload := orderItemPayload{
		ID:            item.ID,
		OrderID:       item.OrderID,
		ProductID:     item.ProductID,
		SellerID:      item.SellerID,
		Name:          item.Name,
		Status:        string(item.Status),
		UnitPrice:     money(item.UnitPrice),
		Quantity:      item.Quantity,
		TripsRequired: item.TripsRequired,
		Total:         money(item.Total),
		Label:         buildLabel(view.Label),
		UpdatedAt:     formatTime(item.UpdatedAt),
	}
	if view.ReturnState != nil {
		payload.ReturnState = string(*view.ReturnState)
	}
	if view.Return != nil {
		ret := buildReturn(services.ReturnView{
			Return: *view.Return,
			State:  services.DeriveReturnState(view.Return.SellerApprovalStatus, view.Return.AdminApprovalStatus),
			Label:  services.ResolveReturnLabel(item.Status, view.Return),
		})
		payload.Return = &ret
	}
	return payload
}

func buildOrder(view services.OrderView) orderPayload {
	order := view.Order
	items := make([]orderItemPayload, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, buildOrderItem(item))
	}
	return orderPayload{
		ID:                order.ID,
		CustomerID:        order.CustomerID,
		Status:            string(order.Status),
		Currency:          order.Currency,
		Subtotal:          money(order.Subtotal),
		ShippingCharge:    money(order.ShippingCharge),
		PlatformCharge:    money(order.PlatformCharge),
		DeliveryCharge:    money(order.DeliveryCharge),
		InstallationTotal: money(order.InstallationTotal),
		GrandTotal:        money(order.GrandTotal),
		CreditUsed:        money(order.CreditUsed),
		AmountDue:         money(order.AmountDue),
		PaymentMethod:     order.PaymentMethod,
		ShippingAddress:   buildAddress(order.ShippingAddress),
		Items:             items,
		CreatedAt:         formatTime(order.CreatedAt),
	}
}

// plainOrder renders a freshly placed order, whose items have no returns yet.
func plainOrder(order services.Order) orderPayload {
	view := services.OrderView{Order: order, Items: make([]services.OrderItemView, 0, len(order.Items))}
	for _, item := range order.Items {
		view.Items = append(view.Items, services.OrderItemView{
			Item:  item,
			Label: services.LabelForOrder(item.Status, nil, "", ""),
		})
	}
	return buildOrder(view)
}

func buildProduct(product services.Product) productPayload {
	paths := product.ImagePaths
	if paths == nil {
		paths = []string{}
	}
	return productPayload{
		ID:                        product.ID,
		SellerID:                  product.SellerID,
		Name:                      product.Name,
		Description:               product.Description,
		Category:                  product.Category,
		BasePrice:                 money(product.BasePrice),
		Price:                     money(product.Price),
		UnitsPerTrip:              product.UnitsPerTrip,
		ShippingChargeType:        string(product.ShippingChargeType),
		ShippingChargePerTrip:     money(product.ShippingChargePerTrip),
		InstallationAvailable:     string(product.InstallationAvailable),
		InstallationChargePerUnit: money(product.InstallationChargePerUnit),
		ImagePaths:                paths,
		CreatedAt:                 formatTime(product.CreatedAt),
		UpdatedAt:                 formatTime(product.UpdatedAt),
	}
}

func buildUpload(upload services.SignedUpload) uploadPayload {
	return uploadPayload{
		URL:        upload.URL,
		Method:     upload.Method,
		Headers:    upload.Headers,
		ObjectPath: upload.ObjectPath,
		ExpiresAt:  formatTime(upload.ExpiresAt),
	}
}

type uploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

func (u uploadRequest) normalized() uploadRequest {
	u.FileName = strings.TrimSpace(u.FileName)
	u.ContentType = strings.TrimSpace(u.ContentType)
	return u
}
