package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/services"
)

type stubProductService struct {
	product   services.Product
	page      domain.CursorPage[services.Product]
	upload    services.SignedUpload
	err       error
	created   []services.UpsertProductCommand
	updated   []services.UpsertProductCommand
	uploadCmd services.ProductImageUploadCommand
}

func (s *stubProductService) CreateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.created = append(s.created, cmd)
	return s.product, s.err
}

func (s *stubProductService) UpdateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.updated = append(s.updated, cmd)
	return s.product, s.err
}

func (s *stubProductService) ListSellerProducts(_ context.Context, _ string, _ services.Pagination) (domain.CursorPage[services.Product], error) {
	return s.page, s.err
}

func (s *stubProductService) IssueImageUpload(_ context.Context, cmd services.ProductImageUploadCommand) (services.SignedUpload, error) {
	s.uploadCmd = cmd
	return s.upload, s.err
}

func sellerRouter(deps SellerDeps) http.Handler {
	h := NewSellerHandlers(nil, deps)
	return NewRouter(WithMiddlewares(withTestIdentity("seller-1", "seller")), WithSellerRoutes(h.Routes))
}

func TestSellerHandlersListItemsParsesStatuses(t *testing.T) {
	orders := &stubOrderService{}
	router := sellerRouter(SellerDeps{Orders: orders})

	rr := doJSON(t, router, http.MethodGet, "/api/v1/seller/orders?status=pending,%20confirmed&status=fulfilled", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := []services.OrderStatus{"pending", "confirmed", "fulfilled"}
	got := orders.itemFilter.Statuses
	if orders.itemFilter.SellerID != "seller-1" || len(got) != len(want) {
		t.Fatalf("unexpected filter %+v", orders.itemFilter)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSellerHandlersUpdateItemStatus(t *testing.T) {
	orders := &stubOrderService{itemView: services.OrderItemView{
		Item:  services.OrderItem{ID: "itm_1", Status: domain.OrderStatusConfirmed},
		Label: services.LabelForOrder(domain.OrderStatusConfirmed, nil, "", ""),
	}}
	router := sellerRouter(SellerDeps{Orders: orders})

	rr := doJSON(t, router, http.MethodPost, "/api/v1/seller/order-items/itm_1:status", map[string]string{"status": "confirmed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if orders.updateCmd.ItemID != "itm_1" || orders.updateCmd.SellerID != "seller-1" || orders.updateCmd.TargetStatus != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected command %+v", orders.updateCmd)
	}
	body := decodeResponse[orderItemPayload](t, rr)
	if body.Label.Text != "Confirmed" {
		t.Fatalf("unexpected label %+v", body.Label)
	}

	orders.err = services.ErrOrderInvalidState
	rr = doJSON(t, router, http.MethodPost, "/api/v1/seller/order-items/itm_1:status", map[string]string{"status": "fulfilled"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestSellerHandlersReturnDecisions(t *testing.T) {
	returns := &stubReturnService{view: requestedReturnView()}
	router := sellerRouter(SellerDeps{Returns: returns})

	rr := doJSON(t, router, http.MethodPost, "/api/v1/seller/returns/ret_itm_1:approve", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !returns.sellerCmd.Approve || returns.sellerCmd.ActorID != "seller-1" {
		t.Fatalf("unexpected command %+v", returns.sellerCmd)
	}

	returns.err = services.ErrReturnForbidden
	rr = doJSON(t, router, http.MethodPost, "/api/v1/seller/returns/ret_itm_1:reject", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if returns.sellerCmd.Approve {
		t.Fatalf("expected reject to be forwarded")
	}
}

func TestSellerHandlersCreateProduct(t *testing.T) {
	products := &stubProductService{product: services.Product{
		ID:                 "prd_1",
		SellerID:           "seller-1",
		Name:               "Oak Table",
		BasePrice:          decimal.NewFromInt(10000),
		Price:              decimal.NewFromInt(10500),
		UnitsPerTrip:       2,
		ShippingChargeType: domain.ShippingChargeFree,
	}}
	router := sellerRouter(SellerDeps{Products: products})

	rr := doJSON(t, router, http.MethodPost, "/api/v1/seller/products", map[string]any{
		"name":               "Oak Table",
		"basePrice":          "10000",
		"unitsPerTrip":       2,
		"shippingChargeType": "Free",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(products.created) != 1 || products.created[0].UnitsPerTrip != 2 || products.created[0].BasePrice != "10000" {
		t.Fatalf("unexpected command %+v", products.created)
	}
	body := decodeResponse[productPayload](t, rr)
	if body.Price != "10500.00" || len(body.ImagePaths) != 0 {
		t.Fatalf("unexpected product %+v", body)
	}

	rr = doJSON(t, router, http.MethodPost, "/api/v1/seller/products", map[string]any{"unitsPerTrip": "two"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric units, got %d", rr.Code)
	}
}

func TestSellerHandlersUpdateProductAndUpload(t *testing.T) {
	products := &stubProductService{
		product: services.Product{ID: "prd_1", SellerID: "seller-1"},
		upload:  services.SignedUpload{ObjectPath: "products/seller-1/prd_1/01P01/front.png", Method: http.MethodPut},
	}
	router := sellerRouter(SellerDeps{Products: products})

	rr := doJSON(t, router, http.MethodPut, "/api/v1/seller/products/prd_1", map[string]any{"name": "Oak Table", "basePrice": 12000})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(products.updated) != 1 || products.updated[0].ProductID != "prd_1" {
		t.Fatalf("unexpected update %+v", products.updated)
	}

	rr = doJSON(t, router, http.MethodPost, "/api/v1/seller/products/prd_1/images:upload-url", map[string]any{
		"fileName": "front.png", "contentType": "image/png", "sizeBytes": 1024,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if products.uploadCmd.ProductID != "prd_1" || products.uploadCmd.ContentType != "image/png" {
		t.Fatalf("unexpected upload command %+v", products.uploadCmd)
	}

	products.err = services.ErrProductUploadsUnavailable
	rr = doJSON(t, router, http.MethodPost, "/api/v1/seller/products/prd_1/images:upload-url", map[string]any{"fileName": "front.png"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestPricingHandlersListingPrice(t *testing.T) {
	router := NewRouter(WithPricingRoutes(NewPricingHandlers("inr").Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/pricing/listing-price?base=999.99", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse[listingPricePayload](t, rr)
	if body.Price != "1069.99" || body.Base != "999.99" || body.Currency != "INR" {
		t.Fatalf("unexpected payload %+v", body)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/v1/pricing/listing-price?base=abc", nil)
	body = decodeResponse[listingPricePayload](t, rr)
	if rr.Code != http.StatusOK || body.Price != "0.00" {
		t.Fatalf("expected zero price for unparseable base, got %d %+v", rr.Code, body)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/v1/pricing/listing-price", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without base, got %d", rr.Code)
	}
}
