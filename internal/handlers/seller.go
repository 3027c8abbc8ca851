package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

// SellerHandlers exposes the seller dashboard: fulfilment, return decisions and listings.
type SellerHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	returns  services.ReturnService
	products services.ProductService
	opts     routeOptions
}

// SellerDeps bundles the services behind the seller routes.
type SellerDeps struct {
	Orders   services.OrderService
	Returns  services.ReturnService
	Products services.ProductService
}

// NewSellerHandlers constructs seller handlers.
func NewSellerHandlers(authn *auth.Authenticator, deps SellerDeps, opts ...RouteOption) *SellerHandlers {
	return &SellerHandlers{
		authn:    authn,
		orders:   deps.Orders,
		returns:  deps.Returns,
		products: deps.Products,
		opts:     buildRouteOptions(opts),
	}
}

// Routes wires the /seller endpoints.
func (h *SellerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn, auth.RoleSeller)...).With(h.opts.authenticated...)

	group.Get("/orders", h.listItems)
	group.Post("/order-items/{itemID}:status", h.updateItemStatus)

	group.Get("/returns", h.listReturns)
	group.Get("/returns/{returnID}", h.getReturn)
	group.Post("/returns/{returnID}:approve", h.decideReturn(true))
	group.Post("/returns/{returnID}:reject", h.decideReturn(false))

	group.Get("/products", h.listProducts)
	group.Method(http.MethodPost, "/products", h.opts.guard(h.createProduct))
	group.Put("/products/{productID}", h.updateProduct)
	group.Post("/products/{productID}/images:upload-url", h.imageUpload)
}

func (h *SellerHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	page, ok := pageParams(ctx, w, r)
	if !ok {
		return
	}

	var statuses []services.OrderStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, services.OrderStatus(part))
			}
		}
	}

	result, err := h.orders.ListSellerItems(ctx, services.SellerItemFilter{
		SellerID:   uid,
		Statuses:   statuses,
		Pagination: page,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := pagePayload[orderItemPayload]{Items: make([]orderItemPayload, 0, len(result.Items)), NextPageToken: result.NextPageToken}
	for _, view := range result.Items {
		payload.Items = append(payload.Items, buildOrderItem(view))
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

func (h *SellerHandlers) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_item_id", "order item id is required", http.StatusBadRequest))
		return
	}
	var req itemStatusRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	view, err := h.orders.UpdateItemStatus(ctx, services.UpdateItemStatusCommand{
		SellerID:     uid,
		ItemID:       itemID,
		TargetStatus: services.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderItem(view))
}

func (h *SellerHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	page, ok := pageParams(ctx, w, r)
	if !ok {
		return
	}
	result, err := h.returns.ListReturns(ctx, services.ReturnListFilter{SellerID: uid, Pagination: page})
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturnPage(result.Items, result.NextPageToken))
}

func (h *SellerHandlers) getReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	returnID, ok := returnIDParam(ctx, w, r)
	if !ok {
		return
	}
	view, err := h.returns.GetReturn(ctx, services.ReturnActor{SellerID: uid}, returnID)
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
}

func (h *SellerHandlers) decideReturn(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.returns == nil {
			unavailable(ctx, w, "return")
			return
		}
		uid, ok := identityUID(ctx, w)
		if !ok {
			return
		}
		returnID, ok := returnIDParam(ctx, w, r)
		if !ok {
			return
		}
		view, err := h.returns.SellerDecision(ctx, services.ReturnDecisionCommand{
			ReturnID: returnID,
			ActorID:  uid,
			Approve:  approve,
		})
		if err != nil {
			writeReturnError(ctx, w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
	}
}

type productRequest struct {
	Name                      string              `json:"name"`
	Description               string              `json:"description"`
	Category                  string              `json:"category"`
	BasePrice                 domain.NumericInput `json:"basePrice"`
	UnitsPerTrip              domain.NumericInput `json:"unitsPerTrip"`
	ShippingChargeType        string              `json:"shippingChargeType"`
	ShippingChargePerTrip     domain.NumericInput `json:"shippingChargePerTrip"`
	InstallationAvailable     string              `json:"installationAvailable"`
	InstallationChargePerUnit domain.NumericInput `json:"installationChargePerUnit"`
	ImagePaths                []string            `json:"imagePaths"`
}

func (req productRequest) command(sellerID, productID string) (services.UpsertProductCommand, error) {
	units := 0
	if raw := strings.TrimSpace(req.UnitsPerTrip.String()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return services.UpsertProductCommand{}, errors.New("unitsPerTrip must be a whole number")
		}
		units = parsed
	}
	return services.UpsertProductCommand{
		ProductID:                 productID,
		SellerID:                  sellerID,
		Name:                      req.Name,
		Description:               req.Description,
		Category:                  req.Category,
		BasePrice:                 req.BasePrice.String(),
		UnitsPerTrip:              units,
		ShippingChargeType:        req.ShippingChargeType,
		ShippingChargePerTrip:     req.ShippingChargePerTrip.String(),
		InstallationAvailable:     req.InstallationAvailable,
		InstallationChargePerUnit: req.InstallationChargePerUnit.String(),
		ImagePaths:                req.ImagePaths,
	}, nil
}

func (h *SellerHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		unavailable(ctx, w, "product")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	page, ok := pageParams(ctx, w, r)
	if !ok {
		return
	}
	result, err := h.products.ListSellerProducts(ctx, uid, page)
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	payload := pagePayload[productPayload]{Items: make([]productPayload, 0, len(result.Items)), NextPageToken: result.NextPageToken}
	for _, product := range result.Items {
		payload.Items = append(payload.Items, buildProduct(product))
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *SellerHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	h.upsertProduct(w, r, "")
}

func (h *SellerHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_product_id", "product id is required", http.StatusBadRequest))
		return
	}
	h.upsertProduct(w, r, productID)
}

func (h *SellerHandlers) upsertProduct(w http.ResponseWriter, r *http.Request, productID string) {
	ctx := r.Context()
	if h.products == nil {
		unavailable(ctx, w, "product")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req productRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	cmd, err := req.command(uid, productID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var product services.Product
	status := http.StatusOK
	if productID == "" {
		product, err = h.products.CreateProduct(ctx, cmd)
		status = http.StatusCreated
	} else {
		product, err = h.products.UpdateProduct(ctx, cmd)
	}
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, status, buildProduct(product))
}

func (h *SellerHandlers) imageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		unavailable(ctx, w, "product")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req uploadRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	req = req.normalized()

	signed, err := h.products.IssueImageUpload(ctx, services.ProductImageUploadCommand{
		SellerID:    uid,
		ProductID:   strings.TrimSpace(chi.URLParam(r, "productID")),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUpload(signed))
}

func writeProductError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductUploadsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "uploads are not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("product_error", "failed to process product request", http.StatusInternalServerError))
	}
}
