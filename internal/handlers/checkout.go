package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

// CheckoutHandlers exposes cart pricing and order placement.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	opts     routeOptions
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, opts ...RouteOption) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
		opts:     buildRouteOptions(opts),
	}
}

// Routes wires the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn)...).With(h.opts.authenticated...)
	group.Post("/quote", h.quote)
	group.Method(http.MethodPost, "/", h.opts.guard(h.placeOrder))
}

// CartRoutes wires the /cart endpoints.
func (h *CheckoutHandlers) CartRoutes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn)...).With(h.opts.authenticated...)
	group.Post("/snapshot", h.snapshot)
}

type quoteRequest struct {
	Items        []domain.LineItemInput `json:"items"`
	CartSnapshot string                 `json:"cartSnapshot"`
	StoreCredit  domain.NumericInput    `json:"storeCredit"`
}

type placeOrderRequest struct {
	Items           []domain.LineItemInput `json:"items"`
	CartSnapshot    string                 `json:"cartSnapshot"`
	StoreCredit     domain.NumericInput    `json:"storeCredit"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ShippingAddress *addressPayload        `json:"shippingAddress"`
}

type snapshotRequest struct {
	Items []domain.LineItemInput `json:"items"`
}

func (h *CheckoutHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req quoteRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	quote, err := h.checkout.Quote(ctx, services.QuoteCommand{
		Lines:        req.Items,
		CartSnapshot: req.CartSnapshot,
		StoreCredit:  req.StoreCredit.String(),
		CustomerID:   uid,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildQuote(quote))
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req placeOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		CustomerID:      uid,
		Lines:           req.Items,
		CartSnapshot:    req.CartSnapshot,
		StoreCredit:     req.StoreCredit.String(),
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress.toAddress(),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	httpx.WriteJSON(w, http.StatusCreated, plainOrder(order))
}

func (h *CheckoutHandlers) snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		unavailable(ctx, w, "checkout")
		return
	}
	if _, ok := identityUID(ctx, w); !ok {
		return
	}
	var req snapshotRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	encoded, err := h.checkout.SnapshotCart(ctx, req.Items)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"cartSnapshot": encoded})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutInsufficientCredit):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_store_credit", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutStoreCreditDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("store_credit_disabled", "store credit is not available", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "failed to process checkout", http.StatusInternalServerError))
	}
}
