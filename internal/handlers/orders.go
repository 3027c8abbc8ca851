package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

// OrderHandlers exposes customer order history.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	opts   routeOptions
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...RouteOption) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
		opts:   buildRouteOptions(opts),
	}
}

// Routes wires the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn)...).With(h.opts.authenticated...)
	group.Get("/", h.listOrders)
	group.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.orders.ListOrders(ctx, services.OrderListFilter{CustomerID: uid, Pagination: page})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := pagePayload[orderPayload]{Items: make([]orderPayload, 0, len(result.Items)), NextPageToken: result.NextPageToken}
	for _, view := range result.Items {
		payload.Items = append(payload.Items, buildOrder(view))
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		unavailable(ctx, w, "order")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_id", "order id is required", http.StatusBadRequest))
		return
	}

	view, err := h.orders.GetOrder(ctx, uid, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrder(view))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
