package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

const defaultCurrency = "INR"

// MeHandlers exposes endpoints scoped to the signed-in customer.
type MeHandlers struct {
	authn    *auth.Authenticator
	credits  services.StoreCreditService
	currency string
	opts     routeOptions
}

// NewMeHandlers constructs handlers for /me. currency is used to format balances.
func NewMeHandlers(authn *auth.Authenticator, credits services.StoreCreditService, currency string, opts ...RouteOption) *MeHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &MeHandlers{
		authn:    authn,
		credits:  credits,
		currency: currency,
		opts:     buildRouteOptions(opts),
	}
}

// Routes wires the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn)...).With(h.opts.authenticated...)
	group.Get("/store-credit", h.storeCredit)
}

type storeCreditPayload struct {
	CustomerID string `json:"customerId"`
	Balance    string `json:"balance"`
	Formatted  string `json:"formatted"`
	Currency   string `json:"currency"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

func (h *MeHandlers) storeCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.credits == nil {
		unavailable(ctx, w, "store_credit")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}

	account, err := h.credits.Balance(ctx, uid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStoreCreditInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrStoreCreditUnavailable):
			unavailable(ctx, w, "store_credit")
		default:
			httpx.WriteError(ctx, w, httpx.NewError("store_credit_error", "failed to load store credit", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, storeCreditPayload{
		CustomerID: account.CustomerID,
		Balance:    money(account.Balance),
		Formatted:  services.FormatAmount(account.Balance, h.currency),
		Currency:   h.currency,
		UpdatedAt:  formatTime(account.UpdatedAt),
	})
}
