package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

// PricingHandlers exposes the listing price preview sellers see while editing a product.
type PricingHandlers struct {
	currency string
}

// NewPricingHandlers constructs pricing handlers formatting amounts in currency.
func NewPricingHandlers(currency string) *PricingHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &PricingHandlers{currency: currency}
}

// Routes wires the /pricing endpoints.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/listing-price", h.listingPrice)
}

type listingPricePayload struct {
	Base           string `json:"base"`
	CommissionRate string `json:"commissionRate"`
	Price          string `json:"price"`
	Formatted      string `json:"formatted"`
	Currency       string `json:"currency"`
}

func (h *PricingHandlers) listingPrice(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("base"))
	if raw == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "base query parameter is required", http.StatusBadRequest))
		return
	}

	price := services.ParseListingPrice(raw)
	payload := listingPricePayload{
		Base:      raw,
		Price:     money(price),
		Formatted: services.FormatAmount(price, h.currency),
		Currency:  h.currency,
	}
	if price.IsPositive() {
		base, err := decimal.NewFromString(raw)
		if err == nil {
			payload.Base = money(base)
			payload.CommissionRate = services.CommissionRate(base).String()
		}
	} else {
		payload.CommissionRate = "0"
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, payload)
}
