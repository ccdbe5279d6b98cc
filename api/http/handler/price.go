package handler

import (
	"net/http"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

type PriceRegistry interface {
	Prices() []domain.PriceTick
	Err() error
}

type PriceHandler struct {
	registry PriceRegistry
}

func NewPriceHandler(registry PriceRegistry) *PriceHandler {
	return &PriceHandler{registry: registry}
}

type pricesResponse struct {
	Prices []domain.PriceTick `json:"prices"`
	Error  string             `json:"error,omitempty"`
}

// GetPrices serves GET /api/prices with the latest cached tick per symbol.
// A failed snapshot refresh shows up as the error field, the cache itself
// stays intact.
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	body := pricesResponse{Prices: h.registry.Prices()}
	if err := h.registry.Err(); err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}
