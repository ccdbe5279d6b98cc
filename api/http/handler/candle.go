package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-http-utils/headers"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

type BackfillLoader interface {
	Load(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error)
}

type CandleHandler struct {
	loader BackfillLoader
}

func NewCandleHandler(loader BackfillLoader) *CandleHandler {
	return &CandleHandler{loader: loader}
}

type candlesResponse struct {
	Symbol   string          `json:"symbol"`
	Interval domain.Interval `json:"interval"`
	Candles  []domain.Candle `json:"candles"`
}

// GetCandles serves GET /api/candles?symbol=BTC&interval=1h&limit=96.
func (h *CandleHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := domain.Interval(r.URL.Query().Get("interval"))
	if symbol == "" || interval.IsNotExist() {
		writeError(w, http.StatusBadRequest, "symbol and a known interval are required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	candles, err := h.loader.Load(r.Context(), symbol, interval, limit)
	if err != nil {
		log.WithField("symbol", symbol).
			WithField("interval", interval).
			WithField("err", err).
			Warn("candles request failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, candlesResponse{
		Symbol:   symbol,
		Interval: interval,
		Candles:  candles,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithField("err", err).Error("can't encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
