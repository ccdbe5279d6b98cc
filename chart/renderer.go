package chart

import (
	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// Price display precision per asset class: enough decimals to tell
// adjacent forex pip movements apart, typical fiat display for crypto.
const (
	CryptoPrecision = 2
	ForexPrecision  = 5
)

// Renderer is the chart instance owned by one session. The UI layer
// implements it; the adapter only drives it. SetSeries paints the full
// dataset once after backfill; UpdateBar applies one incremental candle
// (the renderer mutates its last bar on an equal open time and appends
// on a newer one), the whole series is never reapplied.
type Renderer interface {
	SetPrecision(decimals int)
	SetSeries(candles []domain.Candle)
	UpdateBar(c domain.Candle)
	ScrollToRealtime(rightMargin int)
	Dispose()
}

// RendererFactory creates a fresh chart instance bound to the mounted
// container. Each symbol/interval change disposes the previous instance
// and builds a new one through the factory.
type RendererFactory func() Renderer

func PrecisionFor(symbol string) int {
	if domain.Classify(symbol) == domain.AssetForex {
		return ForexPrecision
	}
	return CryptoPrecision
}
