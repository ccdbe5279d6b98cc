package normalize

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/client/crypto"
	"bitbucket.org/novatechnologies/marketfeed/client/forex"
	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// Normalizer converts heterogeneous upstream frames into canonical
// candles and ticks. Malformed frames are dropped and logged, never
// surfaced: one bad message must not interrupt the stream. It also keeps
// the last accepted price per symbol so tick direction and the
// per-symbol monotonic timestamp invariant are enforced in one place.
type Normalizer struct {
	mu   sync.Mutex
	last map[string]lastState
}

type lastState struct {
	price     decimal.Decimal
	timestamp int64
}

func New() *Normalizer {
	return &Normalizer{last: make(map[string]lastState)}
}

// CryptoKline decodes an exchange kline frame into a candle plus the
// exchange market symbol it belongs to.
func (n *Normalizer) CryptoKline(raw []byte) (domain.Candle, string, bool) {
	var ev crypto.KlineEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.EventType != "kline" {
		dropFrame("crypto-kline", raw, err)
		return domain.Candle{}, "", false
	}

	open, err1 := decimal.NewFromString(ev.Kline.Open)
	high, err2 := decimal.NewFromString(ev.Kline.High)
	low, err3 := decimal.NewFromString(ev.Kline.Low)
	closePrice, err4 := decimal.NewFromString(ev.Kline.Close)
	volume, err5 := decimal.NewFromString(ev.Kline.Volume)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			dropFrame("crypto-kline", raw, err)
			return domain.Candle{}, "", false
		}
	}

	candle := domain.Candle{
		OpenTime: ev.Kline.OpenTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
	}
	if err := candle.Validate(); err != nil {
		dropFrame("crypto-kline", raw, err)
		return domain.Candle{}, "", false
	}

	return candle, ev.Kline.Symbol, true
}

// ForexCandle decodes a forex provider candle frame into a candle plus
// the provider instrument it belongs to.
func (n *Normalizer) ForexCandle(raw []byte) (domain.Candle, string, bool) {
	var ev forex.CandleEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type != "candle" {
		dropFrame("forex-candle", raw, err)
		return domain.Candle{}, "", false
	}

	open, err1 := decimal.NewFromString(ev.Open)
	high, err2 := decimal.NewFromString(ev.High)
	low, err3 := decimal.NewFromString(ev.Low)
	closePrice, err4 := decimal.NewFromString(ev.Close)
	volume, err5 := decimal.NewFromString(ev.Volume)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			dropFrame("forex-candle", raw, err)
			return domain.Candle{}, "", false
		}
	}

	candle := domain.Candle{
		OpenTime: ev.Time,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
	}
	if err := candle.Validate(); err != nil {
		dropFrame("forex-candle", raw, err)
		return domain.Candle{}, "", false
	}

	return candle, ev.Instrument, true
}

// CryptoTicker decodes a 24h ticker frame into a canonical tick with its
// direction computed against the previously accepted price. Ticks older
// than the last accepted one for the symbol are dropped.
func (n *Normalizer) CryptoTicker(raw []byte) (domain.PriceTick, bool) {
	var ev crypto.TickerEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.EventType != "24hrTicker" {
		dropFrame("crypto-ticker", raw, err)
		return domain.PriceTick{}, false
	}

	price, err1 := decimal.NewFromString(ev.LastPrice)
	change, err2 := decimal.NewFromString(ev.PriceChange)
	percent, err3 := decimal.NewFromString(ev.PriceChangePercent)
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			dropFrame("crypto-ticker", raw, err)
			return domain.PriceTick{}, false
		}
	}

	symbol := domain.CanonicalSymbol(ev.Symbol)
	tick := domain.PriceTick{
		Symbol:           symbol,
		Price:            price,
		Change24h:        change,
		ChangePercent24h: percent,
		Timestamp:        ev.EventTime,
	}
	if high, err := decimal.NewFromString(ev.HighPrice); err == nil {
		tick.High24h = &high
	}
	if low, err := decimal.NewFromString(ev.LowPrice); err == nil {
		tick.Low24h = &low
	}
	if volume, err := decimal.NewFromString(ev.Volume); err == nil {
		tick.Volume24h = &volume
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	prev, seen := n.last[symbol]
	if seen && tick.Timestamp < prev.timestamp {
		log.WithField("symbol", symbol).
			WithField("timestamp", tick.Timestamp).
			WithField("lastTimestamp", prev.timestamp).
			Debug("dropping out-of-order tick")
		return domain.PriceTick{}, false
	}
	if seen {
		tick.Direction = domain.DirectionFrom(prev.price, tick.Price)
	} else {
		tick.Direction = domain.DirectionNeutral
	}
	n.last[symbol] = lastState{price: tick.Price, timestamp: tick.Timestamp}

	return tick, true
}

// Reset clears the per-symbol state. Tests use it to isolate instances.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	n.last = make(map[string]lastState)
	n.mu.Unlock()
}

func dropFrame(source string, raw []byte, err error) {
	log.WithField("source", source).
		WithField("err", err).
		WithField("frame", truncate(raw, 256)).
		Debug("dropping malformed frame")
}

func truncate(raw []byte, max int) string {
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
