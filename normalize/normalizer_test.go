package normalize

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

func klineFrame(openTime int64, o, h, l, c, v string) []byte {
	return []byte(`{
		"e":"kline","E":` + itoa(openTime+42) + `,"s":"BTCUSDT",
		"k":{"t":` + itoa(openTime) + `,"T":` + itoa(openTime+59999) + `,"s":"BTCUSDT","i":"1m",
		"o":"` + o + `","c":"` + c + `","h":"` + h + `","l":"` + l + `","v":"` + v + `","x":false}}`)
}

func tickerFrame(eventTime int64, last, change, percent string) []byte {
	return []byte(`{
		"e":"24hrTicker","E":` + itoa(eventTime) + `,"s":"BTCUSDT",
		"p":"` + change + `","P":"` + percent + `","c":"` + last + `",
		"h":"66000","l":"63000","v":"1234.5"}`)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestNormalizer_CryptoKline(t *testing.T) {
	n := New()

	t.Run("valid frame", func(t *testing.T) {
		candle, market, ok := n.CryptoKline(klineFrame(1700000000000, "65000", "65100", "64900", "65050", "12.5"))
		require.True(t, ok)
		assert.Equal(t, "BTCUSDT", market)
		assert.Equal(t, int64(1700000000000), candle.OpenTime)
		assert.Equal(t, "65050", candle.Close.String())
	})

	t.Run("malformed json is dropped", func(t *testing.T) {
		_, _, ok := n.CryptoKline([]byte(`{"e":"kline","k":{`))
		assert.False(t, ok)
	})

	t.Run("wrong event type is dropped", func(t *testing.T) {
		_, _, ok := n.CryptoKline([]byte(`{"e":"trade","s":"BTCUSDT"}`))
		assert.False(t, ok)
	})

	t.Run("unparseable price is dropped", func(t *testing.T) {
		_, _, ok := n.CryptoKline(klineFrame(1700000000000, "not-a-number", "1", "1", "1", "1"))
		assert.False(t, ok)
	})

	t.Run("invariant-breaking candle is dropped", func(t *testing.T) {
		// high below close
		_, _, ok := n.CryptoKline(klineFrame(1700000000000, "100", "101", "99", "150", "1"))
		assert.False(t, ok)
	})
}

func TestNormalizer_ForexCandle(t *testing.T) {
	n := New()

	t.Run("valid frame", func(t *testing.T) {
		raw := []byte(`{"type":"candle","instrument":"EUR_USD","granularity":"H1",
			"time":1700000000000,"open":"1.06521","high":"1.06590","low":"1.06477",
			"close":"1.06544","volume":"820","complete":false}`)
		candle, instrument, ok := n.ForexCandle(raw)
		require.True(t, ok)
		assert.Equal(t, "EUR_USD", instrument)
		assert.Equal(t, "1.06544", candle.Close.String())
	})

	t.Run("heartbeat frame is dropped silently", func(t *testing.T) {
		_, _, ok := n.ForexCandle([]byte(`{"type":"heartbeat","time":1700000000000}`))
		assert.False(t, ok)
	})
}

func TestNormalizer_CryptoTicker(t *testing.T) {
	t.Run("direction against previously accepted price", func(t *testing.T) {
		n := New()

		first, ok := n.CryptoTicker(tickerFrame(1000, "65000", "150.2", "0.23"))
		require.True(t, ok)
		assert.Equal(t, "BTC", first.Symbol)
		assert.Equal(t, domain.DirectionNeutral, first.Direction)
		require.NotNil(t, first.High24h)
		assert.Equal(t, "66000", first.High24h.String())

		up, ok := n.CryptoTicker(tickerFrame(2000, "65100", "151", "0.24"))
		require.True(t, ok)
		assert.Equal(t, domain.DirectionUp, up.Direction)

		down, ok := n.CryptoTicker(tickerFrame(3000, "65050", "149", "0.22"))
		require.True(t, ok)
		assert.Equal(t, domain.DirectionDown, down.Direction)

		flat, ok := n.CryptoTicker(tickerFrame(4000, "65050", "149", "0.22"))
		require.True(t, ok)
		assert.Equal(t, domain.DirectionNeutral, flat.Direction)
	})

	t.Run("out-of-order tick is dropped", func(t *testing.T) {
		n := New()

		_, ok := n.CryptoTicker(tickerFrame(5000, "65000", "1", "0.1"))
		require.True(t, ok)

		_, ok = n.CryptoTicker(tickerFrame(4000, "64000", "1", "0.1"))
		assert.False(t, ok)

		// state unchanged: next accepted tick still compares against 65000
		next, ok := n.CryptoTicker(tickerFrame(6000, "64500", "1", "0.1"))
		require.True(t, ok)
		assert.Equal(t, domain.DirectionDown, next.Direction)
	})

	t.Run("reset isolates instances", func(t *testing.T) {
		n := New()
		_, ok := n.CryptoTicker(tickerFrame(5000, "65000", "1", "0.1"))
		require.True(t, ok)

		n.Reset()
		tick, ok := n.CryptoTicker(tickerFrame(1000, "64000", "1", "0.1"))
		require.True(t, ok)
		assert.Equal(t, domain.DirectionNeutral, tick.Direction)
	})
}
