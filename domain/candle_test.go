package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateCandle(t int64, o, h, l, c, v string) Candle {
	return Candle{
		OpenTime: t,
		Open:     decimal.RequireFromString(o),
		High:     decimal.RequireFromString(h),
		Low:      decimal.RequireFromString(l),
		Close:    decimal.RequireFromString(c),
		Volume:   decimal.RequireFromString(v),
	}
}

func TestCandle_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c := generateCandle(1700000000000, "58345", "58615", "58205", "58245", "600")
		assert.NoError(t, c.Validate())
	})
	t.Run("high below close", func(t *testing.T) {
		c := generateCandle(1700000000000, "58345", "58300", "58205", "58400", "600")
		assert.Error(t, c.Validate())
	})
	t.Run("low above open", func(t *testing.T) {
		c := generateCandle(1700000000000, "58345", "58615", "58350", "58400", "600")
		assert.Error(t, c.Validate())
	})
	t.Run("no open time", func(t *testing.T) {
		c := generateCandle(0, "1", "1", "1", "1", "0")
		assert.Error(t, c.Validate())
	})
}

func TestSeries_Apply(t *testing.T) {
	t.Run("same open time mutates last bar in place", func(t *testing.T) {
		opens := hourlyOpens(t, "2024-01-01T00:00:00Z", 96)
		candles := make([]Candle, 0, len(opens))
		for _, ts := range opens {
			candles = append(candles, generateCandle(ts, "100", "110", "90", "105", "10"))
		}
		s := NewSeries(candles)
		require.Equal(t, 96, s.Len())

		lastOpen := opens[len(opens)-1]
		update := generateCandle(lastOpen, "105", "120", "100", "118", "14")
		assert.Equal(t, ApplyReplaced, s.Apply(update))
		assert.Equal(t, 96, s.Len())

		last, ok := s.Last()
		require.True(t, ok)
		assert.True(t, last.Close.Equal(decimal.RequireFromString("118")))
	})

	t.Run("newer open time appends", func(t *testing.T) {
		opens := hourlyOpens(t, "2024-01-01T00:00:00Z", 96)
		candles := make([]Candle, 0, len(opens))
		for _, ts := range opens {
			candles = append(candles, generateCandle(ts, "100", "110", "90", "105", "10"))
		}
		s := NewSeries(candles)

		nextOpen := opens[len(opens)-1] + time.Hour.Milliseconds()
		assert.Equal(t, ApplyAppended, s.Apply(generateCandle(nextOpen, "105", "112", "104", "108", "3")))
		assert.Equal(t, 97, s.Len())

		last, _ := s.Last()
		assert.Equal(t, nextOpen, last.OpenTime)
	})

	t.Run("older open time is dropped", func(t *testing.T) {
		s := NewSeries([]Candle{
			generateCandle(1700000000000, "1", "2", "1", "2", "1"),
		})
		older := generateCandle(1600000000000, "1", "2", "1", "2", "1")
		assert.Equal(t, ApplyDropped, s.Apply(older))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("candles copy cannot break the series", func(t *testing.T) {
		s := NewSeries([]Candle{
			generateCandle(1700000000000, "1", "2", "1", "2", "1"),
		})
		out := s.Candles()
		out[0].OpenTime = 42

		last, _ := s.Last()
		assert.Equal(t, int64(1700000000000), last.OpenTime)
	})
}

func hourlyOpens(t *testing.T, end string, count int) []int64 {
	t.Helper()
	endTime, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)

	opens := make([]int64, 0, count)
	for i := count - 1; i >= 0; i-- {
		opens = append(opens, endTime.Add(-time.Duration(i)*time.Hour).UnixMilli())
	}
	return opens
}
