package crypto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

func TestRESTClient_Klines(t *testing.T) {
	t.Run("decodes mixed-type rows", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, uriPathKlines, r.URL.Path)
			query = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				[1700000000000,"65000.1","65100","64900","65050.5","12.5",1700000059999,"812345.6",120,"6.1","396000.2","0"],
				[1700000060000,"65050.5","65200","65000","65180","9.8",1700000119999,"637000.0",98,"4.9","318000.0","0"]
			]`))
		}))
		defer srv.Close()

		c := NewRESTClient(srv.URL, time.Second)
		candles, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval1M, 2)
		require.NoError(t, err)

		assert.Equal(t, "interval=1m&limit=2&symbol=BTCUSDT", query)

		require.Len(t, candles, 2)
		assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
		assert.Equal(t, "65000.1", candles[0].Open.String())
		assert.Equal(t, "65050.5", candles[0].Close.String())
		assert.Equal(t, "12.5", candles[0].Volume.String())
		assert.Equal(t, int64(1700000060000), candles[1].OpenTime)
	})

	t.Run("error status is not silently empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}))
		defer srv.Close()

		c := NewRESTClient(srv.URL, time.Second)
		_, err := c.Klines(context.Background(), "NOPEUSDT", domain.Interval1M, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid symbol")
	})

	t.Run("short row is a decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[[1700000000000,"65000.1"]]`))
		}))
		defer srv.Close()

		c := NewRESTClient(srv.URL, time.Second)
		_, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval1M, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too short")
	})
}
