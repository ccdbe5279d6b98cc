package marketfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/marketfeed/infra"
)

// An upstream that accepts the websocket handshake and drops the
// connection right away: every read loop ends immediately, so redials
// must be paced by the backoff, not spin.
func TestService_TickerReconnectIsBackoffPaced(t *testing.T) {
	var dials int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&dials, 1)
		_ = conn.Close()
	}))
	defer srv.Close()

	cfg := infra.Config{
		CryptoConfig: infra.CryptoConfig{
			WsURL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
			HeartbeatTimeout: time.Second,
		},
		FeedConfig: infra.FeedConfig{
			BackoffMin:    30 * time.Millisecond,
			BackoffMax:    60 * time.Millisecond,
			BackoffFactor: 2,
			MaxAttempts:   10,
		},
		Symbols: []string{"BTC"},
	}
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.runTicker(ctx, "BTC")

	time.Sleep(200 * time.Millisecond)
	cancel()

	n := int(atomic.LoadInt32(&dials))
	assert.GreaterOrEqual(t, n, 2, "reconnects should keep happening")
	// 200ms at a 30ms floor allows at most a handful of dials; an
	// unpaced loop would rack up hundreds
	assert.LessOrEqual(t, n, 10)
}
