package crypto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// Stream is one live websocket connection to the exchange. Reads carry a
// deadline: a stream that stays silent past the heartbeat window counts
// as failed and the caller reconnects.
type Stream struct {
	conn      *websocket.Conn
	heartbeat time.Duration
}

// DialKlineStream opens the per-symbol kline stream for one interval.
func DialKlineStream(
	ctx context.Context,
	wsURL string,
	market string,
	interval domain.Interval,
	heartbeat time.Duration,
) (*Stream, error) {
	u := fmt.Sprintf("%s/%s@kline_%s", wsURL, strings.ToLower(market), interval.CryptoToken())
	return dial(ctx, u, heartbeat)
}

// DialTickerStream opens the 24h rolling ticker stream for one symbol.
func DialTickerStream(
	ctx context.Context,
	wsURL string,
	market string,
	heartbeat time.Duration,
) (*Stream, error) {
	u := fmt.Sprintf("%s/%s@ticker", wsURL, strings.ToLower(market))
	return dial(ctx, u, heartbeat)
}

func dial(ctx context.Context, u string, heartbeat time.Duration) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %s", u)
	}
	return &Stream{conn: conn, heartbeat: heartbeat}, nil
}

func (s *Stream) Read() ([]byte, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.heartbeat)); err != nil {
		return nil, err
	}
	_, msg, err := s.conn.ReadMessage()
	return msg, err
}

func (s *Stream) Close() error {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}
