package forex

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// CandleEvent is the raw streaming candle frame from the forex provider.
type CandleEvent struct {
	Type        string `json:"type"`
	Instrument  string `json:"instrument"`
	Granularity string `json:"granularity"`
	Time        int64  `json:"time"`
	Open        string `json:"open"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Close       string `json:"close"`
	Volume      string `json:"volume"`
	Complete    bool   `json:"complete"`
}

type Stream struct {
	conn      *websocket.Conn
	heartbeat time.Duration
}

// DialCandleStream opens the live candle stream for one instrument and
// granularity.
func DialCandleStream(
	ctx context.Context,
	wsURL string,
	token string,
	instrument string,
	interval domain.Interval,
	heartbeat time.Duration,
) (*Stream, error) {
	u := fmt.Sprintf(
		"%s/stream?instrument=%s&granularity=%s",
		wsURL, instrument, interval.ForexGranularity(),
	)
	var header http.Header
	if token != "" {
		header = http.Header{headers.Authorization: []string{"Bearer " + token}}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, header)
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
