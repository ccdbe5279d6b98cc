package prices

import (
	"context"
	"strings"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// Client fetches the full supported-symbol price snapshot from the
// backend's GET /prices endpoint.
type Client struct {
	cli *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader(headers.Accept, "application/json")

	return &Client{cli: cli}
}

type snapshotResponse struct {
	Prices []wireTick `json:"prices"`
	Cached bool       `json:"cached"`
	Error  string     `json:"error,omitempty"`
}

type wireTick struct {
	Symbol           string  `json:"symbol"`
	Price            string  `json:"price"`
	Change24h        string  `json:"change_24h"`
	ChangePercent24h string  `json:"change_percent_24h"`
	High24h          *string `json:"high_24h,omitempty"`
	Low24h           *string `json:"low_24h,omitempty"`
	Volume24h        *string `json:"volume_24h,omitempty"`
	Timestamp        int64   `json:"timestamp"`
}

// Snapshot requests the latest ticks for the given symbols. The second
// return value reports whether the backend served a cached snapshot.
func (c *Client) Snapshot(ctx context.Context, symbols []string) ([]domain.PriceTick, bool, error) {
	var body snapshotResponse
	res, err := c.cli.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&body).
		Get("/prices")
	if err != nil {
		return nil, false, errors.Wrap(err, "can't request price snapshot")
	}
	if res.IsError() {
		return nil, false, errors.Errorf("price snapshot failed with status %d: %s", res.StatusCode(), res.String())
	}
	if body.Error != "" {
		return nil, body.Cached, errors.Errorf("price snapshot failed: %s", body.Error)
	}

	ticks := make([]domain.PriceTick, 0, len(body.Prices))
	for _, w := range body.Prices {
		tick, err := w.toDomain()
		if err != nil {
			return nil, body.Cached, errors.Wrapf(err, "can't decode tick for %s", w.Symbol)
		}
		ticks = append(ticks, tick)
	}

	return ticks, body.Cached, nil
}

func (w wireTick) toDomain() (domain.PriceTick, error) {
	price, err := decimal.NewFromString(w.Price)
	if err != nil {
		return domain.PriceTick{}, err
	}
	change, err := decimal.NewFromString(w.Change24h)
	if err != nil {
		return domain.PriceTick{}, err
	}
	percent, err := decimal.NewFromString(w.ChangePercent24h)
	if err != nil {
		return domain.PriceTick{}, err
	}

	// Direction stays empty: the hub computes it against the tick it
	// already holds for the symbol.
	tick := domain.PriceTick{
		Symbol:           w.Symbol,
		Price:            price,
		Change24h:        change,
		ChangePercent24h: percent,
		Timestamp:        w.Timestamp,
	}
	if tick.High24h, err = optDecimal(w.High24h); err != nil {
		return domain.PriceTick{}, err
	}
	if tick.Low24h, err = optDecimal(w.Low24h); err != nil {
		return domain.PriceTick{}, err
	}
	if tick.Volume24h, err = optDecimal(w.Volume24h); err != nil {
		return domain.PriceTick{}, err
	}

	return tick, nil
}

func optDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
