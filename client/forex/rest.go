package forex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// RESTClient fetches historical mid-price candles from the forex provider.
type RESTClient struct {
	cli *resty.Client
}

func NewRESTClient(baseURL, token string, timeout time.Duration) *RESTClient {
	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader(headers.Accept, "application/json")
	if token != "" {
		cli.SetAuthToken(token)
	}

	return &RESTClient{cli: cli}
}

type candlesResponse struct {
	Instrument  string `json:"instrument"`
	Granularity string `json:"granularity"`
	Candles     []struct {
		Complete bool   `json:"complete"`
		Time     string `json:"time"`
		Volume   int64  `json:"volume"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

// Candles returns up to limit mid-price candles for a provider instrument,
// ordered by open time ascending.
func (c *RESTClient) Candles(
	ctx context.Context,
	instrument string,
	interval domain.Interval,
	limit int,
) ([]domain.Candle, error) {
	var body candlesResponse
	res, err := c.cli.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"granularity": interval.ForexGranularity(),
			"count":       strconv.Itoa(limit),
			"price":       "M",
		}).
		SetResult(&body).
		Get(fmt.Sprintf("/v3/instruments/%s/candles", instrument))
	if err != nil {
		return nil, errors.Wrap(err, "can't request forex candles")
	}
	if res.IsError() {
		return nil, errors.Errorf("forex candles request failed with status %d: %s", res.StatusCode(), res.String())
	}

	candles := make([]domain.Candle, 0, len(body.Candles))
	for _, raw := range body.Candles {
		ts, err := time.Parse(time.RFC3339Nano, raw.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "can't parse candle time %q", raw.Time)
		}
		open, err := decimal.NewFromString(raw.Mid.O)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse open")
		}
		high, err := decimal.NewFromString(raw.Mid.H)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse high")
		}
		low, err := decimal.NewFromString(raw.Mid.L)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse low")
		}
		closePrice, err := decimal.NewFromString(raw.Mid.C)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse close")
		}

		candles = append(candles, domain.Candle{
			OpenTime: ts.UnixMilli(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   decimal.NewFromInt(raw.Volume),
		})
	}

	return candles, nil
}
