package crypto

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

const uriPathKlines = "/api/v3/klines"

// RESTClient fetches historical klines from the crypto exchange.
type RESTClient struct {
	cli *resty.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader(headers.Accept, "application/json")

	return &RESTClient{cli: cli}
}

// Klines returns up to limit candles for an exchange spot symbol, ordered
// by open time ascending as the exchange serves them.
func (c *RESTClient) Klines(
	ctx context.Context,
	market string,
	interval domain.Interval,
	limit int,
) ([]domain.Candle, error) {
	res, err := c.cli.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   market,
			"interval": interval.CryptoToken(),
			"limit":    strconv.Itoa(limit),
		}).
		Get(uriPathKlines)
	if err != nil {
		return nil, errors.Wrap(err, "can't request klines")
	}
	if res.IsError() {
		return nil, errors.Errorf("klines request failed with status %d: %s", res.StatusCode(), res.String())
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(res.Body(), &rows); err != nil {
		return nil, errors.Wrap(err, "can't decode klines response")
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := decodeKlineRow(row)
		if err != nil {
			return nil, errors.Wrap(err, "can't decode kline row")
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// Exchange klines come as mixed-type arrays:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func decodeKlineRow(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, errors.Errorf("kline row too short: %d fields", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return domain.Candle{}, err
	}

	fields := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		var quoted string
		if err := json.Unmarshal(row[i], &quoted); err != nil {
			return domain.Candle{}, err
		}
		d, err := decimal.NewFromString(quoted)
		if err != nil {
			return domain.Candle{}, err
		}
		fields[i-1] = d
	}

	return domain.Candle{
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
