package backfill

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

type CryptoClient interface {
	Klines(ctx context.Context, market string, interval domain.Interval, limit int) ([]domain.Candle, error)
}

type ForexClient interface {
	Candles(ctx context.Context, instrument string, interval domain.Interval, limit int) ([]domain.Candle, error)
}

// Loader fetches the initial bounded window of historical candles for a
// symbol+interval pair, routing to the crypto or forex upstream by the
// symbol's asset class. It does not retry beyond the transport's own
// behavior and it never synthesizes candles for missing slots.
type Loader struct {
	crypto     CryptoClient
	forex      ForexClient
	timeout    time.Duration
	maxCandles int
}

func NewLoader(crypto CryptoClient, forex ForexClient, timeout time.Duration, maxCandles int) *Loader {
	return &Loader{
		crypto:     crypto,
		forex:      forex,
		timeout:    timeout,
		maxCandles: maxCandles,
	}
}

// Load returns candles in strictly ascending open-timestamp order.
// Failures come back as *domain.BackfillError with symbol/interval
// context; the caller decides whether to show an error state or retry.
func (l *Loader) Load(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	limit int,
) ([]domain.Candle, error) {
	if interval.IsNotExist() {
		return nil, &domain.BackfillError{
			Symbol:   symbol,
			Interval: interval,
			Err:      errUnknownInterval(interval),
		}
	}
	if limit <= 0 || limit > l.maxCandles {
		limit = l.maxCandles
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var (
		candles []domain.Candle
		err     error
	)
	switch domain.Classify(symbol) {
	case domain.AssetForex:
		candles, err = l.forex.Candles(ctx, domain.Instrument(symbol), interval, limit)
	default:
		candles, err = l.crypto.Klines(ctx, domain.MarketSymbol(symbol), interval, limit)
	}
	if err != nil {
		return nil, &domain.BackfillError{Symbol: symbol, Interval: interval, Err: err}
	}

	return sanitize(candles, symbol, interval), nil
}

// sanitize enforces strictly ascending opens: duplicates collapse to the
// newer bar, regressions are discarded. Gaps wider than one interval are
// the upstream's own missing data; they are logged and kept as-is.
func sanitize(candles []domain.Candle, symbol string, interval domain.Interval) []domain.Candle {
	step := interval.Duration().Milliseconds()
	out := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if len(out) == 0 {
			out = append(out, c)
			continue
		}
		last := out[len(out)-1]
		switch {
		case c.OpenTime == last.OpenTime:
			out[len(out)-1] = c
		case c.OpenTime < last.OpenTime:
			log.WithField("symbol", symbol).
				WithField("interval", interval).
				WithField("openTime", c.OpenTime).
				Warn("discarding out-of-order backfill candle")
		default:
			if c.OpenTime-last.OpenTime > step {
				log.WithField("symbol", symbol).
					WithField("interval", interval).
					WithField("from", last.OpenTime).
					WithField("to", c.OpenTime).
					Debug("backfill gap, upstream has no data for slot")
			}
			out = append(out, c)
		}
	}
	return out
}

type errUnknownInterval domain.Interval

func (e errUnknownInterval) Error() string {
	return "unknown interval " + string(e)
}
