package marketfeed

import (
	"context"

	"bitbucket.org/novatechnologies/marketfeed/client/crypto"
	"bitbucket.org/novatechnologies/marketfeed/client/forex"
	"bitbucket.org/novatechnologies/marketfeed/domain"
	"bitbucket.org/novatechnologies/marketfeed/feed"
	"bitbucket.org/novatechnologies/marketfeed/infra"
	"bitbucket.org/novatechnologies/marketfeed/normalize"
)

// cryptoUpstream binds the exchange kline stream and the normalizer into
// the feed manager's Upstream contract.
type cryptoUpstream struct {
	cfg  infra.CryptoConfig
	norm *normalize.Normalizer
}

func (u *cryptoUpstream) Dial(ctx context.Context, symbol string, interval domain.Interval) (feed.Conn, error) {
	return crypto.DialKlineStream(ctx, u.cfg.WsURL, domain.MarketSymbol(symbol), interval, u.cfg.HeartbeatTimeout)
}

func (u *cryptoUpstream) Decode(raw []byte) (domain.Candle, bool) {
	candle, _, ok := u.norm.CryptoKline(raw)
	return candle, ok
}

type forexUpstream struct {
	cfg  infra.ForexConfig
	norm *normalize.Normalizer
}

func (u *forexUpstream) Dial(ctx context.Context, symbol string, interval domain.Interval) (feed.Conn, error) {
	return forex.DialCandleStream(ctx, u.cfg.WsURL, u.cfg.Token, domain.Instrument(symbol), interval, u.cfg.HeartbeatTimeout)
}

func (u *forexUpstream) Decode(raw []byte) (domain.Candle, bool) {
	candle, _, ok := u.norm.ForexCandle(raw)
	return candle, ok
}
