// Package marketfeed is the real-time market data pipeline behind the
// trading UI: historical backfill, de-duplicated live candle feeds,
// chart sessions and a process-wide latest-price registry, all in
// memory and network-facing.
package marketfeed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/backfill"
	"bitbucket.org/novatechnologies/marketfeed/chart"
	"bitbucket.org/novatechnologies/marketfeed/client/crypto"
	"bitbucket.org/novatechnologies/marketfeed/client/forex"
	"bitbucket.org/novatechnologies/marketfeed/client/prices"
	"bitbucket.org/novatechnologies/marketfeed/domain"
	"bitbucket.org/novatechnologies/marketfeed/feed"
	"bitbucket.org/novatechnologies/marketfeed/hub"
	"bitbucket.org/novatechnologies/marketfeed/infra"
	"bitbucket.org/novatechnologies/marketfeed/normalize"
)

// Service is the composition root. It owns the upstream clients, the
// normalizer, the feed manager, the broadcast hub and the chart adapter.
type Service struct {
	cfg    infra.Config
	norm   *normalize.Normalizer
	hub    *hub.Hub
	feeds  *feed.Manager
	loader *backfill.Loader
	charts *chart.Adapter
}

// New wires the pipeline. It fails fast when any advertised symbol is
// missing from the upstream symbol table.
func New(cfg infra.Config) (*Service, error) {
	if err := domain.ValidateSymbols(cfg.Symbols); err != nil {
		return nil, err
	}

	norm := normalize.New()
	cryptoREST := crypto.NewRESTClient(cfg.CryptoConfig.RestURL, cfg.BackfillConfig.Timeout)
	forexREST := forex.NewRESTClient(cfg.ForexConfig.RestURL, cfg.ForexConfig.Token, cfg.BackfillConfig.Timeout)
	pricesCli := prices.New(cfg.PricesConfig.URL, cfg.PricesConfig.Timeout)

	loader := backfill.NewLoader(cryptoREST, forexREST, cfg.BackfillConfig.Timeout, cfg.BackfillConfig.MaxCandles)
	priceHub := hub.New(cfg.Symbols, pricesCli, cfg.PricesConfig.BatchSize)

	cryptoUp := &cryptoUpstream{cfg: cfg.CryptoConfig, norm: norm}
	forexUp := &forexUpstream{cfg: cfg.ForexConfig, norm: norm}
	feeds := feed.NewManager(
		func(symbol string) feed.Upstream {
			if domain.Classify(symbol) == domain.AssetForex {
				return forexUp
			}
			return cryptoUp
		},
		feed.Config{
			BackoffMin:    cfg.FeedConfig.BackoffMin,
			BackoffMax:    cfg.FeedConfig.BackoffMax,
			BackoffFactor: cfg.FeedConfig.BackoffFactor,
			MaxAttempts:   cfg.FeedConfig.MaxAttempts,
		},
	)

	return &Service{
		cfg:    cfg,
		norm:   norm,
		hub:    priceHub,
		feeds:  feeds,
		loader: loader,
		charts: chart.NewAdapter(loader, feeds, cfg.ChartConfig.RightMargin),
	}, nil
}

// Start launches one 24h-ticker pump per crypto symbol, feeding the hub
// with live price updates until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	for _, symbol := range s.cfg.Symbols {
		if domain.Classify(symbol) != domain.AssetCrypto {
			continue
		}
		go s.runTicker(ctx, symbol)
	}
}

func (s *Service) runTicker(ctx context.Context, symbol string) {
	b := &backoff.Backoff{
		Min:    s.cfg.FeedConfig.BackoffMin,
		Max:    s.cfg.FeedConfig.BackoffMax,
		Factor: s.cfg.FeedConfig.BackoffFactor,
		Jitter: true,
	}
	market := domain.MarketSymbol(symbol)

	for {
		if ctx.Err() != nil {
			return
		}
		stream, err := crypto.DialTickerStream(ctx, s.cfg.CryptoConfig.WsURL, market, s.cfg.CryptoConfig.HeartbeatTimeout)
		if err != nil {
			wait := b.Duration()
			log.WithField("symbol", symbol).
				WithField("err", err).
				WithField("wait", wait).
				Warn("ticker stream dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		for {
			raw, err := stream.Read()
			if err != nil {
				_ = stream.Close()
				break
			}
			if tick, ok := s.norm.CryptoTicker(raw); ok {
				s.hub.Publish(tick)
			}
		}
		if ctx.Err() != nil {
			return
		}
		wait := b.Duration()
		log.WithField("symbol", symbol).
			WithField("wait", wait).
			Warn("ticker stream lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// SubscribeToCrypto registers a price callback for a symbol set. Cached
// ticks replay synchronously before any live update.
func (s *Service) SubscribeToCrypto(symbols []string, onUpdate hub.Callback) uuid.UUID {
	return s.hub.Subscribe(symbols, onUpdate)
}

// UnsubscribeFromCrypto removes a subscription. Safe to call repeatedly.
func (s *Service) UnsubscribeFromCrypto(id uuid.UUID) {
	s.hub.Unsubscribe(id)
}

// RefreshPrices forces an out-of-band snapshot fetch and merge.
func (s *Service) RefreshPrices(ctx context.Context) error {
	return s.hub.Refresh(ctx)
}

// GetCryptoPrice returns the latest cached tick for a symbol, if any.
func (s *Service) GetCryptoPrice(symbol string) (domain.PriceTick, bool) {
	return s.hub.Price(symbol)
}

// MountChart creates a chart session for a view.
func (s *Service) MountChart(
	factory chart.RendererFactory,
	symbol string,
	interval domain.Interval,
	limit int,
) (*chart.Session, error) {
	return s.charts.Mount(factory, symbol, interval, limit)
}

func (s *Service) Hub() *hub.Hub {
	return s.hub
}

func (s *Service) Feeds() *feed.Manager {
	return s.feeds
}

func (s *Service) Loader() *backfill.Loader {
	return s.loader
}
