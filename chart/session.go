package chart

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/domain"
	"bitbucket.org/novatechnologies/marketfeed/feed"
)

type BackfillLoader interface {
	Load(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Candle, error)
}

type LiveFeed interface {
	Subscribe(symbol string, interval domain.Interval, h feed.Handler) (func(), error)
}

// Adapter wires chart sessions to the backfill loader and the live feed.
type Adapter struct {
	loader      BackfillLoader
	live        LiveFeed
	rightMargin int
}

func NewAdapter(loader BackfillLoader, live LiveFeed, rightMargin int) *Adapter {
	return &Adapter{
		loader:      loader,
		live:        live,
		rightMargin: rightMargin,
	}
}

// Mount creates a session for the container's renderer factory and kicks
// off backfill followed by the live subscription.
func (a *Adapter) Mount(
	factory RendererFactory,
	symbol string,
	interval domain.Interval,
	limit int,
) (*Session, error) {
	if interval.IsNotExist() {
		return nil, errors.Errorf("unknown interval %q", interval)
	}
	s := &Session{
		adapter:  a,
		factory:  factory,
		symbol:   symbol,
		interval: interval,
		limit:    limit,
	}
	s.start()
	return s, nil
}

// Session owns exactly one chart instance, one (symbol, interval) pair,
// at most one backfill in flight and one live subscription. Teardown is
// synchronous and happens before any new resources are acquired; every
// asynchronous continuation is guarded by the session epoch, so a slow
// stale response can never overwrite fresher data or reach a disposed
// chart.
type Session struct {
	adapter *Adapter
	factory RendererFactory

	mu       sync.Mutex
	renderer Renderer
	symbol   string
	interval domain.Interval
	limit    int
	epoch    uint64
	series   *domain.Series
	unsub    func()
	closed   bool
	err      error
}

func (s *Session) start() {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	r := s.factory()
	r.SetPrecision(PrecisionFor(s.symbol))
	s.renderer = r
	symbol, interval, limit := s.symbol, s.interval, s.limit
	s.mu.Unlock()

	go s.load(epoch, r, symbol, interval, limit)
}

func (s *Session) load(epoch uint64, r Renderer, symbol string, interval domain.Interval, limit int) {
	candles, err := s.adapter.loader.Load(context.Background(), symbol, interval, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		// Superseded by a newer mount/change. The result is ignored.
		return
	}
	if err != nil {
		s.err = err
		log.WithField("symbol", symbol).
			WithField("interval", interval).
			WithField("err", err).
			Warn("chart backfill failed")
		return
	}

	s.series = domain.NewSeries(candles)
	r.SetSeries(s.series.Candles())
	r.ScrollToRealtime(s.adapter.rightMargin)

	unsub, err := s.adapter.live.Subscribe(symbol, interval, s.onCandle(epoch))
	if err != nil {
		s.err = err
		log.WithField("symbol", symbol).
			WithField("interval", interval).
			WithField("err", err).
			Warn("chart live subscription failed")
		return
	}
	s.unsub = unsub
}

func (s *Session) onCandle(epoch uint64) feed.Handler {
	return func(c domain.Candle) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.epoch != epoch || s.series == nil {
			return
		}
		if s.series.Apply(c) == domain.ApplyDropped {
			return
		}
		s.renderer.UpdateBar(c)
	}
}

// Change switches the session to a new symbol/interval pair. The old
// chart instance and live subscription are torn down synchronously
// before the new ones are created.
func (s *Session) Change(symbol string, interval domain.Interval) error {
	if interval.IsNotExist() {
		return errors.Errorf("unknown interval %q", interval)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session is closed")
	}
	s.teardownLocked()
	s.symbol = symbol
	s.interval = interval
	s.mu.Unlock()

	s.start()
	return nil
}

// Close releases the chart instance and the live subscription, both
// unconditionally, even when backfill never completed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.teardownLocked()
	s.closed = true
}

func (s *Session) teardownLocked() {
	s.epoch++
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.renderer != nil {
		s.renderer.Dispose()
		s.renderer = nil
	}
	s.series = nil
	s.err = nil
}

// Err reports the backfill or subscription failure of the current epoch,
// if any. The UI shows it as a retryable inline state; the next Change
// implicitly retries.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

func (s *Session) Interval() domain.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Candles exposes a copy of the current series.
func (s *Session) Candles() []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series == nil {
		return nil
	}
	return s.series.Candles()
}
