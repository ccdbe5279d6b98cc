package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

// Conn is one live upstream connection.
type Conn interface {
	Read() ([]byte, error)
	Close() error
}

// Upstream dials the provider stream for a key and decodes its raw
// frames into validated candles. Decode returning false means the frame
// was dropped by normalization and must not reach subscribers.
type Upstream interface {
	Dial(ctx context.Context, symbol string, interval domain.Interval) (Conn, error)
	Decode(raw []byte) (domain.Candle, bool)
}

// UpstreamSelector picks the upstream for a symbol. The choice is made
// once per key from the symbol's asset class.
type UpstreamSelector func(symbol string) Upstream

type Handler func(domain.Candle)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

type Config struct {
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffFactor float64
	MaxAttempts   int
}

type Key struct {
	Symbol   string
	Interval domain.Interval
}

// Manager multiplexes live feeds: the first subscriber for a
// (symbol, interval) key opens the upstream connection, later ones
// attach to it, and the connection closes when the last subscriber
// leaves. Transient transport failures reconnect with backoff; teardown
// is only ever driven by unsubscribes.
type Manager struct {
	selector UpstreamSelector
	cfg      Config

	mu    sync.Mutex
	feeds map[Key]*feedState
}

type feedState struct {
	mu       sync.Mutex
	state    State
	degraded bool
	handlers map[uuid.UUID]Handler
	lastOpen int64
	cancel   context.CancelFunc
	conn     Conn
}

func NewManager(selector UpstreamSelector, cfg Config) *Manager {
	return &Manager{
		selector: selector,
		cfg:      cfg,
		feeds:    make(map[Key]*feedState),
	}
}

// Subscribe attaches a handler to the live feed for the key and returns
// its unsubscribe function. Calling unsubscribe more than once is a
// no-op. Subscribing to a degraded key restarts its connect cycle:
// degradation stops reconnect attempts, it never retires the key.
func (m *Manager) Subscribe(
	symbol string,
	interval domain.Interval,
	h Handler,
) (func(), error) {
	if interval.IsNotExist() {
		return nil, errors.Errorf("unknown interval %q", interval)
	}
	if h == nil {
		return nil, errors.New("nil handler")
	}

	k := Key{Symbol: symbol, Interval: interval}
	id := uuid.New()

	m.mu.Lock()
	fs, ok := m.feeds[k]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		fs = &feedState{
			handlers: make(map[uuid.UUID]Handler),
			cancel:   cancel,
		}
		m.feeds[k] = fs
		go m.run(ctx, k, fs, m.selector(symbol))
	}
	fs.mu.Lock()
	fs.handlers[id] = h
	relaunch := fs.degraded
	if relaunch {
		fs.degraded = false
		fs.state = StateConnecting
	}
	fs.mu.Unlock()
	if relaunch {
		// The degraded key's run goroutine already exited; spawn a fresh
		// one with a fresh attempt budget.
		fs.cancel()
		ctx, cancel := context.WithCancel(context.Background())
		fs.cancel = cancel
		go m.run(ctx, k, fs, m.selector(symbol))
		log.WithField("symbol", k.Symbol).
			WithField("interval", k.Interval).
			Info("degraded live feed restarted by a new subscriber")
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.unsubscribe(k, id)
		})
	}, nil
}

func (m *Manager) unsubscribe(k Key, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fs, ok := m.feeds[k]
	if !ok {
		return
	}

	fs.mu.Lock()
	delete(fs.handlers, id)
	empty := len(fs.handlers) == 0
	if empty {
		fs.state = StateClosed
	}
	conn := fs.conn
	fs.mu.Unlock()

	if !empty {
		return
	}
	delete(m.feeds, k)
	fs.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	log.WithField("symbol", k.Symbol).
		WithField("interval", k.Interval).
		Info("live feed closed, no subscribers left")
}

// State reports the stream state for a key. Keys nobody subscribed to
// are idle.
func (m *Manager) State(symbol string, interval domain.Interval) State {
	m.mu.Lock()
	fs, ok := m.feeds[Key{Symbol: symbol, Interval: interval}]
	m.mu.Unlock()
	if !ok {
		return StateIdle
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state
}

// Degraded reports whether reconnect attempts for the key were exhausted.
// Subscribers keep their last data; no further callbacks fire.
func (m *Manager) Degraded(symbol string, interval domain.Interval) bool {
	m.mu.Lock()
	fs, ok := m.feeds[Key{Symbol: symbol, Interval: interval}]
	m.mu.Unlock()
	if !ok {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.degraded
}

func (m *Manager) run(ctx context.Context, k Key, fs *feedState, up Upstream) {
	b := &backoff.Backoff{
		Min:    m.cfg.BackoffMin,
		Max:    m.cfg.BackoffMax,
		Factor: m.cfg.BackoffFactor,
		Jitter: true,
	}
	attempts := 0
	first := true

	for {
		if ctx.Err() != nil {
			return
		}
		if first {
			fs.setState(StateConnecting)
		}

		conn, err := up.Dial(ctx, k.Symbol, k.Interval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			first = false
			fs.setState(StateReconnecting)
			attempts++
			streamErr := &domain.StreamError{Symbol: k.Symbol, Interval: k.Interval, Err: err}
			if m.cfg.MaxAttempts > 0 && attempts >= m.cfg.MaxAttempts {
				fs.setDegraded()
				log.WithField("err", streamErr).
					WithField("attempts", attempts).
					Error("reconnect attempts exhausted, live updates unavailable")
				return
			}
			wait := b.Duration()
			log.WithField("err", streamErr).
				WithField("wait", wait).
				Warn("stream dial failed, will reconnect")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		b.Reset()
		attempts = 0
		first = false
		fs.setConn(conn)
		fs.setState(StateStreaming)
		log.WithField("symbol", k.Symbol).
			WithField("interval", k.Interval).
			Info("live feed streaming")

		m.readLoop(ctx, k, fs, up, conn)
		if ctx.Err() != nil {
			return
		}
		// Reconnects resume with the next live frame. Nothing buffered
		// during the outage is replayed.
		fs.setState(StateReconnecting)
		wait := b.Duration()
		log.WithField("symbol", k.Symbol).
			WithField("interval", k.Interval).
			WithField("wait", wait).
			Warn("stream lost, will reconnect")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, k Key, fs *feedState, up Upstream, conn Conn) {
	defer func() {
		_ = conn.Close()
	}()
	for {
		raw, err := conn.Read()
		if err != nil {
			if ctx.Err() == nil {
				log.WithField("err", &domain.StreamError{Symbol: k.Symbol, Interval: k.Interval, Err: err}).
					Debug("stream read failed")
			}
			return
		}
		candle, ok := up.Decode(raw)
		if !ok {
			continue
		}
		fs.deliver(candle)
	}
}

// deliver drops frames older than the last delivered open time for the
// key, then fans the candle out to the current subscriber set.
func (fs *feedState) deliver(c domain.Candle) {
	fs.mu.Lock()
	if fs.state != StateStreaming || c.OpenTime < fs.lastOpen {
		fs.mu.Unlock()
		return
	}
	fs.lastOpen = c.OpenTime
	handlers := make([]Handler, 0, len(fs.handlers))
	for _, h := range fs.handlers {
		handlers = append(handlers, h)
	}
	fs.mu.Unlock()

	for _, h := range handlers {
		h(c)
	}
}

func (fs *feedState) setState(s State) {
	fs.mu.Lock()
	if fs.state != StateClosed {
		fs.state = s
	}
	fs.mu.Unlock()
}

func (fs *feedState) setConn(c Conn) {
	fs.mu.Lock()
	fs.conn = c
	closed := fs.state == StateClosed
	fs.mu.Unlock()
	if closed {
		_ = c.Close()
	}
}

func (fs *feedState) setDegraded() {
	fs.mu.Lock()
	fs.degraded = true
	fs.mu.Unlock()
}
