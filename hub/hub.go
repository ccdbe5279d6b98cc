package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bitbucket.org/novatechnologies/marketfeed/domain"
)

type Callback func(domain.PriceTick)

type SnapshotClient interface {
	Snapshot(ctx context.Context, symbols []string) ([]domain.PriceTick, bool, error)
}

// Hub owns the latest known price per symbol and re-broadcasts every
// accepted update to the subscribers whose symbol set matches. It is an
// explicit registry with its own lifecycle, injected into consumers;
// tests instantiate isolated instances and Reset between cases.
type Hub struct {
	snapshots SnapshotClient
	symbols   []string
	batchSize int

	mu         sync.RWMutex
	latest     map[string]domain.PriceTick
	subs       map[uuid.UUID]*subscription
	refreshErr error
}

type subscription struct {
	// mu serializes delivery so the synchronous replay on subscribe is
	// never overtaken by a concurrent live update.
	mu      sync.Mutex
	symbols map[string]struct{}
	cb      Callback
}

func New(symbols []string, snapshots SnapshotClient, batchSize int) *Hub {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Hub{
		snapshots: snapshots,
		symbols:   symbols,
		batchSize: batchSize,
		latest:    make(map[string]domain.PriceTick),
		subs:      make(map[uuid.UUID]*subscription),
	}
}

// Subscribe registers a callback for a set of symbols and synchronously
// replays the cached tick for each of them, so a late-joining consumer
// is never left blank.
func (h *Hub) Subscribe(symbols []string, cb Callback) uuid.UUID {
	id := uuid.New()
	sub := &subscription{
		symbols: make(map[string]struct{}, len(symbols)),
		cb:      cb,
	}
	for _, s := range symbols {
		sub.symbols[s] = struct{}{}
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	h.mu.Lock()
	h.subs[id] = sub
	cached := make([]domain.PriceTick, 0, len(symbols))
	for _, s := range symbols {
		if tick, ok := h.latest[s]; ok {
			cached = append(cached, tick)
		}
	}
	h.mu.Unlock()

	for _, tick := range cached {
		safeInvoke(cb, tick)
	}

	return id
}

// Unsubscribe removes the callback. It is idempotent: repeated calls and
// unknown handles are no-ops.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Publish applies a tick to the cache and fans it out. Ticks older than
// the cached one for the symbol are dropped and the cache is unchanged.
// Each callback invocation is isolated: one panicking subscriber never
// prevents delivery to the others.
func (h *Hub) Publish(t domain.PriceTick) bool {
	h.mu.Lock()
	prev, seen := h.latest[t.Symbol]
	if seen && t.Timestamp < prev.Timestamp {
		h.mu.Unlock()
		log.WithField("symbol", t.Symbol).
			WithField("timestamp", t.Timestamp).
			Debug("dropping stale tick")
		return false
	}
	if t.Direction == "" {
		if seen {
			t.Direction = domain.DirectionFrom(prev.Price, t.Price)
		} else {
			t.Direction = domain.DirectionNeutral
		}
	}
	h.latest[t.Symbol] = t
	targets := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if _, ok := sub.symbols[t.Symbol]; ok {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.mu.Lock()
		safeInvoke(sub.cb, t)
		sub.mu.Unlock()
	}

	return true
}

// Price returns the latest cached tick for a symbol.
func (h *Hub) Price(symbol string) (domain.PriceTick, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tick, ok := h.latest[symbol]
	return tick, ok
}

// Prices returns every cached tick, sorted by symbol.
func (h *Hub) Prices() []domain.PriceTick {
	h.mu.RLock()
	out := make([]domain.PriceTick, 0, len(h.latest))
	for _, tick := range h.latest {
		out = append(out, tick)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Refresh fetches the full supported-symbol snapshot and merges it into
// the cache, notifying only the subscribers whose symbol set intersects
// the refreshed symbols. A failed refresh leaves the cache untouched and
// sets the error flag; the next successful one clears it.
func (h *Hub) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	batches := batchSymbols(h.symbols, h.batchSize)
	results := make([][]domain.PriceTick, len(batches))
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			ticks, cached, err := h.snapshots.Snapshot(ctx, batch)
			if err != nil {
				return err
			}
			if cached {
				log.WithField("symbols", batch).Debug("snapshot served from backend cache")
			}
			results[i] = ticks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.mu.Lock()
		h.refreshErr = err
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.refreshErr = nil
	h.mu.Unlock()

	for _, ticks := range results {
		for _, tick := range ticks {
			h.Publish(tick)
		}
	}

	return nil
}

// Err reports the error of the last failed refresh, if any.
func (h *Hub) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.refreshErr
}

// Reset clears the cache, the subscriber registry and the error flag.
func (h *Hub) Reset() {
	h.mu.Lock()
	h.latest = make(map[string]domain.PriceTick)
	h.subs = make(map[uuid.UUID]*subscription)
	h.refreshErr = nil
	h.mu.Unlock()
}

func batchSymbols(symbols []string, size int) [][]string {
	var out [][]string
	for len(symbols) > size {
		out = append(out, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		out = append(out, symbols)
	}
	return out
}

func safeInvoke(cb Callback, t domain.PriceTick) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("symbol", t.Symbol).
				WithField("panic", r).
				Error("subscriber callback panicked")
		}
	}()
	cb(t)
}
