package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Candle is the canonical OHLCV bar every upstream message is normalized
// into. OpenTime is epoch milliseconds aligned to the interval boundary.
type Candle struct {
	OpenTime int64           `json:"t"`
	Open     decimal.Decimal `json:"o"`
	High     decimal.Decimal `json:"h"`
	Low      decimal.Decimal `json:"l"`
	Close    decimal.Decimal `json:"c"`
	Volume   decimal.Decimal `json:"v"`
}

func (c Candle) Validate() error {
	if c.OpenTime <= 0 {
		return errors.Errorf("candle has no open time: %+v", c)
	}
	if c.High.LessThan(c.Open) || c.High.LessThan(c.Close) {
		return errors.Errorf("candle high below open/close: %+v", c)
	}
	if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) {
		return errors.Errorf("candle low above open/close: %+v", c)
	}
	if c.Volume.IsNegative() {
		return errors.Errorf("candle has negative volume: %+v", c)
	}
	return nil
}

type ApplyResult int

const (
	// ApplyDropped means the update is older than the last bar and was ignored.
	ApplyDropped ApplyResult = iota
	// ApplyReplaced means the still-forming last bar was mutated in place.
	ApplyReplaced
	// ApplyAppended means a bar with a newer open time was appended.
	ApplyAppended
)

// Series keeps candles strictly ordered by open time with no duplicates.
// Only the last bar may change, and only by replacement with the same
// open time. Everything earlier is immutable.
type Series struct {
	candles []Candle
}

func NewSeries(candles []Candle) *Series {
	s := &Series{candles: make([]Candle, 0, len(candles))}
	for _, c := range candles {
		s.Apply(c)
	}
	return s
}

func (s *Series) Apply(c Candle) ApplyResult {
	if len(s.candles) == 0 {
		s.candles = append(s.candles, c)
		return ApplyAppended
	}
	last := s.candles[len(s.candles)-1]
	switch {
	case c.OpenTime == last.OpenTime:
		s.candles[len(s.candles)-1] = c
		return ApplyReplaced
	case c.OpenTime > last.OpenTime:
		s.candles = append(s.candles, c)
		return ApplyAppended
	default:
		return ApplyDropped
	}
}

func (s *Series) Len() int {
	return len(s.candles)
}

func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Candles returns a copy so callers cannot break the ordering invariant.
func (s *Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}
