package domain

import (
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// PriceTick is the latest known price state for one symbol. Timestamp is
// epoch milliseconds and is monotonic per symbol: a tick older than the
// last accepted one is dropped, never applied.
type PriceTick struct {
	Symbol           string           `json:"symbol"`
	Price            decimal.Decimal  `json:"price"`
	Change24h        decimal.Decimal  `json:"change_24h"`
	ChangePercent24h decimal.Decimal  `json:"change_percent_24h"`
	High24h          *decimal.Decimal `json:"high_24h,omitempty"`
	Low24h           *decimal.Decimal `json:"low_24h,omitempty"`
	Volume24h        *decimal.Decimal `json:"volume_24h,omitempty"`
	Timestamp        int64            `json:"timestamp"`
	Direction        Direction        `json:"direction"`
}

// DirectionFrom compares a price against the previously accepted one.
func DirectionFrom(prev, curr decimal.Decimal) Direction {
	switch curr.Cmp(prev) {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionNeutral
	}
}
