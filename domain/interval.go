package domain

import "time"

type Interval string

const (
	Interval1M  Interval = "1m"
	Interval5M  Interval = "5m"
	Interval15M Interval = "15m"
	Interval1H  Interval = "1h"
	Interval4H  Interval = "4h"
	Interval1D  Interval = "1d"
)

func AvailableIntervals() []Interval {
	return []Interval{
		Interval1M,
		Interval5M,
		Interval15M,
		Interval1H,
		Interval4H,
		Interval1D,
	}
}

func (i Interval) IsNotExist() bool {
	for _, known := range AvailableIntervals() {
		if i == known {
			return false
		}
	}
	return true
}

func (i Interval) Duration() time.Duration {
	int2dur := map[Interval]time.Duration{
		Interval1M:  time.Minute,
		Interval5M:  5 * time.Minute,
		Interval15M: 15 * time.Minute,
		Interval1H:  time.Hour,
		Interval4H:  4 * time.Hour,
		Interval1D:  24 * time.Hour,
	}

	return int2dur[i]
}

// Truncate aligns an epoch-milliseconds timestamp to the interval boundary.
func (i Interval) Truncate(ms int64) int64 {
	step := i.Duration().Milliseconds()
	if step == 0 {
		return ms
	}
	return ms - ms%step
}

// CryptoToken maps the interval onto the crypto exchange's kline token set.
func (i Interval) CryptoToken() string {
	int2tok := map[Interval]string{
		Interval1M:  "1m",
		Interval5M:  "5m",
		Interval15M: "15m",
		Interval1H:  "1h",
		Interval4H:  "4h",
		Interval1D:  "1d",
	}

	return int2tok[i]
}

// ForexGranularity maps the interval onto the forex provider's granularity
// token set.
func (i Interval) ForexGranularity() string {
	int2gran := map[Interval]string{
		Interval1M:  "M1",
		Interval5M:  "M5",
		Interval15M: "M15",
		Interval1H:  "H1",
		Interval4H:  "H4",
		Interval1D:  "D",
	}

	return int2gran[i]
}
