// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package price

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type point struct {
	day   time.Time
	price decimal.Decimal
}

// History holds daily closing prices per asset.
type History struct {
	mu     sync.RWMutex
	series map[string][]point // asset -> sorted by day
}

func NewHistory() *History {
	return &History{series: make(map[string][]point)}
}

// Add records the price of asset on the calendar day of at, replacing any
// price already recorded for that day.
func (h *History) Add(asset string, at time.Time, price decimal.Decimal) {
	asset = strings.ToUpper(asset)
	dd := day(at)

	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.series[asset]
	i := sort.Search(len(s), func(i int) bool { return !s[i].day.Before(dd) })
	if i < len(s) && s[i].day.Equal(dd) {
		s[i].price = price
		return
	}
	s = append(s, point{})
	copy(s[i+1:], s[i:])
	s[i] = point{day: dd, price: price}
	h.series[asset] = s
}

// Len returns the number of recorded days for asset.
func (h *History) Len(asset string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.series[strings.ToUpper(asset)])
}

// Range returns the first and last recorded day for asset.
func (h *History) Range(asset string) (first, last time.Time, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.series[strings.ToUpper(asset)]
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].day, s[len(s)-1].day, true
}

// Quote returns the recorded price for the day of at. Without one it
// averages the nearest earlier and later prices, or uses whichever of the
// two exists.
func (h *History) Quote(asset string, at time.Time) Quote {
	q := Quote{Asset: asset, Date: at, Price: decimal.Zero}
	dd := day(at)

	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.series[strings.ToUpper(asset)]
	if len(s) == 0 {
		return q
	}
	i := sort.Search(len(s), func(i int) bool { return !s[i].day.Before(dd) })
	switch {
	case i < len(s) && s[i].day.Equal(dd):
		q.Price, q.Quality = s[i].price, Exact
	case i > 0 && i < len(s):
		q.Price, q.Quality = s[i-1].price.Add(s[i].price).Div(decimal.NewFromInt(2)), Interpolated
	case i > 0:
		q.Price, q.Quality = s[i-1].price, Nearest
	default:
		q.Price, q.Quality = s[i].price, Nearest
	}
	return q
}
