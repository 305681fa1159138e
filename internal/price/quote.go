// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package price looks up historical EUR prices for deemed disposals and
// staking income. Every lookup returns a Quote tagged with how the price was
// obtained, so callers decide explicitly what a degraded price is worth.
package price

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Quality tells how a quoted price was obtained.
type Quality int

const (
	Unavailable  Quality = iota
	Exact                // price recorded for that day
	Interpolated         // mean of the nearest earlier and later prices
	Nearest              // only one side exists; its price is used
	Fallback             // not a market price, e.g. the last lot's unit cost
)

func (q Quality) String() string {
	switch q {
	case Exact:
		return "exact"
	case Interpolated:
		return "interpolated"
	case Nearest:
		return "nearest"
	case Fallback:
		return "fallback"
	default:
		return "unavailable"
	}
}

// Quote is a price per unit of Asset in EUR on Date.
type Quote struct {
	Asset   string
	Date    time.Time
	Price   decimal.Decimal
	Quality Quality
}

// Market reports whether the quote came from market data.
func (q Quote) Market() bool {
	return q.Quality == Exact || q.Quality == Interpolated || q.Quality == Nearest
}

// Oracle quotes historical prices.
type Oracle interface {
	Quote(asset string, at time.Time) Quote
}

// Func adapts a plain lookup function to an Oracle. A missing, non-positive
// or non-finite result is unavailable.
type Func func(asset string, at time.Time) (float64, bool)

func (f Func) Quote(asset string, at time.Time) Quote {
	q := Quote{Asset: asset, Date: at, Price: decimal.Zero}
	if f == nil {
		return q
	}
	v, ok := f(asset, at)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return q
	}
	q.Price = decimal.NewFromFloat(v)
	q.Quality = Exact
	return q
}

// Resolve quotes asset at at from o and, when no market price exists, falls
// back to fallback (typically the most recent lot's unit cost). With neither,
// the quote is Unavailable with a zero price. o may be nil.
func Resolve(o Oracle, asset string, at time.Time, fallback func() (decimal.Decimal, bool)) Quote {
	if o != nil {
		if q := o.Quote(asset, at); q.Market() {
			return q
		}
	}
	if fallback != nil {
		if p, ok := fallback(); ok && p.Sign() > 0 {
			return Quote{Asset: asset, Date: at, Price: p, Quality: Fallback}
		}
	}
	return Quote{Asset: asset, Date: at, Price: decimal.Zero, Quality: Unavailable}
}

// day truncates t to its calendar date.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
