// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package fifo keeps the open acquisition lots per asset and matches
// disposals against them oldest first.
package fifo

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kryptosteuer/internal/ledger"
)

// DefaultHoldingMonths is the §23 EStG holding period after which gains are exempt.
const DefaultHoldingMonths = 12

// Lot is one acquisition with its own cost basis.
type Lot struct {
	Asset          string
	OriginalAmount decimal.Decimal
	UnitCost       decimal.Decimal // EUR per unit
	AcquiredAt     time.Time
	Remaining      decimal.Decimal
	Venue          string
}

// Portion is the part of a disposal matched against a single lot.
type Portion struct {
	AcquiredAt time.Time
	UnitCost   decimal.Decimal
	Venue      string
	Consumed   decimal.Decimal
	CostBasis  decimal.Decimal
	Proceeds   decimal.Decimal
	Gain       decimal.Decimal
	Exempt     bool
}

// Disposal is the outcome of matching one sell or withdrawal.
type Disposal struct {
	Asset       string
	Date        time.Time
	Amount      decimal.Decimal
	Proceeds    decimal.Decimal
	Portions    []Portion
	TaxableGain decimal.Decimal
	ExemptGain  decimal.Decimal
	Unmatched   decimal.Decimal // amount no lot could cover
}

// Queue is the FIFO ledger of open lots, keyed by asset.
// A Queue belongs to a single aggregation run and is not safe for concurrent use.
type Queue struct {
	HoldingMonths int

	lots map[string][]*Lot
	log  *zap.Logger
}

// NewQueue returns an empty queue. holdingMonths <= 0 selects the default.
func NewQueue(holdingMonths int, log *zap.Logger) *Queue {
	if holdingMonths <= 0 {
		holdingMonths = DefaultHoldingMonths
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		HoldingMonths: holdingMonths,
		lots:          make(map[string][]*Lot),
		log:           log,
	}
}

// IsExempt reports whether an asset acquired at acquired and disposed at
// disposed was held for at least months calendar months.
func IsExempt(acquired, disposed time.Time, months int) bool {
	return !disposed.Before(acquired.AddDate(0, months, 0))
}

// Buy opens a new lot for tx. A buy without a positive asset amount is not queued.
func (q *Queue) Buy(tx ledger.Transaction) (*Lot, bool) {
	if tx.AssetAmount.Sign() <= 0 {
		q.log.Debug("degenerate buy not queued",
			zap.String("asset", tx.Asset), zap.Stringer("amount", tx.AssetAmount), zap.Time("date", tx.Date))
		return nil, false
	}
	lot := &Lot{
		Asset:          tx.Asset,
		OriginalAmount: tx.AssetAmount,
		UnitCost:       tx.FiatAmount.Abs().Div(tx.AssetAmount),
		AcquiredAt:     tx.Date,
		Remaining:      tx.AssetAmount,
		Venue:          tx.Venue,
	}
	q.add(lot)
	q.log.Debug("lot opened",
		zap.String("asset", lot.Asset), zap.Stringer("amount", lot.OriginalAmount),
		zap.Stringer("unit_cost", lot.UnitCost), zap.Time("date", lot.AcquiredAt))
	return lot, true
}

func (q *Queue) add(lot *Lot) {
	lots := append(q.lots[lot.Asset], lot)
	// keep sorted oldest first; a chronological caller only ever appends
	if n := len(lots); n > 1 && lot.AcquiredAt.Before(lots[n-2].AcquiredAt) {
		sort.SliceStable(lots, func(i, j int) bool {
			return lots[i].AcquiredAt.Before(lots[j].AcquiredAt)
		})
	}
	q.lots[lot.Asset] = lots
}

// Dispose consumes amount units of asset oldest lot first and splits the
// total proceeds across the consumed lots in proportion to the amount taken
// from each. Any excess over the open lots is reported in Unmatched and adds
// no gain.
func (q *Queue) Dispose(asset string, amount, proceeds decimal.Decimal, at time.Time) Disposal {
	total := amount.Abs()
	d := Disposal{
		Asset:       asset,
		Date:        at,
		Amount:      total,
		Proceeds:    proceeds,
		TaxableGain: decimal.Zero,
		ExemptGain:  decimal.Zero,
		Unmatched:   decimal.Zero,
	}
	if total.IsZero() {
		return d
	}

	lots := q.lots[asset]
	remaining := total
	for remaining.Sign() > 0 && len(lots) > 0 {
		lot := lots[0]
		use := minDecimal(lot.Remaining, remaining)
		p := Portion{
			AcquiredAt: lot.AcquiredAt,
			UnitCost:   lot.UnitCost,
			Venue:      lot.Venue,
			Consumed:   use,
			CostBasis:  use.Mul(lot.UnitCost),
			Proceeds:   proceeds.Mul(use).Div(total),
			Exempt:     IsExempt(lot.AcquiredAt, at, q.HoldingMonths),
		}
		p.Gain = p.Proceeds.Sub(p.CostBasis)
		if p.Exempt {
			d.ExemptGain = d.ExemptGain.Add(p.Gain)
		} else {
			d.TaxableGain = d.TaxableGain.Add(p.Gain)
		}
		d.Portions = append(d.Portions, p)

		q.log.Debug("consumed lot",
			zap.String("asset", asset), zap.Time("acquired", lot.AcquiredAt),
			zap.Stringer("use", use), zap.Stringer("cost", p.CostBasis),
			zap.Stringer("proceeds", p.Proceeds), zap.Stringer("gain", p.Gain), zap.Bool("exempt", p.Exempt))

		lot.Remaining = lot.Remaining.Sub(use)
		remaining = remaining.Sub(use)
		if lot.Remaining.Sign() <= 0 {
			lots = lots[1:]
		}
	}
	if len(lots) == 0 {
		delete(q.lots, asset)
	} else {
		q.lots[asset] = lots
	}

	if remaining.Sign() > 0 {
		d.Unmatched = remaining
		q.log.Warn("disposal exceeds open lots",
			zap.String("asset", asset), zap.Time("date", at),
			zap.Stringer("amount", total), zap.Stringer("unmatched", remaining))
	}
	return d
}

// LastUnitCost returns the unit cost of the most recently acquired open lot of asset.
func (q *Queue) LastUnitCost(asset string) (decimal.Decimal, bool) {
	lots := q.lots[asset]
	if len(lots) == 0 {
		return decimal.Zero, false
	}
	return lots[len(lots)-1].UnitCost, true
}

// Holding returns the total remaining amount of asset.
func (q *Queue) Holding(asset string) decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range q.lots[asset] {
		sum = sum.Add(lot.Remaining)
	}
	return sum
}

// Open returns a copy of every open lot, ordered by asset then acquisition date.
func (q *Queue) Open() []Lot {
	assets := make([]string, 0, len(q.lots))
	for a := range q.lots {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	var out []Lot
	for _, a := range assets {
		for _, lot := range q.lots[a] {
			out = append(out, *lot)
		}
	}
	return out
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
