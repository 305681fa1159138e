// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package tax

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"kryptosteuer/internal/fifo"
	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/price"
)

// Gains of one tax year.
type Gains struct {
	Taxable decimal.Decimal // §23 private sales held less than the holding period
	Exempt  decimal.Decimal
	Income  decimal.Decimal // §22 Nr. 3 other income (staking)
}

// Volume is the EUR trading volume of one year.
type Volume struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// Flows are the non-trading quantities moved for one asset.
type Flows struct {
	Withdrawn   decimal.Decimal
	Deposited   decimal.Decimal
	Fees        decimal.Decimal
	Transferred decimal.Decimal
}

// Disposal is a FIFO disposal together with what triggered it and, for
// deemed sales, the price used.
type Disposal struct {
	fifo.Disposal
	Trigger ledger.Kind
	Venue   string
	Quote   price.Quote
}

// StakingReward is one staking payout valued at receipt.
type StakingReward struct {
	Date    time.Time
	Asset   string
	Amount  decimal.Decimal
	Value   decimal.Decimal
	Venue   string
	Quality price.Quality
}

// Counts per transaction category.
type Counts struct {
	Buys               int
	Sells              int
	Deposits           int
	Withdrawals        int
	Fees               int
	Transfers          int // distinct transfer ids
	StakingRewards     int
	StakingAllocations int
	Skipped            int
}

// Total returns the number of processed transactions, counting each
// transfer once.
func (c Counts) Total() int {
	return c.Buys + c.Sells + c.Deposits + c.Withdrawals + c.Fees + c.Transfers + c.StakingRewards + c.StakingAllocations
}

// Results is the outcome of one aggregation pass.
type Results struct {
	TaxableGain decimal.Decimal
	ExemptGain  decimal.Decimal

	BuyVolume     decimal.Decimal
	SellVolume    decimal.Decimal
	TradingByYear map[int]*Volume
	GainsByYear   map[int]*Gains

	Assets       map[string]*Flows
	WithdrawnEUR decimal.Decimal
	DepositedEUR decimal.Decimal

	StakingRewards []StakingReward
	StakingIncome  decimal.Decimal

	Counts    Counts
	Disposals []Disposal
	OpenLots  []fifo.Lot // carried forward into the next year
}

func newResults() *Results {
	return &Results{
		TaxableGain:   decimal.Zero,
		ExemptGain:    decimal.Zero,
		BuyVolume:     decimal.Zero,
		SellVolume:    decimal.Zero,
		TradingByYear: make(map[int]*Volume),
		GainsByYear:   make(map[int]*Gains),
		Assets:        make(map[string]*Flows),
		WithdrawnEUR:  decimal.Zero,
		DepositedEUR:  decimal.Zero,
		StakingIncome: decimal.Zero,
	}
}

func (r *Results) yearGains(year int) *Gains {
	g, ok := r.GainsByYear[year]
	if !ok {
		g = &Gains{Taxable: decimal.Zero, Exempt: decimal.Zero, Income: decimal.Zero}
		r.GainsByYear[year] = g
	}
	return g
}

func (r *Results) yearVolume(year int) *Volume {
	v, ok := r.TradingByYear[year]
	if !ok {
		v = &Volume{Buy: decimal.Zero, Sell: decimal.Zero}
		r.TradingByYear[year] = v
	}
	return v
}

func (r *Results) flows(asset string) *Flows {
	f, ok := r.Assets[asset]
	if !ok {
		f = &Flows{Withdrawn: decimal.Zero, Deposited: decimal.Zero, Fees: decimal.Zero, Transferred: decimal.Zero}
		r.Assets[asset] = f
	}
	return f
}

// Years returns every year with trading or gains, ascending.
func (r Results) Years() []int {
	seen := map[int]bool{}
	for y := range r.TradingByYear {
		seen[y] = true
	}
	for y := range r.GainsByYear {
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// AssetNames returns the assets with recorded flows, sorted.
func (r Results) AssetNames() []string {
	names := make([]string, 0, len(r.Assets))
	for a := range r.Assets {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// Year returns the gains of year, zero when nothing happened in it.
func (r Results) Year(year int) Gains {
	if g, ok := r.GainsByYear[year]; ok {
		return *g
	}
	return Gains{Taxable: decimal.Zero, Exempt: decimal.Zero, Income: decimal.Zero}
}

// StakingIn returns the staking rewards received in year.
func (r Results) StakingIn(year int) []StakingReward {
	var out []StakingReward
	for _, s := range r.StakingRewards {
		if s.Date.Year() == year {
			out = append(out, s)
		}
	}
	return out
}
