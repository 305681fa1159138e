// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package tax

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/price"
)

func handleBuy(r *run, tx ledger.Transaction) {
	r.res.Counts.Buys++
	eur := tx.FiatAmount.Abs()
	r.res.BuyVolume = r.res.BuyVolume.Add(eur)
	v := r.res.yearVolume(tx.Date.Year())
	v.Buy = v.Buy.Add(eur)
	r.q.Buy(tx)
}

func handleSell(r *run, tx ledger.Transaction) {
	r.res.Counts.Sells++
	r.res.SellVolume = r.res.SellVolume.Add(tx.FiatAmount)
	v := r.res.yearVolume(tx.Date.Year())
	v.Sell = v.Sell.Add(tx.FiatAmount)
	r.dispose(tx, tx.FiatAmount, price.Quote{})
}

// handleWithdrawal treats a withdrawal that is not part of a transfer as a
// deemed sale at the market price of the day.
func handleWithdrawal(r *run, tx ledger.Transaction) {
	r.res.Counts.Withdrawals++
	amount := tx.AssetAmount.Abs()
	f := r.res.flows(tx.Asset)
	f.Withdrawn = f.Withdrawn.Add(amount)

	q := r.quote(tx, func() (decimal.Decimal, bool) { return r.q.LastUnitCost(tx.Asset) })
	switch q.Quality {
	case price.Fallback:
		r.log.Info("no market price for withdrawal, using last purchase price",
			zap.String("asset", tx.Asset), zap.Time("date", tx.Date), zap.Stringer("price", q.Price))
	case price.Unavailable:
		r.log.Warn("no price for withdrawal, valued at zero",
			zap.String("asset", tx.Asset), zap.Time("date", tx.Date))
	}
	proceeds := amount.Mul(q.Price)
	r.res.WithdrawnEUR = r.res.WithdrawnEUR.Add(proceeds)
	r.dispose(tx, proceeds, q)
}

func handleDeposit(r *run, tx ledger.Transaction) {
	r.res.Counts.Deposits++
	f := r.res.flows(tx.Asset)
	f.Deposited = f.Deposited.Add(tx.AssetAmount.Abs())
	r.res.DepositedEUR = r.res.DepositedEUR.Add(tx.FiatAmount.Abs())
}

func handleFee(r *run, tx ledger.Transaction) {
	r.res.Counts.Fees++
	if tx.AssetAmount.Sign() < 0 {
		f := r.res.flows(tx.Asset)
		f.Fees = f.Fees.Add(tx.AssetAmount.Abs())
	}
}

// handleTransfer counts each transfer once, on whichever leg comes first.
func handleTransfer(r *run, tx ledger.Transaction) {
	if tx.TransferID != "" {
		if r.seen[tx.TransferID] {
			return
		}
		r.seen[tx.TransferID] = true
	}
	r.res.Counts.Transfers++
	f := r.res.flows(tx.Asset)
	f.Transferred = f.Transferred.Add(tx.AssetAmount.Abs())
	r.log.Debug("transfer excluded from disposals",
		zap.String("id", tx.TransferID), zap.String("asset", tx.Asset), zap.Stringer("amount", tx.AssetAmount.Abs()))
}

func handleStakingReward(r *run, tx ledger.Transaction) {
	r.res.Counts.StakingRewards++
	amount := tx.AssetAmount.Abs()
	reward := StakingReward{
		Date:    tx.Date,
		Asset:   tx.Asset,
		Amount:  amount,
		Value:   tx.FiatAmount.Abs(),
		Venue:   tx.Venue,
		Quality: price.Exact,
	}
	if reward.Value.IsZero() {
		q := r.quote(tx, nil)
		reward.Value = amount.Mul(q.Price)
		reward.Quality = q.Quality
	}
	r.res.StakingRewards = append(r.res.StakingRewards, reward)
	r.res.StakingIncome = r.res.StakingIncome.Add(reward.Value)
	g := r.res.yearGains(tx.Date.Year())
	g.Income = g.Income.Add(reward.Value)
	r.log.Debug("staking reward",
		zap.String("asset", tx.Asset), zap.Stringer("amount", amount),
		zap.Stringer("value", reward.Value), zap.Stringer("quality", reward.Quality))
}

// handleStakingAllocation only counts: staked coins stay in their lots and
// the extended staking holding period is not applied.
func handleStakingAllocation(r *run, tx ledger.Transaction) {
	r.res.Counts.StakingAllocations++
	r.log.Debug("staking allocation",
		zap.String("asset", tx.Asset), zap.Stringer("amount", tx.AssetAmount))
}

func (r *run) quote(tx ledger.Transaction, fallback func() (decimal.Decimal, bool)) price.Quote {
	q := price.Resolve(r.c.Prices, tx.Asset, tx.Date, fallback)
	r.c.Metrics.IncQuote(q.Quality.String())
	return q
}

func (r *run) dispose(tx ledger.Transaction, proceeds decimal.Decimal, q price.Quote) {
	if tx.AssetAmount.IsZero() {
		return
	}
	d := r.q.Dispose(tx.Asset, tx.AssetAmount, proceeds, tx.Date)
	r.c.Metrics.IncDisposal(string(tx.Kind))
	if d.Unmatched.Sign() > 0 {
		r.c.Metrics.IncUnmatched(tx.Asset)
	}

	r.res.TaxableGain = r.res.TaxableGain.Add(d.TaxableGain)
	r.res.ExemptGain = r.res.ExemptGain.Add(d.ExemptGain)
	g := r.res.yearGains(tx.Date.Year())
	g.Taxable = g.Taxable.Add(d.TaxableGain)
	g.Exempt = g.Exempt.Add(d.ExemptGain)

	r.res.Disposals = append(r.res.Disposals, Disposal{Disposal: d, Trigger: tx.Kind, Venue: tx.Venue, Quote: q})
	r.log.Debug("disposal",
		zap.String("trigger", string(tx.Kind)), zap.String("asset", tx.Asset),
		zap.Stringer("amount", d.Amount), zap.Stringer("proceeds", d.Proceeds),
		zap.Int("lots", len(d.Portions)),
		zap.Stringer("taxable", d.TaxableGain), zap.Stringer("exempt", d.ExemptGain))
}
