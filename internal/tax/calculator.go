// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package tax runs the chronological aggregation pass: it feeds buys into
// the FIFO queue, matches sells and withdrawals against it and tallies
// volumes, gains and staking income per year.
package tax

import (
	"go.uber.org/zap"

	"kryptosteuer/internal/fifo"
	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/metrics"
	"kryptosteuer/internal/price"
	"kryptosteuer/internal/transfer"
)

// Calculator computes Results from a transaction stream. The zero value is
// usable: default holding period, no price data, default transfer detection.
type Calculator struct {
	HoldingMonths int
	Prices        price.Oracle
	Detector      *transfer.Detector
	Metrics       *metrics.Recorder
	Log           *zap.Logger
}

// Calculate detects transfers, sorts by date and aggregates. txs is not modified.
func (c *Calculator) Calculate(txs []ledger.Transaction) Results {
	det := c.Detector
	if det == nil {
		det = transfer.NewDetector(transfer.WithLogger(c.logger()))
	}
	marked, pairs := det.Apply(txs)
	c.Metrics.AddTransfers(len(pairs))
	ledger.SortByDate(marked)
	return c.Process(marked)
}

// Process aggregates a stream that is already transfer-marked and sorted by date.
func (c *Calculator) Process(sorted []ledger.Transaction) Results {
	r := &run{
		c:    c,
		log:  c.logger(),
		q:    fifo.NewQueue(c.HoldingMonths, c.logger()),
		res:  newResults(),
		seen: make(map[string]bool),
	}
	handlers := getHandlers()
	for _, tx := range sorted {
		h := handlers[tx.Kind]
		if h == nil {
			r.res.Counts.Skipped++
			r.log.Debug("skipping transaction of unknown kind", zap.Stringer("tx", tx))
			continue
		}
		c.Metrics.IncTransaction(string(tx.Kind))
		h(r, tx)
	}
	r.res.OpenLots = r.q.Open()

	c.Metrics.SetGain("taxable", r.res.TaxableGain)
	c.Metrics.SetGain("exempt", r.res.ExemptGain)
	c.Metrics.SetGain("income", r.res.StakingIncome)
	r.log.Info("aggregation finished",
		zap.Int("transactions", len(sorted)),
		zap.Int("disposals", len(r.res.Disposals)),
		zap.Stringer("taxable_gain", r.res.TaxableGain),
		zap.Stringer("exempt_gain", r.res.ExemptGain),
		zap.Stringer("staking_income", r.res.StakingIncome))
	return *r.res
}

func (c *Calculator) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// run is the mutable state of one Process call.
type run struct {
	c    *Calculator
	log  *zap.Logger
	q    *fifo.Queue
	res  *Results
	seen map[string]bool // transfer ids already counted
}

type handlerFunc func(r *run, tx ledger.Transaction)

func getHandlers() map[ledger.Kind]handlerFunc {
	return map[ledger.Kind]handlerFunc{
		ledger.Buy:               handleBuy,
		ledger.Sell:              handleSell,
		ledger.Withdrawal:        handleWithdrawal,
		ledger.Deposit:           handleDeposit,
		ledger.Fee:               handleFee,
		ledger.Transfer:          handleTransfer,
		ledger.StakingReward:     handleStakingReward,
		ledger.StakingAllocation: handleStakingAllocation,
	}
}
