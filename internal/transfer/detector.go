// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package transfer finds withdrawals and deposits that are the same coins
// moving between two venues of one owner. Such pairs are not disposals.
package transfer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kryptosteuer/internal/ledger"
)

const DefaultTolerance = 720 * time.Hour

// DefaultEpsilon is the largest absolute amount difference still treated as equal.
var DefaultEpsilon = decimal.New(1, -8)

// Pair is a matched withdrawal and deposit sharing one transfer id.
type Pair struct {
	Withdrawal ledger.Transaction
	Deposit    ledger.Transaction
	ID         string

	withdrawalIdx int
	depositIdx    int
}

// Detector pairs withdrawals with deposits greedily: each withdrawal, in
// input order, takes the first qualifying deposit in input order. The result
// therefore depends on input order and is not a globally optimal assignment.
type Detector struct {
	Tolerance time.Duration
	Epsilon   decimal.Decimal
	// RequireSameAsset additionally demands equal asset symbols. Off by
	// default: amounts and timing alone decide.
	RequireSameAsset bool
	NewID            func() string

	log *zap.Logger
}

type Option func(*Detector)

func WithTolerance(d time.Duration) Option { return func(x *Detector) { x.Tolerance = d } }

func WithEpsilon(e decimal.Decimal) Option { return func(x *Detector) { x.Epsilon = e } }

func WithSameAsset() Option { return func(x *Detector) { x.RequireSameAsset = true } }

func WithIDs(f func() string) Option { return func(x *Detector) { x.NewID = f } }

func WithLogger(l *zap.Logger) Option { return func(x *Detector) { x.log = l } }

func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		Tolerance: DefaultTolerance,
		Epsilon:   DefaultEpsilon,
		NewID:     uuid.NewString,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// Detect returns the matched pairs of txs.
func (d *Detector) Detect(txs []ledger.Transaction) []Pair {
	var withdrawals, deposits []int
	for i, tx := range txs {
		switch tx.Kind {
		case ledger.Withdrawal:
			withdrawals = append(withdrawals, i)
		case ledger.Deposit:
			deposits = append(deposits, i)
		}
	}
	d.log.Info("analyzing transfer candidates",
		zap.Int("withdrawals", len(withdrawals)), zap.Int("deposits", len(deposits)))

	usedDeposit := make(map[int]bool, len(deposits))
	var pairs []Pair
	for _, wi := range withdrawals {
		w := txs[wi]
		for _, di := range deposits {
			if usedDeposit[di] {
				continue
			}
			dep := txs[di]
			if !d.matches(w, dep) {
				continue
			}
			usedDeposit[di] = true
			p := Pair{Withdrawal: w, Deposit: dep, ID: d.NewID(), withdrawalIdx: wi, depositIdx: di}
			pairs = append(pairs, p)
			d.log.Info("transfer detected",
				zap.String("id", p.ID), zap.String("asset", w.Asset),
				zap.String("from", w.Venue), zap.String("to", dep.Venue),
				zap.Stringer("amount", w.AssetAmount.Abs()),
				zap.Duration("delay", absDuration(dep.Date.Sub(w.Date))))
			break
		}
	}
	d.log.Info("transfer detection finished", zap.Int("pairs", len(pairs)))
	return pairs
}

func (d *Detector) matches(w, dep ledger.Transaction) bool {
	if w.Venue == dep.Venue {
		return false
	}
	if d.RequireSameAsset && w.Asset != dep.Asset {
		return false
	}
	if absDuration(dep.Date.Sub(w.Date)) > d.Tolerance {
		return false
	}
	wa, da := w.AssetAmount.Abs(), dep.AssetAmount.Abs()
	if wa.IsZero() || da.IsZero() {
		return false
	}
	return wa.Sub(da).Abs().LessThan(d.Epsilon)
}

// Mark returns a copy of txs in which the members of pairs are relabeled
// as transfers carrying their pair id. pairs must come from Detect on the
// same slice.
func Mark(txs []ledger.Transaction, pairs []Pair) []ledger.Transaction {
	out := make([]ledger.Transaction, len(txs))
	copy(out, txs)
	for _, p := range pairs {
		for _, i := range []int{p.withdrawalIdx, p.depositIdx} {
			out[i].Kind = ledger.Transfer
			out[i].TransferID = p.ID
		}
	}
	return out
}

// Apply detects transfers in txs and returns the relabeled copy with the pairs.
func (d *Detector) Apply(txs []ledger.Transaction) ([]ledger.Transaction, []Pair) {
	pairs := d.Detect(txs)
	return Mark(txs, pairs), pairs
}

func absDuration(x time.Duration) time.Duration {
	if x < 0 {
		return -x
	}
	return x
}
