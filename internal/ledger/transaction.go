// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package ledger holds the unified transaction record every exchange export
// is normalized into.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the category of a unified transaction.
type Kind string

const (
	Buy               Kind = "buy"
	Sell              Kind = "sell"
	Deposit           Kind = "deposit"
	Withdrawal        Kind = "withdrawal"
	Fee               Kind = "fee"
	Transfer          Kind = "transfer"
	StakingReward     Kind = "staking_reward"
	StakingAllocation Kind = "staking_allocation"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{Buy, Sell, Deposit, Withdrawal, Fee, Transfer, StakingReward, StakingAllocation}

// ParseKind maps a case-insensitive kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Transaction is one normalized movement on a venue.
// AssetAmount and FiatAmount are signed: positive is incoming, negative outgoing.
type Transaction struct {
	Date        time.Time
	Kind        Kind
	Asset       string
	AssetAmount decimal.Decimal
	FiatAmount  decimal.Decimal // EUR
	Venue       string
	TransferID  string // set only by transfer detection
	Ref         string // exchange reference id
}

func (t Transaction) String() string {
	s := fmt.Sprintf("%s %s %s %s eur=%s venue=%s",
		t.Date.Format(time.RFC3339), t.Kind, t.AssetAmount.String(), t.Asset, t.FiatAmount.String(), t.Venue)
	if t.TransferID != "" {
		s += " transfer=" + t.TransferID
	}
	return s
}

// SortByDate orders txs ascending by date in place. Ties keep input order.
func SortByDate(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
}

// Merge concatenates chunks into a fresh slice and sorts it by date.
func Merge(chunks ...[]Transaction) []Transaction {
	var merged []Transaction
	for _, c := range chunks {
		merged = append(merged, c...)
	}
	SortByDate(merged)
	return merged
}

// FilterAssets keeps only transactions whose asset is in the set.
// An empty set keeps everything.
func FilterAssets(txs []Transaction, assets []string) []Transaction {
	set := map[string]bool{}
	for _, a := range assets {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			set[a] = true
		}
	}
	if len(set) == 0 {
		return txs
	}
	var out []Transaction
	for _, tx := range txs {
		if set[strings.ToUpper(tx.Asset)] {
			out = append(out, tx)
		}
	}
	return out
}
