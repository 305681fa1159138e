// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package transfer_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/transfer"
)

var base = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)

func tx(kind ledger.Kind, asset, amount, venue string, offset time.Duration) ledger.Transaction {
	return ledger.Transaction{
		Date:        base.Add(offset),
		Kind:        kind,
		Asset:       asset,
		AssetAmount: decimal.RequireFromString(amount),
		FiatAmount:  decimal.Zero,
		Venue:       venue,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}

func TestDetect_Basic(t *testing.T) {
	txs := []ledger.Transaction{
		tx(ledger.Withdrawal, "BTC", "-0.5", "kraken", 0),
		tx(ledger.Deposit, "BTC", "0.5", "bitcoin.de", 2*time.Hour),
	}
	d := transfer.NewDetector(transfer.WithIDs(sequentialIDs()))
	pairs := d.Detect(txs)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].ID != "t1" {
		t.Errorf("expected id t1, got %s", pairs[0].ID)
	}
	if pairs[0].Withdrawal.Venue != "kraken" || pairs[0].Deposit.Venue != "bitcoin.de" {
		t.Errorf("unexpected pair %+v", pairs[0])
	}
}

func TestDetect_Rules(t *testing.T) {
	tests := []struct {
		name string
		txs  []ledger.Transaction
		want int
	}{
		{"same venue", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
			tx(ledger.Deposit, "BTC", "1", "kraken", time.Hour),
		}, 0},
		{"outside window", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
			tx(ledger.Deposit, "BTC", "1", "bitcoin.de", 721*time.Hour),
		}, 0},
		{"at window edge", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
			tx(ledger.Deposit, "BTC", "1", "bitcoin.de", 720*time.Hour),
		}, 1},
		{"deposit before withdrawal", []ledger.Transaction{
			tx(ledger.Deposit, "BTC", "1", "bitcoin.de", -time.Hour),
			tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
		}, 1},
		{"amount within epsilon", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1.000000001", "kraken", 0),
			tx(ledger.Deposit, "BTC", "1", "bitcoin.de", time.Hour),
		}, 1},
		{"amount differs", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1.0001", "kraken", 0),
			tx(ledger.Deposit, "BTC", "1", "bitcoin.de", time.Hour),
		}, 0},
		{"zero amounts", []ledger.Transaction{
			tx(ledger.Withdrawal, "EUR", "0", "kraken", 0),
			tx(ledger.Deposit, "EUR", "0", "bitcoin.de", time.Hour),
		}, 0},
		{"asset not compared", []ledger.Transaction{
			tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
			tx(ledger.Deposit, "ETH", "1", "bitcoin.de", time.Hour),
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transfer.NewDetector().Detect(tt.txs)
			if len(got) != tt.want {
				t.Errorf("expected %d pairs, got %d", tt.want, len(got))
			}
		})
	}
}

func TestDetect_RequireSameAsset(t *testing.T) {
	txs := []ledger.Transaction{
		tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
		tx(ledger.Deposit, "ETH", "1", "bitcoin.de", time.Hour),
	}
	if got := transfer.NewDetector(transfer.WithSameAsset()).Detect(txs); len(got) != 0 {
		t.Errorf("expected no pair across assets, got %d", len(got))
	}
}

func TestDetect_GreedyFirstMatch(t *testing.T) {
	txs := []ledger.Transaction{
		tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
		tx(ledger.Withdrawal, "BTC", "-1", "kraken", time.Hour),
		tx(ledger.Deposit, "BTC", "1", "bitcoin.de", 30*time.Hour),
		tx(ledger.Deposit, "BTC", "1", "bitcoin.de", 2*time.Hour),
	}
	pairs := transfer.NewDetector(transfer.WithIDs(sequentialIDs())).Detect(txs)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	// the first withdrawal takes the first deposit in input order, not the closest
	if !pairs[0].Deposit.Date.Equal(base.Add(30 * time.Hour)) {
		t.Errorf("expected first deposit in input order, got %s", pairs[0].Deposit.Date)
	}
	if pairs[0].ID == pairs[1].ID {
		t.Errorf("pair ids must be distinct")
	}
}

func TestMark_DoesNotMutateInput(t *testing.T) {
	txs := []ledger.Transaction{
		tx(ledger.Buy, "BTC", "1", "kraken", -time.Hour),
		tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
		tx(ledger.Deposit, "BTC", "1", "bitcoin.de", time.Hour),
	}
	marked, pairs := transfer.NewDetector(transfer.WithIDs(sequentialIDs())).Apply(txs)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if txs[1].Kind != ledger.Withdrawal || txs[2].Kind != ledger.Deposit || txs[1].TransferID != "" {
		t.Errorf("input was mutated")
	}
	if marked[0].Kind != ledger.Buy {
		t.Errorf("expected buy untouched, got %s", marked[0].Kind)
	}
	for _, i := range []int{1, 2} {
		if marked[i].Kind != ledger.Transfer || marked[i].TransferID != "t1" {
			t.Errorf("record %d: expected transfer t1, got %s %q", i, marked[i].Kind, marked[i].TransferID)
		}
	}
}

func TestNewDetector_DefaultIDsAreUnique(t *testing.T) {
	txs := []ledger.Transaction{
		tx(ledger.Withdrawal, "BTC", "-1", "kraken", 0),
		tx(ledger.Deposit, "BTC", "1", "bitcoin.de", time.Hour),
		tx(ledger.Withdrawal, "ETH", "-2", "kraken", 0),
		tx(ledger.Deposit, "ETH", "2", "bitcoin.de", time.Hour),
	}
	pairs := transfer.NewDetector().Detect(txs)
	if len(pairs) != 2 || pairs[0].ID == "" || pairs[0].ID == pairs[1].ID {
		t.Errorf("expected two distinct non-empty ids, got %+v", pairs)
	}
}
