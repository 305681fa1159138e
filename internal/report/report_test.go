// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kryptosteuer/internal/config"
	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/report"
	"kryptosteuer/internal/tax"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sample() tax.Results {
	at := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 12, 0, 0, 0, time.UTC) }
	txs := []ledger.Transaction{
		{Date: at(2020, 1, 1), Kind: ledger.Buy, Asset: "BTC", AssetAmount: d("1"), FiatAmount: d("-6000"), Venue: "kraken"},
		{Date: at(2020, 2, 1), Kind: ledger.Buy, Asset: "BTC", AssetAmount: d("1"), FiatAmount: d("-8000"), Venue: "kraken"},
		{Date: at(2020, 6, 1), Kind: ledger.Sell, Asset: "BTC", AssetAmount: d("-1"), FiatAmount: d("9000"), Venue: "kraken"},
		{Date: at(2021, 3, 1), Kind: ledger.Sell, Asset: "BTC", AssetAmount: d("-0.5"), FiatAmount: d("25000"), Venue: "kraken"},
		{Date: at(2021, 4, 1), Kind: ledger.StakingReward, Asset: "DOT", AssetAmount: d("3"), FiatAmount: d("90"), Venue: "kraken"},
	}
	return (&tax.Calculator{}).Calculate(txs)
}

func rules() config.TaxRules {
	r := config.Default().Rules
	r.Display.ShowDisposals = true
	return r
}

func TestRender_Sections(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Render(&buf, sample(), report.Options{Rules: rules()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"=== TRADING OVERVIEW ===",
		"=== STAKING REWARDS ===",
		"=== TRANSACTION STATISTICS ===",
		"=== DISPOSALS ===",
		"=== REMAINING PURCHASES ===",
		"=== TAX OPTIMIZATION TIPS ===",
		"2020 §23 EStG private sales:",
		"2021 §23 EStG private sales:",
		"Freigrenze of 600,00 € reached",
		"14.000,00 €",
		"progressive tax scenarios",
		"on 50.000,00 € income",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestRender_YearFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Render(&buf, sample(), report.Options{Year: 2020, Rules: rules()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "2021 §23 EStG") || strings.Contains(out, "2021-03-01") {
		t.Errorf("2021 must be filtered out:\n%s", out)
	}
	if !strings.Contains(out, "2020 §23 EStG") {
		t.Errorf("expected 2020 section:\n%s", out)
	}
}

func TestRender_BelowFreigrenze(t *testing.T) {
	res := (&tax.Calculator{}).Calculate([]ledger.Transaction{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Kind: ledger.Buy, Asset: "BTC", AssetAmount: d("1"), FiatAmount: d("-40000")},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Kind: ledger.Sell, Asset: "BTC", AssetAmount: d("-1"), FiatAmount: d("40999")},
	})
	var buf bytes.Buffer
	if err := report.Render(&buf, res, report.Options{Rules: rules()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "below the 1.000,00 € Freigrenze") {
		t.Errorf("expected Freigrenze note:\n%s", out)
	}
	if strings.Contains(out, "TAX OPTIMIZATION TIPS") {
		t.Errorf("no tips expected below the Freigrenze")
	}
}

func TestTaxableSales(t *testing.T) {
	tests := []struct{ gain, want string }{
		{"999.99", "0"},
		{"1000", "1000"},
		{"1500", "1500"},
		{"-200", "0"},
	}
	for _, tt := range tests {
		if got := report.TaxableSales(d(tt.gain), d("1000")); !got.Equal(d(tt.want)) {
			t.Errorf("TaxableSales(%s) = %s, want %s", tt.gain, got, tt.want)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender_WriteError(t *testing.T) {
	if err := report.Render(failingWriter{}, sample(), report.Options{Rules: rules()}); err == nil {
		t.Fatal("expected write error")
	}
}
