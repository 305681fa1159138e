// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package incometax_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"kryptosteuer/internal/incometax"
)

func TestTaxForYear(t *testing.T) {
	tests := []struct {
		zvE  string
		year int
		want int64
	}{
		{"0", 2025, 0},
		{"-500", 2025, 0},
		{"12096", 2025, 0},
		{"12096.99", 2025, 0},
		{"12097", 2025, 0},
		{"50000", 2023, 11343},
		{"62809", 2023, 16406},
		{"62810", 2023, 16407},
		{"100000", 2016, 33605},
		{"100000", 2025, 31088},
		{"300000", 2025, 115753},
		{"300000", 2030, 115753},
	}
	for _, tt := range tests {
		got := incometax.TaxForYear(decimal.RequireFromString(tt.zvE), tt.year)
		if !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("TaxForYear(%s, %d) = %s, want %d", tt.zvE, tt.year, got, tt.want)
		}
	}
}

func TestTaxForYear_Monotonic(t *testing.T) {
	for _, year := range incometax.Years() {
		prev := decimal.Zero
		for income := int64(0); income <= 300000; income += 997 {
			tax := incometax.TaxForYear(decimal.NewFromInt(income), year)
			if tax.LessThan(prev) {
				t.Fatalf("%d: tax decreased at %d: %s < %s", year, income, tax, prev)
			}
			prev = tax
		}
	}
}

func TestProgressive(t *testing.T) {
	base := decimal.NewFromInt(50000)
	extra := decimal.NewFromInt(10000)
	tax, rate := incometax.Progressive(base, extra, 2025)

	want := incometax.TaxForYear(decimal.NewFromInt(60000), 2025).Sub(incometax.TaxForYear(base, 2025))
	if !tax.Equal(want) {
		t.Errorf("expected %s, got %s", want, tax)
	}
	if !rate.Equal(tax.Div(extra)) || rate.Sign() <= 0 || rate.GreaterThan(decimal.RequireFromString("0.45")) {
		t.Errorf("unexpected rate %s", rate)
	}

	if _, r := incometax.Progressive(base, decimal.Zero, 2025); !r.IsZero() {
		t.Errorf("expected zero rate without extra income, got %s", r)
	}
}

func TestYears(t *testing.T) {
	years := incometax.Years()
	if len(years) != 10 || years[0] != 2016 || years[9] != 2025 {
		t.Errorf("unexpected years %v", years)
	}
	if !incometax.Supported(2020) || incometax.Supported(2015) {
		t.Errorf("unexpected support flags")
	}
}
