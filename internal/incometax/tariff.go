// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package incometax implements the German income tax tariff (§32a EStG)
// for the years 2016 to 2025.
package incometax

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LatestYear is used for years without a tariff.
const LatestYear = 2025

type formula int

const (
	zero formula = iota
	progression1
	progression2
	linear
)

// zone is one income band of a tariff; to == 0 means open ended.
type zone struct {
	from, to int64
	formula  formula
	offset   float64 // y/z offset for progressions, subtracted amount for linear
	k, m     float64
	base     float64
	rate     float64
}

func tariff(z1, z2, z3, z4 int64, k1, k2, base2, off4, off5 float64) []zone {
	return []zone{
		{from: 0, to: z1, formula: zero},
		{from: z1 + 1, to: z2, formula: progression1, offset: float64(z1), k: k1, m: 1400},
		{from: z2 + 1, to: z3, formula: progression2, offset: float64(z2), k: k2, m: 2397, base: base2},
		{from: z3 + 1, to: z4, formula: linear, rate: 0.42, offset: off4},
		{from: z4 + 1, formula: linear, rate: 0.45, offset: off5},
	}
}

var tariffs = map[int][]zone{
	2016: tariff(8652, 13669, 53665, 254446, 993.62, 225.4, 952.48, 8394.14, 16027.52),
	2017: tariff(8820, 13769, 54057, 256303, 1007.27, 223.76, 939.57, 8475.44, 16164.53),
	2018: tariff(9000, 13996, 54949, 260532, 997.8, 220.13, 948.99, 8621.75, 16437.7),
	2019: tariff(9168, 14254, 55960, 265326, 980.14, 216.16, 965.58, 8780.9, 16740.68),
	2020: tariff(9408, 14532, 57051, 270500, 972.87, 212.02, 972.79, 8963.74, 17078.74),
	2021: tariff(9744, 14753, 57918, 274612, 995.21, 208.85, 950.96, 9136.63, 17374.99),
	2022: tariff(10347, 14926, 58596, 277825, 1088.67, 206.43, 869.32, 9336.45, 17671.2),
	2023: tariff(10908, 15999, 62809, 277825, 979.18, 192.59, 966.53, 9972.98, 18307.73),
	2024: tariff(11784, 17005, 66760, 277825, 954.8, 181.19, 991.21, 10636.31, 18971.06),
	2025: tariff(12096, 17443, 68480, 277825, 932.3, 176.64, 1015.13, 10911.92, 19246.67),
}

var tenThousand = decimal.NewFromInt(10000)

func (z zone) tax(zvE decimal.Decimal) decimal.Decimal {
	f := decimal.NewFromFloat
	switch z.formula {
	case progression1, progression2:
		y := zvE.Sub(f(z.offset)).Div(tenThousand)
		return f(z.k).Mul(y).Add(f(z.m)).Mul(y).Add(f(z.base))
	case linear:
		return f(z.rate).Mul(zvE).Sub(f(z.offset))
	default:
		return decimal.Zero
	}
}

// TaxForYear returns the income tax on the taxable income zvE in year,
// rounded down to whole euros. zvE is rounded down to whole euros first.
// Years without a tariff use LatestYear.
func TaxForYear(zvE decimal.Decimal, year int) decimal.Decimal {
	zones, ok := tariffs[year]
	if !ok {
		zones = tariffs[LatestYear]
	}
	income := zvE.Floor()
	if income.Sign() <= 0 {
		return decimal.Zero
	}
	n := income.IntPart()
	for _, z := range zones {
		if n >= z.from && (z.to == 0 || n <= z.to) {
			return z.tax(income).Floor()
		}
	}
	return decimal.Zero
}

// Progressive returns the additional tax caused by extra income on top of
// base and its effective rate (zero when extra is not positive).
func Progressive(base, extra decimal.Decimal, year int) (tax, rate decimal.Decimal) {
	tax = TaxForYear(base.Add(extra), year).Sub(TaxForYear(base, year))
	if extra.Sign() <= 0 {
		return tax, decimal.Zero
	}
	return tax, tax.Div(extra)
}

// Years returns the years with a tariff, ascending.
func Years() []int {
	years := make([]int, 0, len(tariffs))
	for y := range tariffs {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func Supported(year int) bool {
	_, ok := tariffs[year]
	return ok
}
