// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package report renders calculation results as a plain text tax report.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"kryptosteuer/internal/config"
	"kryptosteuer/internal/incometax"
	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/price"
	"kryptosteuer/internal/tax"
)

// Options select what is rendered.
type Options struct {
	Year  int // 0 renders every year
	Rules config.TaxRules
}

// comparison incomes for the progressive tax scenarios
var scenarioIncomes = []int64{30000, 50000, 80000}

// Render writes the report for res to w.
func Render(w io.Writer, res tax.Results, opts Options) error {
	p := &printer{w: w}
	years := selectYears(res.Years(), opts.Year)

	p.section("TRADING OVERVIEW")
	p.line("Total bought:", eur(res.BuyVolume))
	p.line("Total sold:", eur(res.SellVolume))
	p.line("Transactions:", fmt.Sprint(res.Counts.Total()))

	p.section("TRADING BY YEAR")
	for _, y := range years {
		v, ok := res.TradingByYear[y]
		if !ok {
			continue
		}
		p.printf("%d: bought %s, sold %s\n", y, eur(v.Buy), eur(v.Sell))
	}

	p.section("TAX RELEVANT (FIFO, withdrawals valued at market price)")
	p.line("Taxable gain:", eur(res.TaxableGain))
	p.line("Tax-free gain (held > 1 year):", eur(res.ExemptGain))
	p.line("Total realized gain:", eur(res.TaxableGain.Add(res.ExemptGain)))
	for _, y := range years {
		p.taxYear(y, res.Year(y), opts.Rules)
	}
	p.printf("\nWithdrawals are treated as disposals at market price.\n")
	p.printf("Gains on coins held longer than %d months are tax-exempt (§23 EStG).\n", opts.Rules.HoldingPeriodMonths)

	p.section("ASSET MOVEMENTS")
	for _, a := range res.AssetNames() {
		f := res.Assets[a]
		p.printf("%-6s withdrawn %s, deposited %s, fees %s, transferred %s\n",
			a, qty(f.Withdrawn), qty(f.Deposited), qty(f.Fees), qty(f.Transferred))
	}
	p.line("Withdrawn value:", eur(res.WithdrawnEUR))
	p.line("Deposited EUR:", eur(res.DepositedEUR))

	p.staking(res, years, opts.Rules)

	p.section("TRANSACTION STATISTICS")
	c := res.Counts
	p.line("Buys:", fmt.Sprint(c.Buys))
	p.line("Sells:", fmt.Sprint(c.Sells))
	p.line("Deposits:", fmt.Sprint(c.Deposits))
	p.line("Withdrawals:", fmt.Sprint(c.Withdrawals))
	p.line("Transfers:", fmt.Sprint(c.Transfers))
	p.line("Fee transactions:", fmt.Sprint(c.Fees))
	p.line("Staking rewards:", fmt.Sprint(c.StakingRewards))
	p.line("Staking allocations:", fmt.Sprint(c.StakingAllocations))
	if c.Skipped > 0 {
		p.line("Skipped:", fmt.Sprint(c.Skipped))
	}

	if opts.Rules.Display.ShowDisposals {
		p.disposals(res, opts.Year)
	}
	if opts.Rules.Display.ShowOpenLots {
		p.openLots(res)
	}
	if opts.Rules.Display.ShowTips {
		p.tips(res, years, opts.Rules)
	}
	return p.err
}

func selectYears(all []int, year int) []int {
	if year == 0 {
		return all
	}
	return []int{year}
}

func (p *printer) taxYear(year int, g tax.Gains, rules config.TaxRules) {
	exemption := rules.ExemptionFor(year)
	p.printf("\n%d §23 EStG private sales:\n", year)
	p.printf("   taxable gain %s, tax-free gain %s\n", eur(g.Taxable), eur(g.Exempt))

	taxable := TaxableSales(g.Taxable, exemption)
	if taxable.IsZero() {
		p.printf("   below the %s Freigrenze, no tax on crypto gains\n", eur(exemption))
	} else {
		p.printf("   Freigrenze of %s reached, the full gain is taxable\n", eur(exemption))
	}
	other := TaxableOther(g.Income, rules.StakingExemption)
	if other.IsPositive() {
		p.printf("   taxable staking income %s\n", eur(other))
	}
	income := taxable.Add(other)
	if income.IsZero() {
		return
	}

	if rules.BaseIncome.IsPositive() {
		p.printf("   base income %s, total taxable income %s\n", eur(rules.BaseIncome), eur(rules.BaseIncome.Add(income)))
	}
	if rules.ApplyIncomeTax {
		t, rate := incometax.Progressive(rules.BaseIncome, income, year)
		if !incometax.Supported(year) {
			p.printf("   no tariff for %d, using %d\n", year, incometax.LatestYear)
		}
		p.printf("   income tax on crypto income: %s (effective rate %s)\n", eur(t), pct(rate))
	}
	p.printf("   progressive tax scenarios for comparison:\n")
	for _, base := range scenarioIncomes {
		t, rate := incometax.Progressive(decimal.NewFromInt(base), income, year)
		p.printf("     on %s income: %s (%s)\n", eur(decimal.NewFromInt(base)), eur(t), pct(rate))
	}
}

func (p *printer) staking(res tax.Results, years []int, rules config.TaxRules) {
	p.section("STAKING REWARDS")
	if len(res.StakingRewards) == 0 {
		p.printf("No staking rewards found.\n")
		return
	}
	p.line("Total staking income:", eur(res.StakingIncome))
	for _, y := range years {
		rewards := res.StakingIn(y)
		if len(rewards) == 0 {
			continue
		}
		income := res.Year(y).Income
		p.printf("\n%d (%d rewards, %s):\n", y, len(rewards), eur(income))
		if TaxableOther(income, rules.StakingExemption).IsZero() {
			p.printf("   below the %s Freigrenze (§22 Nr. 3 EStG)\n", eur(rules.StakingExemption))
		} else {
			p.printf("   taxable as other income (§22 Nr. 3 EStG)\n")
		}
		for _, r := range rewards {
			note := ""
			if r.Quality != price.Exact {
				note = " [" + r.Quality.String() + " price]"
			}
			p.printf("     %s: %s %s = %s (%s)%s\n", r.Date.Format("02.01."), qty(r.Amount), r.Asset, eur(r.Value), r.Venue, note)
		}
	}
	p.printf("\nStaking rewards are taxable as income when received.\n")
	if rules.StakingHoldingPeriodMonths > 0 {
		p.printf("Staked coins may be subject to a %d month holding period.\n", rules.StakingHoldingPeriodMonths)
	}
}

func (p *printer) disposals(res tax.Results, year int) {
	p.section("DISPOSALS")
	for _, d := range res.Disposals {
		if year != 0 && d.Date.Year() != year {
			continue
		}
		p.printf("%s %-10s %s %s for %s", d.Date.Format("2006-01-02"), d.Trigger, qty(d.Amount), d.Asset, eur(d.Proceeds))
		if d.Trigger == ledger.Withdrawal {
			p.printf(" @ %s (%s)", eur(d.Quote.Price), d.Quote.Quality)
		}
		p.printf("\n")
		for _, pt := range d.Portions {
			status := "taxable"
			if pt.Exempt {
				status = "tax-free"
			}
			p.printf("   lot %s: %s @ %s, gain %s %s\n",
				pt.AcquiredAt.Format("2006-01-02"), qty(pt.Consumed), eur(pt.UnitCost), eur(pt.Gain), status)
		}
		if d.Unmatched.IsPositive() {
			p.printf("   %s %s without matching purchase\n", qty(d.Unmatched), d.Asset)
		}
	}
}

func (p *printer) openLots(res tax.Results) {
	p.section("REMAINING PURCHASES")
	if len(res.OpenLots) == 0 {
		p.printf("No open lots.\n")
		return
	}
	asset := ""
	for _, lot := range res.OpenLots {
		if lot.Asset != asset {
			asset = lot.Asset
			p.printf("%s:\n", asset)
		}
		p.printf("   %s %s of %s @ %s (%s)\n",
			lot.AcquiredAt.Format("2006-01-02"), qty(lot.Remaining), qty(lot.OriginalAmount), eur(lot.UnitCost), lot.Venue)
	}
}

func (p *printer) tips(res tax.Results, years []int, rules config.TaxRules) {
	over := false
	for _, y := range years {
		if TaxableSales(res.Year(y).Taxable, rules.ExemptionFor(y)).IsPositive() {
			over = true
		}
	}
	if !over {
		return
	}
	p.section("TAX OPTIMIZATION TIPS")
	p.printf("   • Hold crypto longer than %d months for complete tax exemption\n", rules.HoldingPeriodMonths)
	p.printf("   • Time sales to stay below the annual Freigrenze\n")
	p.printf("   • December to January sales are still short-term\n")
	p.printf("   • The tax rate depends on your total annual income\n")
}

// TaxableSales applies the §23 Freigrenze: gains below exemption are tax
// free, otherwise the whole gain is taxable.
func TaxableSales(gain, exemption decimal.Decimal) decimal.Decimal {
	if gain.LessThan(exemption) || !gain.IsPositive() {
		return decimal.Zero
	}
	return gain
}

// TaxableOther applies the §22 Nr. 3 Freigrenze the same way.
func TaxableOther(income, exemption decimal.Decimal) decimal.Decimal {
	return TaxableSales(income, exemption)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) section(title string) {
	p.printf("\n=== %s ===\n", strings.ToUpper(title))
}

func (p *printer) line(label, value string) {
	p.printf("%-32s %s\n", label, value)
}

func eur(d decimal.Decimal) string {
	return humanize.FormatFloat("#.###,##", d.InexactFloat64()) + " €"
}

func qty(d decimal.Decimal) string {
	return d.Round(8).String()
}

func pct(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
