// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package config loads tax rules and data source locations from a config
// directory, then applies .env and environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"kryptosteuer/internal/source"
)

const (
	RulesFile   = "tax-rules.json"
	SourcesFile = "data-sources.json"
	envPrefix   = "KRYPTOSTEUER_"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Display toggles optional report sections.
type Display struct {
	ShowDisposals bool `json:"showDisposals"`
	ShowOpenLots  bool `json:"showOpenLots"`
	ShowTips      bool `json:"showTips"`
}

// TaxRules are the German tax parameters.
type TaxRules struct {
	HoldingPeriodMonths        int `json:"holdingPeriodMonths"`
	StakingHoldingPeriodMonths int `json:"stakingHoldingPeriodMonths"`
	// AnnualExemption is the §23 Freigrenze: private sales gains stay tax
	// free only while they are below it.
	AnnualExemption decimal.Decimal `json:"annualExemption"`
	// LegacyAnnualExemption applies to tax years before 2024.
	LegacyAnnualExemption decimal.Decimal `json:"legacyAnnualExemption"`
	// StakingExemption is the §22 Nr. 3 Freigrenze for other income.
	StakingExemption       decimal.Decimal `json:"stakingExemption"`
	BaseIncome             decimal.Decimal `json:"baseIncome"`
	ApplyIncomeTax         bool            `json:"applyIncomeTax"`
	TaxYear                int             `json:"taxYear"` // 0 reports every year
	TransferToleranceHours float64         `json:"transferToleranceHours"`
	Display                Display         `json:"display"`
}

// TransferTolerance is the maximum time between the legs of a transfer.
func (r TaxRules) TransferTolerance() time.Duration {
	return time.Duration(r.TransferToleranceHours * float64(time.Hour))
}

// ExemptionFor returns the §23 Freigrenze of year.
func (r TaxRules) ExemptionFor(year int) decimal.Decimal {
	if year > 0 && year < 2024 {
		return r.LegacyAnnualExemption
	}
	return r.AnnualExemption
}

// DataSources lists input files. Transactions maps exchange to named export
// files; HistoricalPrices maps keys like "btc-eur-2021" to price files.
type DataSources struct {
	Transactions     map[string]map[string]string `json:"transactions"`
	HistoricalPrices map[string]string            `json:"historicalPrices"`
}

type Config struct {
	Dir      string
	LogLevel string
	Rules    TaxRules
	Sources  DataSources
}

// Default returns the configuration used when no files exist.
func Default() *Config {
	return &Config{
		Dir:      "config",
		LogLevel: "info",
		Rules: TaxRules{
			HoldingPeriodMonths:        12,
			StakingHoldingPeriodMonths: 120,
			AnnualExemption:            decimal.NewFromInt(1000),
			LegacyAnnualExemption:      decimal.NewFromInt(600),
			StakingExemption:           decimal.NewFromInt(256),
			BaseIncome:                 decimal.Zero,
			ApplyIncomeTax:             true,
			TransferToleranceHours:     720,
			Display:                    Display{ShowOpenLots: true, ShowTips: true},
		},
		Sources: DataSources{
			Transactions:     map[string]map[string]string{},
			HistoricalPrices: map[string]string{},
		},
	}
}

// Load reads dir/tax-rules.json and dir/data-sources.json over the defaults.
// A missing file keeps the defaults. Afterwards dir/.env and ./.env are
// loaded without overriding the environment, and KRYPTOSTEUER_* variables
// are applied.
func Load(dir string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	if err := readJSON(filepath.Join(dir, RulesFile), &cfg.Rules); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, SourcesFile), &cfg.Sources); err != nil {
		return nil, err
	}
	for _, f := range []string{filepath.Join(dir, ".env"), ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func getEnv(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func (c *Config) applyEnv() error {
	if v, ok := getEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := getEnv("TAX_YEAR"); ok {
		y, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sTAX_YEAR=%q", ErrInvalid, envPrefix, v)
		}
		c.Rules.TaxYear = y
	}
	if v, ok := getEnv("BASE_INCOME"); ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%w: %sBASE_INCOME=%q", ErrInvalid, envPrefix, v)
		}
		c.Rules.BaseIncome = d
	}
	if v, ok := getEnv("TRANSFER_TOLERANCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sTRANSFER_TOLERANCE=%q", ErrInvalid, envPrefix, v)
		}
		c.Rules.TransferToleranceHours = d.Hours()
	}
	if v, ok := getEnv("HOLDING_MONTHS"); ok {
		m, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sHOLDING_MONTHS=%q", ErrInvalid, envPrefix, v)
		}
		c.Rules.HoldingPeriodMonths = m
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	r := c.Rules
	switch {
	case r.HoldingPeriodMonths <= 0:
		return fmt.Errorf("%w: holding period must be positive, got %d", ErrInvalid, r.HoldingPeriodMonths)
	case r.StakingHoldingPeriodMonths < 0:
		return fmt.Errorf("%w: staking holding period must not be negative", ErrInvalid)
	case r.TransferToleranceHours < 0:
		return fmt.Errorf("%w: transfer tolerance must not be negative", ErrInvalid)
	case r.TaxYear != 0 && (r.TaxYear < 2009 || r.TaxYear > 2100):
		return fmt.Errorf("%w: tax year %d out of range", ErrInvalid, r.TaxYear)
	case r.AnnualExemption.IsNegative() || r.LegacyAnnualExemption.IsNegative() || r.StakingExemption.IsNegative():
		return fmt.Errorf("%w: exemptions must not be negative", ErrInvalid)
	case r.BaseIncome.IsNegative():
		return fmt.Errorf("%w: base income must not be negative", ErrInvalid)
	}
	return nil
}

// TransactionSources flattens the configured exports, sorted by exchange
// and then name so loading order is stable.
func (c *Config) TransactionSources() []source.Source {
	var out []source.Source
	for exchange, files := range c.Sources.Transactions {
		for name, path := range files {
			out = append(out, source.Source{Exchange: exchange, Name: name, Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Name < out[j].Name
	})
	return out
}
