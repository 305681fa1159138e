// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Command kryptosteuer computes German capital gains and staking income
// from exchange exports.
// Usage: kryptosteuer [-config DIR] [-year YYYY] [-asset A1,A2] [-v] [-metrics FILE] [file1.csv ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"kryptosteuer/internal/config"
	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/logging"
	"kryptosteuer/internal/metrics"
	"kryptosteuer/internal/price"
	"kryptosteuer/internal/report"
	"kryptosteuer/internal/source"
	"kryptosteuer/internal/tax"
	"kryptosteuer/internal/transfer"
)

func main() {
	dir := flag.String("config", "config", "directory with tax-rules.json, data-sources.json and .env")
	year := flag.Int("year", 0, "tax year to report (e.g. 2023). 0 = configured year or all years")
	assets := flag.String("asset", "", "comma-separated assets to include (default: all). Example: BTC,ETH")
	verbose := flag.Bool("v", false, "verbose logging")
	metricsFile := flag.String("metrics", "", "write run metrics in Prometheus text format to this file")
	flag.Parse()

	cfg, err := config.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log, options{
		files:   flag.Args(),
		year:    *year,
		assets:  splitList(*assets),
		metrics: *metricsFile,
	}); err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

type options struct {
	files   []string
	year    int
	assets  []string
	metrics string
}

func run(cfg *config.Config, log *zap.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sources := cfg.TransactionSources()
	if len(opts.files) > 0 {
		sources = sources[:0]
		for _, f := range opts.files {
			sources = append(sources, source.Source{Exchange: "cli", Name: filepath.Base(f), Path: f})
		}
	}
	if len(sources) == 0 {
		return fmt.Errorf("no transaction files: pass them as arguments or list them in %s", filepath.Join(cfg.Dir, config.SourcesFile))
	}

	rec := metrics.New()
	txs, err := source.LoadAll(ctx, sources, log, rec)
	if err != nil {
		return err
	}
	txs = ledger.FilterAssets(txs, opts.assets)
	log.Info("transactions loaded", zap.Int("sources", len(sources)), zap.Int("transactions", len(txs)))

	history := price.NewHistory()
	stats := price.LoadFiles(cfg.Sources.HistoricalPrices, history, log)
	log.Info("price data loaded", zap.Int("records", stats.Records), zap.Strings("loaded", stats.Loaded), zap.Strings("failed", stats.Failed))
	prices := price.NewCached(history)

	calc := &tax.Calculator{
		HoldingMonths: cfg.Rules.HoldingPeriodMonths,
		Prices:        prices,
		Detector: transfer.NewDetector(
			transfer.WithTolerance(cfg.Rules.TransferTolerance()),
			transfer.WithLogger(log),
		),
		Metrics: rec,
		Log:     log,
	}
	res := calc.Calculate(txs)

	hits, misses := prices.Stats()
	log.Debug("price cache", zap.Int64("hits", hits), zap.Int64("misses", misses))

	year := opts.year
	if year == 0 {
		year = cfg.Rules.TaxYear
	}
	if err := report.Render(os.Stdout, res, report.Options{Year: year, Rules: cfg.Rules}); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if opts.metrics != "" {
		if err := rec.WriteTextfile(opts.metrics); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		log.Info("metrics written", zap.String("path", opts.metrics))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
