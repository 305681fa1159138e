// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package metrics records per-run counters of a tax calculation and writes
// them in the Prometheus text format, e.g. for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Recorder holds the run metrics. All methods are safe on a nil *Recorder,
// which records nothing.
type Recorder struct {
	// Registry owns every metric of this recorder.
	Registry *prometheus.Registry

	transactions *prometheus.CounterVec
	sourceRows   *prometheus.CounterVec
	disposals    *prometheus.CounterVec
	unmatched    *prometheus.CounterVec
	quotes       *prometheus.CounterVec
	transfers    prometheus.Counter
	gains        *prometheus.GaugeVec
}

// New creates a recorder backed by its own registry, so several recorders
// can coexist in one process.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		Registry: reg,

		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kryptosteuer_transactions_total",
				Help: "Transactions processed by kind.",
			},
			[]string{"kind"},
		),
		sourceRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kryptosteuer_source_transactions_total",
				Help: "Transactions normalized per source venue.",
			},
			[]string{"venue"},
		),
		disposals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kryptosteuer_disposals_total",
				Help: "FIFO disposals by trigger.",
			},
			[]string{"trigger"},
		),
		unmatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kryptosteuer_unmatched_disposals_total",
				Help: "Disposals that exceeded the open lots.",
			},
			[]string{"asset"},
		),
		quotes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kryptosteuer_price_quotes_total",
				Help: "Price lookups by result quality.",
			},
			[]string{"quality"},
		),
		transfers: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kryptosteuer_transfers_total",
				Help: "Detected inter-venue transfers.",
			},
		),
		gains: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kryptosteuer_gain_eur",
				Help: "Total EUR gain or income by class.",
			},
			[]string{"class"},
		),
	}
}

func (r *Recorder) IncTransaction(kind string) {
	if r == nil {
		return
	}
	r.transactions.WithLabelValues(kind).Inc()
}

func (r *Recorder) AddSourceTransactions(venue string, n int) {
	if r == nil {
		return
	}
	r.sourceRows.WithLabelValues(venue).Add(float64(n))
}

func (r *Recorder) IncDisposal(trigger string) {
	if r == nil {
		return
	}
	r.disposals.WithLabelValues(trigger).Inc()
}

func (r *Recorder) IncUnmatched(asset string) {
	if r == nil {
		return
	}
	r.unmatched.WithLabelValues(asset).Inc()
}

func (r *Recorder) IncQuote(quality string) {
	if r == nil {
		return
	}
	r.quotes.WithLabelValues(quality).Inc()
}

func (r *Recorder) AddTransfers(n int) {
	if r == nil {
		return
	}
	r.transfers.Add(float64(n))
}

// SetGain sets the gauge of class ("taxable", "exempt", "income").
func (r *Recorder) SetGain(class string, v decimal.Decimal) {
	if r == nil {
		return
	}
	r.gains.WithLabelValues(class).Set(v.InexactFloat64())
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
