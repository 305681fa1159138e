// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"kryptosteuer/internal/metrics"
)

func TestRecorder_Counts(t *testing.T) {
	r := metrics.New()
	r.IncTransaction("buy")
	r.IncTransaction("buy")
	r.IncTransaction("sell")
	r.AddTransfers(3)
	r.SetGain("taxable", decimal.RequireFromString("1234.5"))

	n, err := testutil.GatherAndCount(r.Registry, "kryptosteuer_transactions_total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 kind series, got %d", n)
	}
	expected := `
# HELP kryptosteuer_transfers_total Detected inter-venue transfers.
# TYPE kryptosteuer_transfers_total counter
kryptosteuer_transfers_total 3
`
	if err := testutil.GatherAndCompare(r.Registry, strings.NewReader(expected), "kryptosteuer_transfers_total"); err != nil {
		t.Errorf("unexpected transfers metric: %v", err)
	}
	gain := `
# HELP kryptosteuer_gain_eur Total EUR gain or income by class.
# TYPE kryptosteuer_gain_eur gauge
kryptosteuer_gain_eur{class="taxable"} 1234.5
`
	if err := testutil.GatherAndCompare(r.Registry, strings.NewReader(gain), "kryptosteuer_gain_eur"); err != nil {
		t.Errorf("unexpected gain metric: %v", err)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *metrics.Recorder
	r.IncTransaction("buy")
	r.IncQuote("exact")
	r.SetGain("exempt", decimal.NewFromInt(1))
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := metrics.New()
	r.IncDisposal("sell")
	path := filepath.Join(t.TempDir(), "kryptosteuer.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `kryptosteuer_disposals_total{trigger="sell"} 1`) {
		t.Errorf("expected disposal counter in output, got:\n%s", b)
	}
}
