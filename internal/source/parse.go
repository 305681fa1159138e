// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.0000",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

func parseTimeGuess(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %q", s)
}

func isFiat(asset string) bool {
	switch strings.ToLower(strings.TrimSpace(asset)) {
	case "eur", "usd", "gbp", "chf", "cad", "aud", "jpy":
		return true
	}
	return false
}

// parseDecimal parses a number with '.' as decimal separator; ',' is taken
// as a thousands separator. Unparseable input yields zero.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	var clean strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			clean.WriteRune(r)
		}
	}
	d, _ := decimal.NewFromString(clean.String())
	return d
}

// parseGermanDecimal accepts both "1.234,56" and "1234.56".
func parseGermanDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return parseDecimal(s)
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[strings.ToLower(k)]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var krakenAssets = map[string]string{
	"XXBT": "BTC",
	"XBT":  "BTC",
	"XETH": "ETH",
	"ETH2": "ETH",
	"XXDG": "DOGE",
	"XDG":  "DOGE",
	"XLTC": "LTC",
	"XXRP": "XRP",
	"XXLM": "XLM",
	"XXMR": "XMR",
	"XZEC": "ZEC",
	"ZEUR": "EUR",
	"ZUSD": "USD",
	"ZGBP": "GBP",
}

// NormalizeAsset maps Kraken asset codes to common tickers and drops the
// staking and earn suffixes (".S", ".M", ".F", ...).
func NormalizeAsset(code string) string {
	a := strings.ToUpper(strings.TrimSpace(code))
	if i := strings.IndexByte(a, '.'); i > 0 {
		a = a[:i]
	}
	if n, ok := krakenAssets[a]; ok {
		return n
	}
	return a
}
