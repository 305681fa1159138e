// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package price

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoPrices is returned when a price file holds no usable rows.
var ErrNoPrices = errors.New("no price rows")

// LoadStats summarizes a LoadFiles call.
type LoadStats struct {
	Records int
	Loaded  []string // source keys
	Failed  []string
}

// LoadCSV reads a historical price export ("Datum" as DD.MM.YYYY, "Zuletzt"
// as a German formatted number) into h for asset and returns the number of
// rows recorded. A UTF-8 byte order mark is tolerated.
func LoadCSV(r io.Reader, asset string, h *History) (int, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	dateCol, priceCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`)) {
		case "datum", "date":
			dateCol = i
		case "zuletzt", "close", "price":
			priceCol = i
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return 0, fmt.Errorf("missing Datum/Zuletzt columns in header %v", header)
	}

	n := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if dateCol >= len(row) || priceCol >= len(row) {
			continue
		}
		at, err := ParseGermanDate(row[dateCol])
		if err != nil {
			continue
		}
		p := ParseGermanNumber(row[priceCol])
		if p.Sign() <= 0 {
			continue
		}
		h.Add(asset, at, p)
		n++
	}
	if n == 0 {
		return 0, ErrNoPrices
	}
	return n, nil
}

// LoadFiles loads every configured price file into h. Keys follow the
// "<asset>-eur-<year>" convention, e.g. "btc-eur-2021". Files that cannot
// be read are logged and reported in Failed; they never abort the run.
func LoadFiles(sources map[string]string, h *History, log *zap.Logger) LoadStats {
	if log == nil {
		log = zap.NewNop()
	}
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var stats LoadStats
	for _, key := range keys {
		path := sources[key]
		asset := AssetFromKey(key)
		n, err := loadFile(path, asset, h)
		if err != nil {
			log.Info("could not load price data", zap.String("source", key), zap.String("path", path), zap.Error(err))
			stats.Failed = append(stats.Failed, key)
			continue
		}
		log.Debug("loaded price points", zap.String("source", key), zap.Int("records", n))
		stats.Records += n
		stats.Loaded = append(stats.Loaded, key)
	}
	return stats
}

func loadFile(path, asset string, h *History) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return LoadCSV(f, asset, h)
}

// AssetFromKey extracts the asset from a "<asset>-eur-<year>" source key.
func AssetFromKey(key string) string {
	asset, _, _ := strings.Cut(key, "-")
	return strings.ToUpper(strings.TrimSpace(asset))
}

// ParseGermanDate parses DD.MM.YYYY, with or without surrounding quotes.
func ParseGermanDate(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return time.Parse("2.1.2006", s)
}

// ParseGermanNumber parses numbers like "1.234,56" or "45,3K". Unparseable
// input yields zero.
func ParseGermanNumber(s string) decimal.Decimal {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	thousands := strings.HasSuffix(s, "K")
	s = strings.TrimSuffix(s, "K")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if thousands {
		v = v.Mul(decimal.NewFromInt(1000))
	}
	return v
}
