// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package source

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kryptosteuer/internal/ledger"
)

// bitcoinDe normalizes a Bitcoin.de account statement. Trades use the
// amounts after the Bitcoin.de fee; wallet movements use "Zu- / Abgang".
func (p *parser) bitcoinDe(rows []row) {
	for _, rr := range rows {
		typ := firstNonEmpty(rr.rec, "typ")
		t, err := parseTimeGuess(firstNonEmpty(rr.rec, "datum"))
		if err != nil {
			p.reject(rr.line, err)
			continue
		}
		asset := bitcoinDeAsset(firstNonEmpty(rr.rec, "währungen", "waehrungen"))
		crypto := parseGermanDecimal(firstNonEmpty(rr.rec, "btc nach bitcoin.de-gebühr")).Abs()
		eur := parseGermanDecimal(firstNonEmpty(rr.rec, "menge nach bitcoin.de-gebühr")).Abs()
		movement := parseGermanDecimal(firstNonEmpty(rr.rec, "zu- / abgang"))

		tx := ledger.Transaction{Date: t, Asset: asset, FiatAmount: decimal.Zero, Ref: firstNonEmpty(rr.rec, "referenz")}
		switch typ {
		case "Kauf":
			tx.Kind, tx.AssetAmount, tx.FiatAmount = ledger.Buy, crypto, eur.Neg()
		case "Verkauf":
			tx.Kind, tx.AssetAmount, tx.FiatAmount = ledger.Sell, crypto.Neg(), eur
		case "Einzahlung":
			tx.Kind, tx.AssetAmount = ledger.Deposit, movement
		case "Auszahlung":
			tx.Kind, tx.AssetAmount = ledger.Withdrawal, movement
		case "Netzwerk-Gebühr":
			tx.Kind, tx.AssetAmount = ledger.Fee, movement
		default:
			p.log.Debug("ignoring statement row", zap.String("type", typ), zap.Int("line", rr.line))
			continue
		}
		p.emit(tx)
	}
}

// bitcoinDeAsset takes the crypto side of a "BTC / EUR" currency pair. Older
// statements have no such column and are BTC only.
func bitcoinDeAsset(pair string) string {
	base, _, _ := strings.Cut(pair, "/")
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return "BTC"
	}
	return base
}
