// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package source

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kryptosteuer/internal/ledger"
)

// errIncompleteTrade marks a trade group without both an asset and an EUR leg.
var errIncompleteTrade = errors.New("trade without asset and EUR leg")

type krakenRow struct {
	line    int
	refid   string
	time    time.Time
	typ     string
	subtype string
	asset   string
	amount  decimal.Decimal
	fee     decimal.Decimal
}

func isKrakenTrade(typ string) bool {
	return typ == "trade" || typ == "spend" || typ == "receive"
}

// kraken normalizes a ledger export. Kraken books every trade as one row
// per currency sharing a refid; those groups become a single buy or sell.
// Non-trade rows are emitted first in file order, then the trades in order
// of their first row.
func (p *parser) kraken(rows []row) {
	var order []string
	groups := map[string][]krakenRow{}

	for _, rr := range rows {
		t, err := parseTimeGuess(firstNonEmpty(rr.rec, "time"))
		if err != nil {
			p.reject(rr.line, err)
			continue
		}
		kr := krakenRow{
			line:    rr.line,
			refid:   firstNonEmpty(rr.rec, "refid", "txid"),
			time:    t,
			typ:     strings.ToLower(firstNonEmpty(rr.rec, "type")),
			subtype: strings.ToLower(firstNonEmpty(rr.rec, "subtype")),
			asset:   NormalizeAsset(firstNonEmpty(rr.rec, "asset")),
			amount:  parseDecimal(firstNonEmpty(rr.rec, "amount", "vol")),
			fee:     parseDecimal(firstNonEmpty(rr.rec, "fee")),
		}
		if isKrakenTrade(kr.typ) {
			key := kr.refid
			if key == "" {
				key = fmt.Sprintf("line-%d", kr.line)
			}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], kr)
			continue
		}
		p.krakenSingle(kr)
	}

	for _, key := range order {
		p.krakenTrade(groups[key])
	}
}

func (p *parser) krakenSingle(kr krakenRow) {
	tx := ledger.Transaction{Date: kr.time, Asset: kr.asset, AssetAmount: kr.amount, FiatAmount: decimal.Zero, Ref: kr.refid}
	switch kr.typ {
	case "deposit":
		tx.Kind = ledger.Deposit
		if isFiat(kr.asset) {
			if kr.asset != "EUR" {
				p.log.Debug("ignoring non-EUR fiat deposit", zap.String("asset", kr.asset), zap.Int("line", kr.line))
				return
			}
			tx.AssetAmount, tx.FiatAmount = decimal.Zero, kr.amount
		}
		p.emit(tx)
	case "withdrawal":
		if isFiat(kr.asset) {
			p.log.Debug("ignoring fiat withdrawal", zap.String("asset", kr.asset), zap.Int("line", kr.line))
			return
		}
		tx.Kind = ledger.Withdrawal
		p.emit(tx)
		if kr.fee.Sign() > 0 {
			p.emit(ledger.Transaction{Date: kr.time, Kind: ledger.Fee, Asset: kr.asset, AssetAmount: kr.fee.Neg(), FiatAmount: decimal.Zero, Ref: kr.refid})
		}
	case "staking":
		tx.Kind = ledger.StakingReward
		p.emit(tx)
	case "earn":
		switch kr.subtype {
		case "reward":
			tx.Kind = ledger.StakingReward
		case "allocation":
			tx.Kind = ledger.StakingAllocation
		default:
			p.log.Debug("ignoring earn row", zap.String("subtype", kr.subtype), zap.Int("line", kr.line))
			return
		}
		p.emit(tx)
	default:
		p.log.Debug("ignoring ledger row", zap.String("type", kr.typ), zap.String("subtype", kr.subtype), zap.Int("line", kr.line))
	}
}

func (p *parser) krakenTrade(group []krakenRow) {
	var assetRow, eurRow *krakenRow
	for i := range group {
		switch {
		case group[i].asset == "EUR":
			if eurRow == nil {
				eurRow = &group[i]
			}
		case assetRow == nil:
			assetRow = &group[i]
		}
	}
	if assetRow == nil || eurRow == nil {
		p.reject(group[0].line, fmt.Errorf("refid %s: %w", group[0].refid, errIncompleteTrade))
		return
	}
	if isFiat(assetRow.asset) {
		p.log.Debug("ignoring fiat conversion", zap.String("refid", assetRow.refid), zap.String("asset", assetRow.asset))
		return
	}

	kind := ledger.Sell
	if assetRow.amount.Sign() > 0 {
		kind = ledger.Buy
	}
	p.emit(ledger.Transaction{
		Date:        assetRow.time,
		Kind:        kind,
		Asset:       assetRow.asset,
		AssetAmount: assetRow.amount,
		FiatAmount:  eurRow.amount,
		Ref:         assetRow.refid,
	})
	if assetRow.fee.Sign() > 0 {
		p.emit(ledger.Transaction{Date: assetRow.time, Kind: ledger.Fee, Asset: assetRow.asset, AssetAmount: assetRow.fee.Neg(), FiatAmount: decimal.Zero, Ref: assetRow.refid})
	}
	if eurRow.fee.Sign() > 0 {
		p.emit(ledger.Transaction{Date: eurRow.time, Kind: ledger.Fee, Asset: "EUR", AssetAmount: eurRow.fee.Neg(), FiatAmount: eurRow.fee.Neg(), Ref: eurRow.refid})
	}
}
