// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package source

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kryptosteuer/internal/ledger"
	"kryptosteuer/internal/metrics"
)

// maxParallel bounds the number of export files read at once.
const maxParallel = 4

// Source is one configured export file.
type Source struct {
	Exchange string
	Name     string
	Path     string
}

// LoadAll parses every source concurrently and merges the results by date;
// transactions at the same instant keep the order of sources. A source that
// cannot be read is logged and contributes no transactions. The error is non-nil only if ctx ends first.
func LoadAll(ctx context.Context, sources []Source, log *zap.Logger, rec *metrics.Recorder) ([]ledger.Transaction, error) {
	if log == nil {
		log = zap.NewNop()
	}
	files := make([]*File, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ParseFile(src.Path, log)
			if err != nil {
				log.Warn("could not load transactions",
					zap.String("exchange", src.Exchange), zap.String("source", src.Name),
					zap.String("path", src.Path), zap.Error(err))
				return nil
			}
			log.Info("loaded transactions",
				zap.String("exchange", src.Exchange), zap.String("source", src.Name),
				zap.String("format", string(f.Format)), zap.Int("count", len(f.Transactions)),
				zap.Int("rejected", len(f.Rejected)))
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chunks := make([][]ledger.Transaction, 0, len(files))
	for _, f := range files {
		if f == nil {
			continue
		}
		rec.AddSourceTransactions(f.Format.Venue(), len(f.Transactions))
		chunks = append(chunks, f.Transactions)
	}
	return ledger.Merge(chunks...), nil
}
