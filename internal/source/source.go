// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

// Package source normalizes exchange CSV exports into ledger transactions.
// Supported are the Kraken ledger export and the Bitcoin.de account statement.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"kryptosteuer/internal/ledger"
)

// Format identifies an exchange export layout.
type Format string

const (
	Kraken    Format = "kraken"
	BitcoinDe Format = "bitcoin.de"
)

// Venue is the venue name transactions of this format are attributed to.
func (f Format) Venue() string { return string(f) }

// ErrUnknownFormat is returned for a header that matches no supported export.
var ErrUnknownFormat = errors.New("unknown export format")

// RowError describes a row that could not be normalized and was skipped.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// File is one parsed export.
type File struct {
	Name         string
	Format       Format
	Transactions []ledger.Transaction
	Rejected     []*RowError
}

// row is a CSV record keyed by lower-cased header name.
type row struct {
	line int
	rec  map[string]string
}

// DetectFormat inspects a header row.
func DetectFormat(header []string) (Format, error) {
	idx := map[string]bool{}
	for _, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = true
	}
	switch {
	case idx["refid"] && idx["asset"] && idx["amount"]:
		return Kraken, nil
	case idx["typ"] && idx["datum"]:
		return BitcoinDe, nil
	}
	return "", fmt.Errorf("%w: header %v", ErrUnknownFormat, header)
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, log *zap.Logger) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, filepath.Base(path), log)
}

// Parse reads an export, detects its format from the header and normalizes
// every row. Rows that cannot be normalized are reported in File.Rejected;
// only unreadable input and unknown formats are errors.
func Parse(r io.Reader, name string, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	content, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	cr := csv.NewReader(bytes.NewReader(content))
	cr.Comma = sniffDelimiter(content)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	headerRow, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	format, err := DetectFormat(headerRow)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	headerIdx := map[string]int{}
	for i, h := range headerRow {
		headerIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		record := make(map[string]string, len(headerIdx))
		for k, i := range headerIdx {
			if i < len(rec) {
				record[k] = rec[i]
			}
		}
		rows = append(rows, row{line: line, rec: record})
	}

	out := &File{Name: name, Format: format}
	p := parser{file: out, log: log.With(zap.String("file", name), zap.String("format", string(format)))}
	switch format {
	case Kraken:
		p.kraken(rows)
	case BitcoinDe:
		p.bitcoinDe(rows)
	}
	p.log.Debug("parsed export",
		zap.Int("rows", len(rows)), zap.Int("transactions", len(out.Transactions)), zap.Int("rejected", len(out.Rejected)))
	return out, nil
}

// sniffDelimiter picks ';' when the header line has more semicolons than commas.
func sniffDelimiter(content []byte) rune {
	header := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		header = content[:i]
	}
	if bytes.Count(header, []byte{';'}) > bytes.Count(header, []byte{','}) {
		return ';'
	}
	return ','
}

type parser struct {
	file *File
	log  *zap.Logger
}

func (p *parser) emit(tx ledger.Transaction) {
	tx.Venue = p.file.Format.Venue()
	p.file.Transactions = append(p.file.Transactions, tx)
}

func (p *parser) reject(line int, err error) {
	re := &RowError{File: p.file.Name, Line: line, Err: err}
	p.file.Rejected = append(p.file.Rejected, re)
	p.log.Warn("skipping row", zap.Error(re))
}
