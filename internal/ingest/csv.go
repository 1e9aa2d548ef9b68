// Package ingest reads transaction batches from CSV.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Column names, matched case-insensitively in any order.
const (
	ColTransactionID = "transactionid"
	ColAccountID     = "accountid"
	ColAmount        = "amount"
	ColCurrency      = "currency"
	ColTimestamp     = "timestamp"
	ColMerchant      = "merchant"
	ColLocation      = "location"
	ColChannel       = "channel"
)

var requiredColumns = []string{ColTransactionID, ColAccountID, ColAmount}

// Zone-less layouts are read as wall-clock time in the host's local zone, the
// clock the velocity window is measured against. The first layout is preferred.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ReadFile opens path and reads it with ReadCSV.
func ReadFile(path string) ([]*domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a header row followed by one transaction per row. Fields are
// trimmed. Rows with a blank transactionId are skipped. A malformed amount or
// timestamp, or a negative amount, fails the whole read with the line number.
func ReadCSV(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV input", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidInput, col)
		}
	}

	var transactions []*domain.Transaction
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		line, _ := reader.FieldPos(0)

		field := func(name string) string {
			i, ok := colIndex[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		id := field(ColTransactionID)
		if id == "" {
			continue
		}

		tx, err := parseRow(id, field)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidInput, line, err)
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

func parseRow(id string, field func(string) string) (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(field(ColAmount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", field(ColAmount))
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}

	ts, err := ParseTimestamp(field(ColTimestamp))
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:        id,
		AccountID: field(ColAccountID),
		Amount:    amount,
		Currency:  field(ColCurrency),
		Timestamp: ts,
		Merchant:  field(ColMerchant),
		Location:  field(ColLocation),
		Channel:   field(ColChannel),
	}, nil
}

// ParseTimestamp accepts "2006-01-02 15:04:05" and the ISO forms with a T
// separator, all in time.Local, plus RFC3339 with an explicit offset. An
// empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}
