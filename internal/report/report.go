// Package report exports and summarizes fraud alerts.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Limit bounds how many alerts an export or summary reads per account.
const Limit = 1000

// TimeLayout formats createdAt in CSV exports.
const TimeLayout = "2006-01-02 15:04:05"

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"id", "transactionId", "accountId", "score", "riskLevel", "reason", "createdAt"}

// ExportCSV writes alerts as CSV with a header row.
func ExportCSV(w io.Writer, alerts []*domain.FraudAlert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, a := range alerts {
		createdAt := ""
		if !a.CreatedAt.IsZero() {
			createdAt = a.CreatedAt.UTC().Format(TimeLayout)
		}
		record := []string{
			a.ID,
			a.TransactionID,
			a.AccountID,
			strconv.Itoa(a.Score),
			string(a.RiskLevel),
			a.Reason,
			createdAt,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes alerts as an indented JSON array. No alerts yields [].
func ExportJSON(w io.Writer, alerts []*domain.FraudAlert) error {
	if alerts == nil {
		alerts = []*domain.FraudAlert{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(alerts); err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	return nil
}

// Export writes alerts in format "csv" or "json".
func Export(w io.Writer, format string, alerts []*domain.FraudAlert) error {
	switch format {
	case "csv":
		return ExportCSV(w, alerts)
	case "json":
		return ExportJSON(w, alerts)
	default:
		return fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, format)
	}
}

// Count pairs a label with a number of alerts.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary aggregates the alerts of one account.
type Summary struct {
	AccountID  string                   `json:"accountId"`
	Total      int                      `json:"total"`
	ByLevel    map[domain.RiskLevel]int `json:"byLevel"`
	PerMonth   []Count                  `json:"perMonth"`
	TopReasons []Count                  `json:"topReasons"`
	Latest     *time.Time               `json:"latest,omitempty"`
}

// TopReasonCount is how many distinct reasons a summary lists.
const TopReasonCount = 5

// Summarize counts alerts per tier and per creation month (YYYY-MM, ascending)
// and lists the most frequent reasons.
func Summarize(accountID string, alerts []*domain.FraudAlert) Summary {
	s := Summary{
		AccountID: accountID,
		Total:     len(alerts),
		ByLevel:   make(map[domain.RiskLevel]int),
	}

	months := make(map[string]int)
	reasons := make(map[string]int)
	for _, a := range alerts {
		s.ByLevel[a.RiskLevel]++

		reason := a.Reason
		if reason == "" {
			reason = "Unknown"
		}
		reasons[reason]++

		if a.CreatedAt.IsZero() {
			continue
		}
		created := a.CreatedAt.UTC()
		months[created.Format("2006-01")]++
		if s.Latest == nil || created.After(*s.Latest) {
			s.Latest = &created
		}
	}

	s.PerMonth = sortedCounts(months, func(a, b Count) bool { return a.Key < b.Key })
	s.TopReasons = sortedCounts(reasons, func(a, b Count) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Key < b.Key
	})
	if len(s.TopReasons) > TopReasonCount {
		s.TopReasons = s.TopReasons[:TopReasonCount]
	}
	return s
}

func sortedCounts(m map[string]int, less func(a, b Count) bool) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
