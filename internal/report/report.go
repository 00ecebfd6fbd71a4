// Package report builds period summaries of committed expenses, rendered as
// chat text or exported as a CSV spreadsheet.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-tracker/internal/expense"
)

// MaxTextLength keeps text reports inside chat message limits
const MaxTextLength = 4000

// MaxDays is the longest report period, roughly a century
const MaxDays = 36500

const truncatedMarker = "\n...(truncated)"

// Report is the set of expenses recorded in the last Days days
type Report struct {
	Days     int                `json:"days"`
	Since    time.Time          `json:"since"`
	Expenses []*expense.Expense `json:"expenses"`
	Total    decimal.Decimal    `json:"total"`
}

// Build loads expenses created within days of now
func Build(ctx context.Context, db expense.DB, days int, now time.Time) (*Report, error) {
	if days <= 0 || days > MaxDays {
		return nil, fmt.Errorf("report period must be between 1 and %d days, got %d", MaxDays, days)
	}

	since := now.AddDate(0, 0, -days)
	expenses, err := db.Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("loading expenses since %s: %w", since.Format(time.RFC3339), err)
	}

	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Price)
	}

	return &Report{
		Days:     days,
		Since:    since,
		Expenses: expenses,
		Total:    total,
	}, nil
}

// Empty reports whether no expenses fall in the period
func (r *Report) Empty() bool {
	return len(r.Expenses) == 0
}

// Text renders the report as a chat message
func (r *Report) Text(currency string) string {
	if r.Empty() {
		return fmt.Sprintf("No expenses found for %d days.", r.Days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report for %d days:\n\n", r.Days)
	for _, e := range r.Expenses {
		fmt.Fprintf(&b, "• %s: %s — %s\n", e.CreatedAt.Format("02.01"), e.Name, expense.FormatMoney(e.Price, currency))
	}
	fmt.Fprintf(&b, "\nTotal: %s", expense.FormatMoney(r.Total, currency))

	return truncate(b.String(), MaxTextLength)
}

// truncate cuts text at the last line break that fits within limit bytes
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := strings.LastIndexByte(text[:limit], '\n')
	if cut <= 0 {
		cut = limit
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut] + truncatedMarker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// CSV renders the report as a spreadsheet with a closing TOTAL row
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := make([][]string, 0, len(r.Expenses)+2)
	records = append(records, []string{"Date", "Item", "Amount"})
	for _, e := range r.Expenses {
		records = append(records, []string{
			e.CreatedAt.Format("02.01.2006 15:04"),
			e.Name,
			e.Price.StringFixed(2),
		})
	}
	records = append(records, []string{"TOTAL", "", r.Total.StringFixed(2)})

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name used for CSV exports
func (r *Report) Filename() string {
	return fmt.Sprintf("report_%ddays.csv", r.Days)
}
