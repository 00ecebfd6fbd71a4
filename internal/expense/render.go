package expense

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EmptyList is shown in place of a list with no items.
const EmptyList = "The list is empty."

// FormatMoney renders an amount with two decimals and an optional currency suffix.
func FormatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + currency
}

// Render produces a numbered list of items, one per line as
// "n. name — price", followed by the total. Numbering starts at 1.
func Render(title string, items []LineItem, currency string) string {
	if len(items) == 0 {
		return EmptyList
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, item.Name, FormatMoney(item.Price, currency))
	}
	fmt.Fprintf(&b, "\nTotal: %s", FormatMoney(Total(items), currency))
	return b.String()
}
