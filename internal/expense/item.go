package expense

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrFormat is returned when free text cannot be read as "name amount".
var ErrFormat = errors.New("invalid line item format")

// plainAmount is the only accepted amount shape: digits with an optional
// comma or period decimal part, no sign or exponent.
var plainAmount = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// MaxPrice bounds a single line item's price.
var MaxPrice = decimal.New(1, 12)

// LineItem is one (name, price) expense entry.
type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Expense is a committed line item as stored in the database
type Expense struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewLineItem validates name and price and returns the item with the name
// trimmed and the price rounded to cents.
func NewLineItem(name string, price decimal.Decimal) (LineItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LineItem{}, fmt.Errorf("%w: empty name", ErrFormat)
	}
	if price.IsNegative() {
		return LineItem{}, fmt.Errorf("%w: negative price %s", ErrFormat, price)
	}
	if price.GreaterThan(MaxPrice) {
		return LineItem{}, fmt.Errorf("%w: price %s exceeds %s", ErrFormat, price, MaxPrice)
	}
	return LineItem{Name: name, Price: price.Round(2)}, nil
}

// ParseLineItem reads "name amount" text. The amount is the last
// whitespace-separated token and may use a comma or a period as the decimal
// separator. Manual entry and line replacement both go through here.
func ParseLineItem(text string) (LineItem, error) {
	text = strings.TrimSpace(text)
	idx := strings.LastIndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return LineItem{}, fmt.Errorf("%w: expected name and amount in %q", ErrFormat, text)
	}

	price, err := ParsePrice(text[idx:])
	if err != nil {
		return LineItem{}, err
	}
	return NewLineItem(text[:idx], price)
}

// ParsePrice parses a plain non-negative amount up to MaxPrice, accepting
// "3,50" and "3.50".
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !plainAmount.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrFormat, s)
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrFormat, s)
	}
	if price.GreaterThan(MaxPrice) {
		return decimal.Zero, fmt.Errorf("%w: amount %q exceeds %s", ErrFormat, s, MaxPrice)
	}
	return price.Round(2), nil
}

// LooksLikeEntry reports whether idle chat text should be treated as a quick
// add: a name with at least one non-digit character followed by a plain amount.
func LooksLikeEntry(text string) bool {
	text = strings.TrimSpace(text)
	idx := strings.LastIndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return false
	}
	if !plainAmount.MatchString(strings.TrimSpace(text[idx:])) {
		return false
	}
	return strings.ContainsFunc(text[:idx], func(r rune) bool {
		return !unicode.IsDigit(r) && !unicode.IsSpace(r)
	})
}

// String formats the item in the same "name amount" form ParseLineItem reads.
func (i LineItem) String() string {
	return i.Name + " " + i.Price.StringFixed(2)
}

// Total sums the prices of items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}

// toCents converts a price to integer cents for SQL storage.
func toCents(d decimal.Decimal) (int64, error) {
	cents := d.Shift(2).Round(0).BigInt()
	if !cents.IsInt64() {
		return 0, fmt.Errorf("price %s does not fit in cents", d)
	}
	return cents.Int64(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
