package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-tracker/internal/expense"
)

// stripCodeFence removes markdown code fences models like to wrap JSON in
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseItemsJSON parses a model response of the form [["name", price], ...].
// Entries that are not a pair, have an empty name or an unreadable or
// negative price are skipped.
func parseItemsJSON(text string) ([]Item, error) {
	text = stripCodeFence(text)

	// Find the JSON array boundaries - look for first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	text = text[startIdx : endIdx+1]

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 2 || entry[0] == nil || entry[1] == nil {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(entry[0]))
		if name == "" {
			continue
		}
		price, err := parsePrice(fmt.Sprint(entry[1]))
		if err != nil {
			slog.Debug("Skipping receipt line", "name", name, "error", err)
			continue
		}
		items = append(items, Item{Name: name, Price: price})
	}
	return items, nil
}

// parsePrice accepts numbers as well as strings like "1 299,00". Exponents,
// signs and amounts above expense.MaxPrice are rejected.
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.Join(strings.Fields(s), "")
	price, err := expense.ParsePrice(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price: %w", err)
	}
	return price, nil
}
