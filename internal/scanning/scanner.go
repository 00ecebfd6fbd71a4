package scanning

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is one (name, price) line read from a receipt
type Item struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt reads a receipt image/PDF and returns its line items in receipt order
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) ([]Item, error)
	// Close closes the scanner and releases resources
	Close() error
}
