package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a consumable item (drink, snack) sold during an event.
// Category is free text entered by the organiser.
type Product struct {
	ID        uint64          `json:"id"`         // products.id
	EventID   uint64          `json:"event_id"`   // products.event_id
	Name      string          `json:"name"`       // products.name
	Category  string          `json:"category"`   // products.category
	Price     decimal.Decimal `json:"price"`      // products.price
	SortOrder int             `json:"sort_order"` // products.sort_order
	IsActive  bool            `json:"is_active"`  // products.is_active
}

// IsBeer reports whether the product category contains marker,
// ignoring case.  An empty marker never matches.
func (p Product) IsBeer(marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(p.Category), strings.ToLower(marker))
}
