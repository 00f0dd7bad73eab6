package syncer

import (
	"github.com/shopspring/decimal"
)

// Record is a consumption record as known locally.  Optimistic records
// carry a temporary ID until the next reconciliation replaces them.
type Record struct {
	ID        string          `json:"id"`
	ServerID  uint64          `json:"server_id,omitempty"`
	GuestID   uint64          `json:"guest_id"`
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Beer      bool            `json:"beer"`
	Temporary bool            `json:"temporary"`
}

// Totals are the per-guest aggregates shown on the kiosk.
type Totals struct {
	Items int             `json:"total_items"`
	Beers int             `json:"total_beers"`
	Price decimal.Decimal `json:"total_price"`
}

// Add returns t with r's contribution added (sign 1) or removed (sign -1).
// Both optimistic increments and totals derived from a fetched snapshot go
// through here, so reconciling never makes totals jump.
func (t Totals) Add(r Record, sign int) Totals {
	qty := r.Quantity * sign
	t.Items += qty
	if r.Beer {
		t.Beers += qty
	}
	t.Price = t.Price.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	return t
}

// DeriveTotals sums records from scratch.
func DeriveTotals(records []Record) Totals {
	t := Totals{Price: decimal.Zero}
	for _, r := range records {
		t = t.Add(r, 1)
	}
	return t
}
