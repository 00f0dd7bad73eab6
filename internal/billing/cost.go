// Package billing turns a guest's raw charges into itemised and final
// totals.  It is pure: every function works on values already fetched
// from storage and never performs I/O.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// ConsumptionLine groups all purchases of one product by one guest.
type ConsumptionLine struct {
	ProductID  uint64          `json:"product_id"`
	Name       string          `json:"name"`
	Qty        int             `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Key is the stable override key of the line.
func (l ConsumptionLine) Key() string { return model.ConsumptionLineKey(l.ProductID) }

// HardwareLine bills one hardware reservation.
type HardwareLine struct {
	ReservationID uint64          `json:"reservation_id"`
	Name          string          `json:"name"`
	Qty           int             `json:"qty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Type          string          `json:"type"`
}

// Key is the stable override key of the line.
func (l HardwareLine) Key() string { return model.HardwareLineKey(l.ReservationID) }

// GuestCost is the charge snapshot of one guest.  NightsTotal is
// supplied precomputed (nights × price per night) and treated as a
// line like any other.
type GuestCost struct {
	GuestID       uint64            `json:"guest_id"`
	Name          string            `json:"name"`
	NightsCount   int               `json:"nights_count"`
	NightsTotal   decimal.Decimal   `json:"nights_total"`
	Consumption   []ConsumptionLine `json:"consumption"`
	Hardware      []HardwareLine    `json:"hardware"`
	Tip           decimal.Decimal   `json:"tip"`
	TipPercentage *decimal.Decimal  `json:"tip_percentage,omitempty"`
	Deposit       decimal.Decimal   `json:"deposit"`
}

// NightsTotal is nights × price per night.
func NightsTotal(nights int, pricePerNight decimal.Decimal) decimal.Decimal {
	return pricePerNight.Mul(decimal.NewFromInt(int64(nights)))
}

// ConsumptionTotal sums the unmodified consumption lines.
func (g GuestCost) ConsumptionTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Consumption {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// HardwareTotal sums the unmodified hardware lines.
func (g GuestCost) HardwareTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Hardware {
		total = total.Add(l.TotalPrice)
	}
	return total
}
