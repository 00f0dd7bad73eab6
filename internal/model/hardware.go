package model

import "github.com/shopspring/decimal"

// HardwareItem is a rentable piece of equipment (PC, monitor,
// peripheral).  QuantityAvailable caps concurrent reservations.
type HardwareItem struct {
	ID                uint64          `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	PricePerNight     decimal.Decimal `json:"price_per_night"`
	QuantityAvailable int             `json:"quantity_available"`
}
