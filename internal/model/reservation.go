package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HardwareReservation books a quantity of one hardware item for a
// guest over a number of nights.  TotalPrice is fixed when the
// reservation is written as quantity × nights × price per night;
// billing only ever sums it.
//
// Fields:
//
//	ID             – primary key identifier.
//	GuestID        – guest the hardware is reserved for.
//	HardwareItemID – reserved item.
//	EventID        – event the reservation belongs to.
//	Quantity       – number of units (≥ 1).
//	NightsCount    – number of nights (≥ 1).
//	TotalPrice     – price computed at write time.
//	CreatedAt      – creation timestamp.
type HardwareReservation struct {
	ID             uint64          `json:"id"`               // hardware_reservations.id
	GuestID        uint64          `json:"guest_id"`         // hardware_reservations.guest_id
	HardwareItemID uint64          `json:"hardware_item_id"` // hardware_reservations.hardware_item_id
	EventID        uint64          `json:"event_id"`         // hardware_reservations.event_id
	Quantity       int             `json:"quantity"`         // hardware_reservations.quantity
	NightsCount    int             `json:"nights_count"`     // hardware_reservations.nights_count
	TotalPrice     decimal.Decimal `json:"total_price"`      // hardware_reservations.total_price
	CreatedAt      time.Time       `json:"created_at"`       // hardware_reservations.created_at
}

// ReservationPrice computes the total price of a reservation at write time.
func ReservationPrice(quantity, nights int, pricePerNight decimal.Decimal) decimal.Decimal {
	return pricePerNight.Mul(decimal.NewFromInt(int64(quantity))).Mul(decimal.NewFromInt(int64(nights)))
}
