package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a single LAN party.  Every guest, product, seat and
// settlement belongs to exactly one event.  PricePerNight is the
// accommodation rate applied uniformly to all guests of the event.
//
// Fields:
//
//	ID                     – primary key identifier.
//	Name                   – display name of the event.
//	StartsAt / EndsAt      – event window; costs are preliminary until EndsAt.
//	PricePerNight          – nightly accommodation rate.
//	HardwarePricingEnabled – whether hardware reservations are billed.
type Event struct {
	ID                     uint64          `json:"id"`                       // events.id
	Name                   string          `json:"name"`                     // events.name
	StartsAt               time.Time       `json:"starts_at"`                // events.starts_at
	EndsAt                 time.Time       `json:"ends_at"`                  // events.ends_at
	PricePerNight          decimal.Decimal `json:"price_per_night"`          // events.price_per_night
	HardwarePricingEnabled bool            `json:"hardware_pricing_enabled"` // events.hardware_pricing_enabled
	CreatedAt              time.Time       `json:"created_at"`               // events.created_at
}

// IsPreliminary reports whether costs computed for the event may still
// change, i.e. the event has not ended yet at the given instant.
func (e Event) IsPreliminary(now time.Time) bool {
	return now.Before(e.EndsAt)
}
