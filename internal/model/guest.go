package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Guest is a registered attendee of one event and the unit costs are
// billed to.  Guests are created at registration and are read-only to
// the billing code.
type Guest struct {
	ID                  uint64           `json:"id"`
	EventID             uint64           `json:"event_id"`
	Name                string           `json:"name"`
	NightsCount         int              `json:"nights_count"`
	Deposit             *decimal.Decimal `json:"deposit,omitempty"`
	DietaryRestrictions *string          `json:"dietary_restrictions,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// DepositOrZero returns the paid deposit, treating a missing deposit as zero.
func (g Guest) DepositOrZero() decimal.Decimal {
	if g.Deposit == nil {
		return decimal.Zero
	}
	return *g.Deposit
}
