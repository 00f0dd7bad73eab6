package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tip is the voluntary amount a guest adds on top of their bill.  At
// most one tip exists per guest and event.  Percentage is only an
// annotation for display.
type Tip struct {
	EventID    uint64           `json:"event_id"`
	GuestID    uint64           `json:"guest_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
