package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus tracks the payment lifecycle of a settlement.
type SettlementStatus string

const (
	SettlementDraft   SettlementStatus = "draft"
	SettlementPending SettlementStatus = "pending"
	SettlementPaid    SettlementStatus = "paid"
)

// Adjustment is a signed manual add-on to a guest's subtotal.  A
// negative amount is a discount, a positive one a surcharge.
type Adjustment struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// CustomItem is an extra charge line entered by an admin.  Amount is
// always positive.
type CustomItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Settlement is the per-guest, per-event billing record.  It is the
// only mutable, versioned entity the billing code works with.  A guest
// without a stored settlement has an implicit draft (see NewDraftSettlement).
//
// Overrides maps a line key (see LineKey) to a replacement value for
// that line.  Keys name the underlying item, never its position in a
// rendered list.
type Settlement struct {
	EventID        uint64                     `json:"event_id"`
	GuestID        uint64                     `json:"guest_id"`
	Status         SettlementStatus           `json:"status"`
	Adjustments    []Adjustment               `json:"adjustments"`
	CustomItems    []CustomItem               `json:"custom_items"`
	Overrides      map[string]decimal.Decimal `json:"overrides"`
	Notes          string                     `json:"notes"`
	VariableSymbol string                     `json:"variable_symbol"`
	QRGeneratedAt  *time.Time                 `json:"qr_generated_at"`
	PaidAt         *time.Time                 `json:"paid_at"`
	Version        int64                      `json:"version"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// NewDraftSettlement returns the implicit settlement of a guest that
// has never been touched by an admin.
func NewDraftSettlement(eventID, guestID uint64) *Settlement {
	return &Settlement{
		EventID:     eventID,
		GuestID:     guestID,
		Status:      SettlementDraft,
		Adjustments: []Adjustment{},
		CustomItems: []CustomItem{},
		Overrides:   map[string]decimal.Decimal{},
	}
}

// Clone returns a deep copy so callers can mutate lists and the
// override map without touching the original.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	out := *s
	out.Adjustments = append([]Adjustment{}, s.Adjustments...)
	out.CustomItems = append([]CustomItem{}, s.CustomItems...)
	out.Overrides = make(map[string]decimal.Decimal, len(s.Overrides))
	for k, v := range s.Overrides {
		out.Overrides[k] = v
	}
	if s.QRGeneratedAt != nil {
		t := *s.QRGeneratedAt
		out.QRGeneratedAt = &t
	}
	if s.PaidAt != nil {
		t := *s.PaidAt
		out.PaidAt = &t
	}
	return &out
}

// Line keys identify a single billable line of a guest's costs.
const (
	LineAccommodation = "accommodation"
	LineTip           = "tip"

	consumptionPrefix = "consumption:"
	hardwarePrefix    = "hardware:"
)

// ConsumptionLineKey is the key of the consumption line grouping all
// purchases of one product.
func ConsumptionLineKey(productID uint64) string {
	return consumptionPrefix + strconv.FormatUint(productID, 10)
}

// HardwareLineKey is the key of the line billing one hardware reservation.
func HardwareLineKey(reservationID uint64) string {
	return hardwarePrefix + strconv.FormatUint(reservationID, 10)
}

// ValidateLineKey checks that key is one of the known line key forms.
func ValidateLineKey(key string) error {
	switch key {
	case LineAccommodation, LineTip:
		return nil
	}
	for _, prefix := range []string{consumptionPrefix, hardwarePrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			if id, err := strconv.ParseUint(rest, 10, 64); err == nil && id > 0 {
				return nil
			}
			return fmt.Errorf("line key %q: invalid id", key)
		}
	}
	return fmt.Errorf("unknown line key %q", key)
}
