package billing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// LineKind classifies a breakdown line.
type LineKind string

const (
	KindAccommodation LineKind = "accommodation"
	KindConsumption   LineKind = "consumption"
	KindHardware      LineKind = "hardware"
	KindTip           LineKind = "tip"
	KindCustom        LineKind = "custom"
	KindAdjustment    LineKind = "adjustment"
)

// Line is one row of an itemised bill.
type Line struct {
	Key        string          `json:"key,omitempty"`
	Kind       LineKind        `json:"kind"`
	Label      string          `json:"label"`
	Qty        int             `json:"qty,omitempty"`
	Original   decimal.Decimal `json:"original"`
	Effective  decimal.Decimal `json:"effective"`
	Overridden bool            `json:"overridden"`
}

// Breakdown is the itemised bill of one guest together with its totals.
type Breakdown struct {
	GuestID            uint64          `json:"guest_id"`
	Name               string          `json:"name"`
	Lines              []Line          `json:"lines"`
	SubtotalWithoutTip decimal.Decimal `json:"subtotal_without_tip"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
	AdjustmentsTotal   decimal.Decimal `json:"adjustments_total"`
	Deposit            decimal.Decimal `json:"deposit"`
	FinalTotal         decimal.Decimal `json:"final_total"`
}

// Breakdown itemises the guest's bill in display order: accommodation,
// consumption, hardware, tip, custom items, adjustments.
func (a *Aggregator) Breakdown(g GuestCost) Breakdown {
	b := Breakdown{GuestID: g.GuestID, Name: g.Name}
	add := func(key string, kind LineKind, label string, qty int, original decimal.Decimal) {
		eff := a.ItemValue(g.GuestID, key, original)
		b.Lines = append(b.Lines, Line{
			Key:        key,
			Kind:       kind,
			Label:      label,
			Qty:        qty,
			Original:   original,
			Effective:  eff,
			Overridden: a.hasOverride(g.GuestID, key),
		})
	}
	add(model.LineAccommodation, KindAccommodation, "Accommodation", g.NightsCount, g.NightsTotal)
	for _, l := range g.Consumption {
		add(l.Key(), KindConsumption, l.Name, l.Qty, l.TotalPrice)
	}
	for _, l := range g.Hardware {
		add(l.Key(), KindHardware, l.Name, l.Qty, l.TotalPrice)
	}
	add(model.LineTip, KindTip, "Tip", 0, g.Tip)
	if s := a.settlements[g.GuestID]; s != nil {
		for _, item := range s.CustomItems {
			b.Lines = append(b.Lines, Line{Kind: KindCustom, Label: item.Label, Original: item.Amount, Effective: item.Amount})
		}
		for _, adj := range s.Adjustments {
			b.Lines = append(b.Lines, Line{Kind: KindAdjustment, Label: adj.Label, Original: adj.Amount, Effective: adj.Amount})
		}
	}
	b.SubtotalWithoutTip = a.SubtotalWithoutTip(g)
	b.GrandTotal = a.OverriddenGrandTotal(g)
	b.AdjustmentsTotal = a.AdjustmentsTotal(g.GuestID)
	b.Deposit = g.Deposit
	b.FinalTotal = a.FinalTotal(g)
	return b
}

func (a *Aggregator) hasOverride(guestID uint64, key string) bool {
	s := a.settlements[guestID]
	if s == nil {
		return false
	}
	_, ok := s.Overrides[key]
	return ok
}
