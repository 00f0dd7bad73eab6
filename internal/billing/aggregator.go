package billing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// Aggregator computes guest totals, applying admin overrides,
// adjustments and custom items from settlements.  An Aggregator built
// without settlements produces the live preview.
type Aggregator struct {
	settlements map[uint64]*model.Settlement
}

// NewAggregator indexes settlements by guest.  The settlements are
// read, never modified.
func NewAggregator(settlements ...*model.Settlement) *Aggregator {
	a := &Aggregator{settlements: make(map[uint64]*model.Settlement, len(settlements))}
	for _, s := range settlements {
		if s != nil {
			a.settlements[s.GuestID] = s
		}
	}
	return a
}

// Settlement returns the settlement known for the guest, or nil.
func (a *Aggregator) Settlement(guestID uint64) *model.Settlement {
	return a.settlements[guestID]
}

// ItemValue returns the override stored for key, or original when
// there is none.
func (a *Aggregator) ItemValue(guestID uint64, key string, original decimal.Decimal) decimal.Decimal {
	s := a.settlements[guestID]
	if s == nil {
		return original
	}
	if v, ok := s.Overrides[key]; ok {
		return v
	}
	return original
}

// SubtotalWithoutTip is the grand total minus the tip line.
func (a *Aggregator) SubtotalWithoutTip(g GuestCost) decimal.Decimal {
	total := a.ItemValue(g.GuestID, model.LineAccommodation, g.NightsTotal)
	for _, l := range g.Consumption {
		total = total.Add(a.ItemValue(g.GuestID, l.Key(), l.TotalPrice))
	}
	for _, l := range g.Hardware {
		total = total.Add(a.ItemValue(g.GuestID, l.Key(), l.TotalPrice))
	}
	if s := a.settlements[g.GuestID]; s != nil {
		for _, item := range s.CustomItems {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// OverriddenGrandTotal sums accommodation, consumption, hardware and
// tip (each possibly overridden) plus every custom item.
func (a *Aggregator) OverriddenGrandTotal(g GuestCost) decimal.Decimal {
	return a.SubtotalWithoutTip(g).Add(a.ItemValue(g.GuestID, model.LineTip, g.Tip))
}

// AdjustmentsTotal is the signed sum of the guest's adjustments.
func (a *Aggregator) AdjustmentsTotal(guestID uint64) decimal.Decimal {
	total := decimal.Zero
	if s := a.settlements[guestID]; s != nil {
		for _, adj := range s.Adjustments {
			total = total.Add(adj.Amount)
		}
	}
	return total
}

// FinalTotal is the amount the guest pays: grand total plus
// adjustments minus deposit, never below zero.
func (a *Aggregator) FinalTotal(g GuestCost) decimal.Decimal {
	total := a.OverriddenGrandTotal(g).Add(a.AdjustmentsTotal(g.GuestID)).Sub(g.Deposit)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// SolveTip derives the tip that turns subtotal into the desired final
// amount typed by an operator.  The tip is never negative.
func SolveTip(subtotalWithoutTip, desiredFinal decimal.Decimal) decimal.Decimal {
	tip := desiredFinal.Sub(subtotalWithoutTip)
	if tip.IsNegative() {
		return decimal.Zero
	}
	return tip
}
