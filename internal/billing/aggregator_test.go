package billing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func guestCost() GuestCost {
	return GuestCost{
		GuestID:     7,
		Name:        "Jan",
		NightsCount: 3,
		NightsTotal: NightsTotal(3, d("300")),
		Consumption: []ConsumptionLine{
			{ProductID: 1, Name: "Pivo", Qty: 4, UnitPrice: d("45"), TotalPrice: d("180")},
			{ProductID: 2, Name: "Chips", Qty: 2, UnitPrice: d("30"), TotalPrice: d("60")},
		},
		Hardware: []HardwareLine{
			{ReservationID: 11, Name: "Monitor", Qty: 1, TotalPrice: d("90"), Type: "monitor"},
		},
		Tip:     d("20"),
		Deposit: decimal.Zero,
	}
}

func TestItemValue(t *testing.T) {
	s := model.NewDraftSettlement(1, 7)
	s.Overrides[model.LineTip] = d("0")
	a := NewAggregator(s)

	for i := 0; i < 3; i++ {
		if got := a.ItemValue(7, model.LineAccommodation, d("900")); !got.Equal(d("900")) {
			t.Fatalf("ItemValue without override = %s, want 900", got)
		}
		if got := a.ItemValue(7, model.LineTip, d("20")); !got.Equal(d("0")) {
			t.Fatalf("ItemValue with override = %s, want 0", got)
		}
	}
	if got := a.ItemValue(99, model.LineTip, d("20")); !got.Equal(d("20")) {
		t.Errorf("ItemValue for guest without settlement = %s, want 20", got)
	}
	if len(s.Overrides) != 1 {
		t.Errorf("settlement overrides mutated: %v", s.Overrides)
	}
}

func TestOverriddenGrandTotal_Accommodation(t *testing.T) {
	g := guestCost()
	if !g.NightsTotal.Equal(d("900")) {
		t.Fatalf("NightsTotal = %s, want 900", g.NightsTotal)
	}

	preview := NewAggregator()
	// 900 + 180 + 60 + 90 + 20
	if got := preview.OverriddenGrandTotal(g); !got.Equal(d("1250")) {
		t.Errorf("preview grand total = %s, want 1250", got)
	}

	s := model.NewDraftSettlement(1, 7)
	s.Overrides[model.LineAccommodation] = d("750")
	a := NewAggregator(s)
	if got := a.OverriddenGrandTotal(g); !got.Equal(d("1100")) {
		t.Errorf("grand total with accommodation override = %s, want 1100", got)
	}
}

func TestOverridesFollowLineIdentity(t *testing.T) {
	g := guestCost()
	s := model.NewDraftSettlement(1, 7)
	s.Overrides[model.ConsumptionLineKey(2)] = d("0")
	a := NewAggregator(s)
	before := a.OverriddenGrandTotal(g)

	g.Consumption[0], g.Consumption[1] = g.Consumption[1], g.Consumption[0]
	if got := a.OverriddenGrandTotal(g); !got.Equal(before) {
		t.Errorf("reordering lines changed total: %s != %s", got, before)
	}
	if !before.Equal(d("1190")) {
		t.Errorf("grand total = %s, want 1190", before)
	}
}

func TestCustomItemsAndAdjustments(t *testing.T) {
	g := guestCost()
	s := model.NewDraftSettlement(1, 7)
	s.CustomItems = []model.CustomItem{{Label: "Extension cord", Amount: d("50")}}
	s.Adjustments = []model.Adjustment{
		{Label: "Helper discount", Amount: d("-200")},
		{Label: "Broken chair", Amount: d("100")},
	}
	a := NewAggregator(s)

	if got := a.OverriddenGrandTotal(g); !got.Equal(d("1300")) {
		t.Errorf("grand total = %s, want 1300", got)
	}
	if got := a.AdjustmentsTotal(7); !got.Equal(d("-100")) {
		t.Errorf("adjustments = %s, want -100", got)
	}
	if got := a.FinalTotal(g); !got.Equal(d("1200")) {
		t.Errorf("final = %s, want 1200", got)
	}
	if got := a.SubtotalWithoutTip(g); !got.Equal(d("1280")) {
		t.Errorf("subtotal without tip = %s, want 1280", got)
	}
}

func TestFinalTotal_DepositClamp(t *testing.T) {
	g := GuestCost{GuestID: 3, NightsTotal: d("500"), Tip: decimal.Zero, Deposit: d("800")}
	if got := NewAggregator().FinalTotal(g); !got.Equal(decimal.Zero) {
		t.Errorf("final = %s, want 0", got)
	}

	tests := []struct {
		name    string
		deposit string
		adjust  string
		want    string
	}{
		{"no deposit", "0", "0", "500"},
		{"partial deposit", "200", "0", "300"},
		{"deposit equals", "500", "0", "0"},
		{"discount below zero", "0", "-900", "0"},
		{"surcharge offsets deposit", "800", "400", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.Deposit = d(tt.deposit)
			s := model.NewDraftSettlement(1, 3)
			s.Adjustments = []model.Adjustment{{Label: "x", Amount: d(tt.adjust)}}
			got := NewAggregator(s).FinalTotal(g)
			if !got.Equal(d(tt.want)) {
				t.Errorf("final = %s, want %s", got, tt.want)
			}
			if got.IsNegative() {
				t.Errorf("final total negative: %s", got)
			}
		})
	}
}

func TestSolveTip(t *testing.T) {
	if got := SolveTip(d("1230"), d("1300")); !got.Equal(d("70")) {
		t.Fatalf("SolveTip = %s, want 70", got)
	}

	tests := []struct{ s, f string }{
		{"1230", "1300"},
		{"1230", "1230"},
		{"1230", "1000"},
		{"0", "15.50"},
		{"99.99", "100"},
	}
	for _, tt := range tests {
		s, f := d(tt.s), d(tt.f)
		tip := SolveTip(s, f)
		if tip.IsNegative() {
			t.Errorf("SolveTip(%s, %s) negative: %s", s, f, tip)
		}
		if want := decimal.Max(f, s); !s.Add(tip).Equal(want) {
			t.Errorf("S + tip = %s, want %s", s.Add(tip), want)
		}
	}
}

func TestSolveTip_RoundTripThroughOverride(t *testing.T) {
	g := GuestCost{GuestID: 5, NightsTotal: d("1230")}
	a := NewAggregator()
	tip := SolveTip(a.SubtotalWithoutTip(g), d("1300"))
	g.Tip = tip
	if got := a.FinalTotal(g); !got.Equal(d("1300")) {
		t.Errorf("final = %s, want 1300", got)
	}
}

func TestBreakdown(t *testing.T) {
	g := guestCost()
	g.Deposit = d("100")
	s := model.NewDraftSettlement(1, 7)
	s.Overrides[model.HardwareLineKey(11)] = d("0")
	s.CustomItems = []model.CustomItem{{Label: "Cable", Amount: d("10")}}
	s.Adjustments = []model.Adjustment{{Label: "Discount", Amount: d("-10")}}

	b := NewAggregator(s).Breakdown(g)
	wantKinds := []LineKind{KindAccommodation, KindConsumption, KindConsumption, KindHardware, KindTip, KindCustom, KindAdjustment}
	if len(b.Lines) != len(wantKinds) {
		t.Fatalf("lines = %d, want %d", len(b.Lines), len(wantKinds))
	}
	for i, k := range wantKinds {
		if b.Lines[i].Kind != k {
			t.Errorf("line %d kind = %s, want %s", i, b.Lines[i].Kind, k)
		}
	}
	hw := b.Lines[3]
	if !hw.Overridden || !hw.Effective.Equal(decimal.Zero) || !hw.Original.Equal(d("90")) {
		t.Errorf("hardware line = %+v", hw)
	}
	if !b.GrandTotal.Equal(d("1170")) {
		t.Errorf("grand = %s, want 1170", b.GrandTotal)
	}
	if !b.FinalTotal.Equal(d("1060")) {
		t.Errorf("final = %s, want 1060", b.FinalTotal)
	}
}
