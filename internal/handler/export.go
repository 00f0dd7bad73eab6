package handler

import (
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/lanparty/internal/billing"
	"github.com/iliyamo/lanparty/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for c, v := range values {
		cell, _ := excelize.CoordinatesToCellName(c+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// exportSettlementsXLSX renders one summary row per guest and a second
// sheet with every breakdown line.
func exportSettlementsXLSX(ev *model.Event, costs []billing.GuestCost, stored []*model.Settlement) ([]byte, error) {
	agg := billing.NewAggregator(stored...)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const summary, lines = "Settlements", "Lines"
	index, err := f.NewSheet(summary)
	if err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lines); err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	writeRow(f, summary, 1, []any{"Guest ID", "Guest", "Status", "Variable symbol", "Nights",
		"Subtotal w/o tip", "Grand total", "Adjustments", "Deposit", "Final total", "Notes"})
	writeRow(f, lines, 1, []any{"Guest ID", "Guest", "Kind", "Key", "Label", "Qty", "Original", "Effective", "Overridden"})

	lineRow := 2
	for i, gc := range costs {
		st := agg.Settlement(gc.GuestID)
		if st == nil {
			st = model.NewDraftSettlement(ev.ID, gc.GuestID)
		}
		b := agg.Breakdown(gc)
		writeRow(f, summary, i+2, []any{
			gc.GuestID,
			gc.Name,
			string(st.Status),
			st.VariableSymbol,
			gc.NightsCount,
			money(b.SubtotalWithoutTip),
			money(b.GrandTotal),
			money(b.AdjustmentsTotal),
			money(b.Deposit),
			money(b.FinalTotal),
			st.Notes,
		})
		for _, l := range b.Lines {
			writeRow(f, lines, lineRow, []any{
				gc.GuestID, gc.Name, string(l.Kind), l.Key, l.Label, l.Qty,
				money(l.Original), money(l.Effective), l.Overridden,
			})
			lineRow++
		}
	}

	_ = f.SetColWidth(summary, "B", "B", 28)
	_ = f.SetColWidth(summary, "D", "D", 16)
	_ = f.SetColWidth(summary, "F", "J", 14)
	_ = f.SetColWidth(summary, "K", "K", 40)
	_ = f.SetColWidth(lines, "B", "B", 28)
	_ = f.SetColWidth(lines, "D", "E", 22)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(summary, "A1", "K1", style)
	_ = f.SetCellStyle(lines, "A1", "I1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
