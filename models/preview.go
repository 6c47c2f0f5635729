package models

import (
	"context"
	"fmt"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
)

// Preview inputs arrive as raw form strings. In this display context bad
// values are recovered to zero and reported as warnings instead of aborting;
// the submission path re-validates strictly before persisting anything.

type PreviewPurchaseLine struct {
	ItemId int    `json:"item_id"`
	Weight string `json:"weight"`
	Crates string `json:"crates"`
	Boxes  string `json:"boxes"`
	Rate   string `json:"rate"`
}

type PreviewPurchaseInvoice struct {
	CommissionRate string                `json:"commission_rate"`
	Labour         string                `json:"labour"`
	TruckFreight   string                `json:"truck_freight"`
	CrateFreight   string                `json:"crate_freight"`
	PostExpenses   string                `json:"post_expenses"`
	DraftExpenses  string                `json:"draft_expenses"`
	Vatav          string                `json:"vatav"`
	OtherExpenses  string                `json:"other_expenses"`
	Advance        string                `json:"advance"`
	Lines          []PreviewPurchaseLine `json:"lines"`
}

type PurchaseTotalsPreview struct {
	LineAmounts      []decimal.Decimal `json:"line_amounts"`
	TotalSelling     decimal.Decimal   `json:"total_selling"`
	CommissionAmount decimal.Decimal   `json:"commission_amount"`
	TotalExpense     decimal.Decimal   `json:"total_expense"`
	NetAmount        decimal.Decimal   `json:"net_amount"`
	Warnings         []string          `json:"warnings,omitempty"`
}

func previewAmount(raw string, field string, line int, warnings *[]string) decimal.Decimal {
	d, ok := utils.ParseAmount(raw)
	if !ok {
		if line >= 0 {
			*warnings = append(*warnings, fmt.Sprintf("line %d: %s treated as 0", line, field))
		} else {
			*warnings = append(*warnings, fmt.Sprintf("%s treated as 0", field))
		}
	}
	return d
}

// PreviewPurchaseTotals recomputes invoice totals for display on every
// quantity/rate change. Item units come from the catalog; an unknown item
// falls back to weight and is flagged.
func PreviewPurchaseTotals(ctx context.Context, input *PreviewPurchaseInvoice) (*PurchaseTotalsPreview, error) {
	itemIds := make([]int, 0, len(input.Lines))
	for _, line := range input.Lines {
		itemIds = append(itemIds, line.ItemId)
	}
	units, err := GetItemUnits(config.GetDB().WithContext(ctx), itemIds)
	if err != nil {
		return nil, err
	}

	preview := PurchaseTotalsPreview{}
	totalSelling := decimal.Zero
	for i, line := range input.Lines {
		unit, ok := units[line.ItemId]
		if !ok {
			preview.Warnings = append(preview.Warnings, fmt.Sprintf("line %d: unknown item, billing by weight", i))
		}
		amount := LineAmount(unit,
			previewAmount(line.Weight, "weight", i, &preview.Warnings),
			previewAmount(line.Crates, "crates", i, &preview.Warnings),
			previewAmount(line.Boxes, "boxes", i, &preview.Warnings),
			previewAmount(line.Rate, "rate", i, &preview.Warnings),
		)
		preview.LineAmounts = append(preview.LineAmounts, amount)
		totalSelling = totalSelling.Add(amount)
	}
	preview.TotalSelling = utils.RoundMoney(totalSelling)

	commissionRate := ClampCommissionRate(previewAmount(input.CommissionRate, "commission_rate", -1, &preview.Warnings))
	preview.CommissionAmount = CalculateCommission(preview.TotalSelling, commissionRate)

	flatExpenses := previewAmount(input.Labour, "labour", -1, &preview.Warnings).
		Add(previewAmount(input.TruckFreight, "truck_freight", -1, &preview.Warnings)).
		Add(previewAmount(input.CrateFreight, "crate_freight", -1, &preview.Warnings)).
		Add(previewAmount(input.PostExpenses, "post_expenses", -1, &preview.Warnings)).
		Add(previewAmount(input.DraftExpenses, "draft_expenses", -1, &preview.Warnings)).
		Add(previewAmount(input.Vatav, "vatav", -1, &preview.Warnings)).
		Add(previewAmount(input.OtherExpenses, "other_expenses", -1, &preview.Warnings)).
		Add(previewAmount(input.Advance, "advance", -1, &preview.Warnings))

	preview.TotalExpense = utils.RoundMoney(preview.CommissionAmount.Add(flatExpenses))
	preview.NetAmount = preview.TotalSelling.Sub(preview.TotalExpense)
	return &preview, nil
}
