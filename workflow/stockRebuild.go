package workflow

import (
	"context"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/shopspring/decimal"
)

type stockAggregateRow struct {
	ItemId int
	Kgs    decimal.Decimal
	Crates decimal.Decimal
	Boxes  decimal.Decimal
}

// RebuildStockSummaries recomputes every stock summary from first principles:
// purchase lines credit stock, sales lines debit it. Used to repair drift
// after manual data fixes; normal posting keeps summaries incremental.
func RebuildStockSummaries(ctx context.Context) (int, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var purchased []stockAggregateRow
	if err := tx.Raw(`SELECT item_id, COALESCE(SUM(weight), 0) AS kgs,
			COALESCE(SUM(crates), 0) AS crates, COALESCE(SUM(boxes), 0) AS boxes
		FROM purchase_invoice_details GROUP BY item_id`).Scan(&purchased).Error; err != nil {
		config.LogError(logger, "stockRebuild.go", "RebuildStockSummaries", "SumPurchases", nil, err)
		return 0, err
	}
	var sold []stockAggregateRow
	if err := tx.Raw(`SELECT item_id, COALESCE(SUM(weight), 0) AS kgs,
			COALESCE(SUM(crates), 0) AS crates, COALESCE(SUM(boxes), 0) AS boxes
		FROM sales_invoice_details GROUP BY item_id`).Scan(&sold).Error; err != nil {
		config.LogError(logger, "stockRebuild.go", "RebuildStockSummaries", "SumSales", nil, err)
		return 0, err
	}

	net := make(map[int]stockAggregateRow)
	order := make([]int, 0, len(purchased))
	for _, row := range purchased {
		net[row.ItemId] = row
		order = append(order, row.ItemId)
	}
	for _, row := range sold {
		current, ok := net[row.ItemId]
		if !ok {
			current = stockAggregateRow{ItemId: row.ItemId}
			order = append(order, row.ItemId)
		}
		current.Kgs = current.Kgs.Sub(row.Kgs)
		current.Crates = current.Crates.Sub(row.Crates)
		current.Boxes = current.Boxes.Sub(row.Boxes)
		net[row.ItemId] = current
	}

	// Items with summaries but no surviving invoice lines reset to zero.
	var staleItemIds []int
	if err := tx.Model(&models.StockSummary{}).Pluck("item_id", &staleItemIds).Error; err != nil {
		return 0, err
	}
	for _, itemId := range staleItemIds {
		if _, ok := net[itemId]; !ok {
			net[itemId] = stockAggregateRow{ItemId: itemId}
			order = append(order, itemId)
		}
	}

	for _, itemId := range order {
		row := net[itemId]
		if _, err := models.FirstOrCreateStockSummary(tx, itemId); err != nil {
			config.LogError(logger, "stockRebuild.go", "RebuildStockSummaries", "FirstOrCreate", itemId, err)
			return 0, err
		}
		if err := tx.Model(&models.StockSummary{}).Where("item_id = ?", itemId).
			Updates(map[string]interface{}{
				"kgs":    row.Kgs,
				"crates": row.Crates,
				"boxes":  row.Boxes,
			}).Error; err != nil {
			config.LogError(logger, "stockRebuild.go", "RebuildStockSummaries", "Overwrite", row, err)
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return len(order), nil
}
