package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockSummary holds the current on-hand quantities per item, one row per
// item, in all three units the trade records.
type StockSummary struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ItemId    int             `gorm:"uniqueIndex;not null" json:"item_id"`
	Kgs       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"kgs"`
	Crates    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"crates"`
	Boxes     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"boxes"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FirstOrCreateStockSummary finds or creates the item's summary row under a
// FOR UPDATE lock so concurrent invoice writes to the same item serialize.
func FirstOrCreateStockSummary(tx *gorm.DB, itemId int) (*StockSummary, error) {
	stockSummary := StockSummary{
		ItemId: itemId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ?", itemId).
		FirstOrCreate(&stockSummary)
	if result.Error != nil {
		return nil, result.Error
	}
	return &stockSummary, nil
}

// AddStockQuantities applies a signed quantity delta to the locked summary row.
func AddStockQuantities(tx *gorm.DB, itemId int, kgs decimal.Decimal, crates decimal.Decimal, boxes decimal.Decimal) error {
	if _, err := FirstOrCreateStockSummary(tx, itemId); err != nil {
		return err
	}
	return tx.Model(&StockSummary{}).Where("item_id = ?", itemId).
		Updates(map[string]interface{}{
			"kgs":    gorm.Expr("kgs + ?", kgs),
			"crates": gorm.Expr("crates + ?", crates),
			"boxes":  gorm.Expr("boxes + ?", boxes),
		}).Error
}

// GetAvailableStock is the read-only snapshot collaborator forms consult to
// pre-validate quantities. The reconciler itself does not enforce sufficiency.
func GetAvailableStock(ctx context.Context, itemId int) (*StockSummary, error) {
	db := config.GetDB()
	var stockSummary StockSummary
	err := db.WithContext(ctx).Where("item_id = ?", itemId).First(&stockSummary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &StockSummary{ItemId: itemId}, nil
		}
		return nil, err
	}
	return &stockSummary, nil
}
