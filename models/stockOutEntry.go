package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockOutEntry records vendor-side stock movement. Entries are the
// aggregation source for purchase invoices; once billed they carry the
// invoice link and drop out of the unbilled pool.
type StockOutEntry struct {
	ID                int             `gorm:"primary_key" json:"id"`
	VendorId          int             `gorm:"index;not null" json:"vendor_id" binding:"required"`
	ItemId            int             `gorm:"index;not null" json:"item_id" binding:"required"`
	QuantityInKgs     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_in_kgs"`
	QuantityInCrates  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_in_crates"`
	QuantityInBoxes   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_in_boxes"`
	Rate              decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"rate"`
	MovementDate      time.Time       `gorm:"not null" json:"movement_date"`
	PurchaseInvoiceId *int            `gorm:"index;default:null" json:"purchase_invoice_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStockOutEntry struct {
	VendorId         int             `json:"vendor_id" binding:"required"`
	ItemId           int             `json:"item_id" binding:"required"`
	QuantityInKgs    decimal.Decimal `json:"quantity_in_kgs"`
	QuantityInCrates decimal.Decimal `json:"quantity_in_crates"`
	QuantityInBoxes  decimal.Decimal `json:"quantity_in_boxes"`
	Rate             decimal.Decimal `json:"rate"`
	MovementDate     time.Time       `json:"movement_date" binding:"required"`
}

func CreateStockOutEntry(ctx context.Context, input *NewStockOutEntry) (*StockOutEntry, error) {
	db := config.GetDB()
	if err := utils.ValidateResourceId[Vendor](ctx, input.VendorId); err != nil {
		return nil, utils.NewValidationError(-1, "vendor_id", "not found")
	}
	if _, err := GetItemUnit(db.WithContext(ctx), input.ItemId); err != nil {
		return nil, utils.NewValidationError(-1, "item_id", "not found")
	}
	entry := StockOutEntry{
		VendorId:         input.VendorId,
		ItemId:           input.ItemId,
		QuantityInKgs:    utils.SanitizeAmount(input.QuantityInKgs),
		QuantityInCrates: utils.SanitizeAmount(input.QuantityInCrates),
		QuantityInBoxes:  utils.SanitizeAmount(input.QuantityInBoxes),
		Rate:             utils.RoundMoney(utils.SanitizeAmount(input.Rate)),
		MovementDate:     input.MovementDate,
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetUnbilledStockOutEntries lists a vendor's entries not yet pulled into a
// purchase invoice.
func GetUnbilledStockOutEntries(ctx context.Context, vendorId int) ([]StockOutEntry, error) {
	db := config.GetDB()
	var entries []StockOutEntry
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND purchase_invoice_id IS NULL", vendorId).
		Order("movement_date, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func GetStockOutEntriesByIds(tx *gorm.DB, ids []int) ([]StockOutEntry, error) {
	var entries []StockOutEntry
	if err := tx.Where("id IN ?", ids).Order("movement_date, id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func LinkStockOutEntries(tx *gorm.DB, ids []int, purchaseInvoiceId int) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&StockOutEntry{}).Where("id IN ?", ids).
		Update("purchase_invoice_id", purchaseInvoiceId).Error
}

func UnlinkStockOutEntries(tx *gorm.DB, purchaseInvoiceId int) error {
	return tx.Model(&StockOutEntry{}).Where("purchase_invoice_id = ?", purchaseInvoiceId).
		Update("purchase_invoice_id", nil).Error
}

// AggregatedStockLine is one invoice line derived from a vendor's selected
// stock-out entries for a single item.
type AggregatedStockLine struct {
	ItemId int
	Weight decimal.Decimal
	Crates decimal.Decimal
	Boxes  decimal.Decimal
	Rate   decimal.Decimal
}

// AggregateStockOutEntries groups entries by item: quantities sum, the rate
// becomes the weight-weighted average. Aggregation always recomputes from
// scratch so re-toggling a selection cannot drift. A zero total weight yields
// rate 0 rather than dividing by zero.
func AggregateStockOutEntries(entries []StockOutEntry) []AggregatedStockLine {
	lines := make([]AggregatedStockLine, 0)
	index := make(map[int]int)
	weightedSum := make(map[int]decimal.Decimal)

	for _, entry := range entries {
		weight := utils.SanitizeAmount(entry.QuantityInKgs)
		rate := utils.SanitizeAmount(entry.Rate)

		i, ok := index[entry.ItemId]
		if !ok {
			i = len(lines)
			index[entry.ItemId] = i
			lines = append(lines, AggregatedStockLine{ItemId: entry.ItemId})
			weightedSum[entry.ItemId] = decimal.Zero
		}
		lines[i].Weight = lines[i].Weight.Add(weight)
		lines[i].Crates = lines[i].Crates.Add(utils.SanitizeAmount(entry.QuantityInCrates))
		lines[i].Boxes = lines[i].Boxes.Add(utils.SanitizeAmount(entry.QuantityInBoxes))
		weightedSum[entry.ItemId] = weightedSum[entry.ItemId].Add(rate.Mul(weight))
	}

	for i := range lines {
		if lines[i].Weight.IsZero() {
			lines[i].Rate = decimal.Zero
			continue
		}
		lines[i].Rate = utils.RoundMoney(weightedSum[lines[i].ItemId].Div(lines[i].Weight))
	}
	return lines
}
