package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseInvoice settles a vendor for goods sold on their behalf: the
// selling total less commission and the flat expense heads is the net amount
// payable to the vendor.
type PurchaseInvoice struct {
	ID               int                     `gorm:"primary_key" json:"id"`
	InvoiceNumber    string                  `gorm:"size:100;not null;uniqueIndex" json:"invoice_number"`
	VendorId         int                     `gorm:"index;not null" json:"vendor_id"`
	InvoiceDate      time.Time               `gorm:"not null" json:"invoice_date"`
	CommissionRate   decimal.Decimal         `gorm:"type:decimal(5,2);default:0" json:"commission_rate"`
	CommissionAmount decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"commission_amount"`
	Labour           decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"labour"`
	TruckFreight     decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"truck_freight"`
	CrateFreight     decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"crate_freight"`
	PostExpenses     decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"post_expenses"`
	DraftExpenses    decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"draft_expenses"`
	Vatav            decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"vatav"`
	OtherExpenses    decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"other_expenses"`
	Advance          decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"advance"`
	TotalSelling     decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"total_selling"`
	TotalExpense     decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"total_expense"`
	NetAmount        decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"net_amount"`
	PaidAmount       decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"paid_amount"`
	BalanceAmount    decimal.Decimal         `gorm:"type:decimal(20,2);default:0" json:"balance_amount"`
	CurrentStatus    PurchaseInvoiceStatus   `gorm:"type:enum('Unpaid','Partial','Paid');not null;default:'Unpaid'" json:"current_status"`
	Details          []PurchaseInvoiceDetail `gorm:"foreignKey:PurchaseInvoiceId" json:"details"`
	CreatedAt        time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	ItemId            int             `gorm:"index;not null" json:"item_id"`
	Unit              Unit            `gorm:"type:enum('KGS','CRATE','BOX');not null;default:'KGS'" json:"unit"`
	Weight            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Crates            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"crates"`
	Boxes             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"boxes"`
	Rate              decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"rate"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseInvoice struct {
	InvoiceNumber    string                     `json:"invoice_number" binding:"required"`
	VendorId         int                        `json:"vendor_id" binding:"required"`
	InvoiceDate      time.Time                  `json:"invoice_date" binding:"required"`
	CommissionRate   decimal.Decimal            `json:"commission_rate"`
	CommissionAmount decimal.Decimal            `json:"commission_amount"`
	Labour           decimal.Decimal            `json:"labour"`
	TruckFreight     decimal.Decimal            `json:"truck_freight"`
	CrateFreight     decimal.Decimal            `json:"crate_freight"`
	PostExpenses     decimal.Decimal            `json:"post_expenses"`
	DraftExpenses    decimal.Decimal            `json:"draft_expenses"`
	Vatav            decimal.Decimal            `json:"vatav"`
	OtherExpenses    decimal.Decimal            `json:"other_expenses"`
	Advance          decimal.Decimal            `json:"advance"`
	StockOutEntryIds []int                      `json:"stock_out_entry_ids"`
	Details          []NewPurchaseInvoiceDetail `json:"details"`
	CrateTransaction *NewCrateTransaction       `json:"crate_transaction"`
}

type NewPurchaseInvoiceDetail struct {
	ItemId int             `json:"item_id" binding:"required"`
	Weight decimal.Decimal `json:"weight"`
	Crates decimal.Decimal `json:"crates"`
	Boxes  decimal.Decimal `json:"boxes"`
	Rate   decimal.Decimal `json:"rate"`
}

// Validate rejects bad input before any calculation or persistence attempt,
// naming the offending line index.
func (input *NewPurchaseInvoice) Validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[Vendor](ctx, input.VendorId); err != nil {
		return utils.NewValidationError(-1, "vendor_id", "not found")
	}
	if len(input.StockOutEntryIds) == 0 && len(input.Details) == 0 {
		return utils.NewValidationError(-1, "details", "must not be empty")
	}
	for i, detail := range input.Details {
		if detail.ItemId <= 0 {
			return utils.NewValidationError(i, "item_id", "is required")
		}
		if err := utils.ValidateResourceId[Item](ctx, detail.ItemId); err != nil {
			return utils.NewValidationError(i, "item_id", "not found")
		}
	}
	return nil
}

// CalculateAmount derives the line amount from the item's configured unit.
// Negative quantities and rates are floored to zero first; recomputation
// with unchanged inputs is exact.
func (d *PurchaseInvoiceDetail) CalculateAmount(unit Unit) {
	d.Unit = unit
	d.Weight = utils.SanitizeAmount(d.Weight)
	d.Crates = utils.SanitizeAmount(d.Crates)
	d.Boxes = utils.SanitizeAmount(d.Boxes)
	d.Rate = utils.RoundMoney(utils.SanitizeAmount(d.Rate))
	d.Amount = LineAmount(unit, d.Weight, d.Crates, d.Boxes, d.Rate)
}

// CalculateTotals derives every money field of the invoice from its lines
// and expense heads. A negative net amount is a valid outcome (expenses
// exceeding revenue) and is surfaced as-is, never floored.
func (pi *PurchaseInvoice) CalculateTotals() {
	totalSelling := decimal.Zero
	for _, detail := range pi.Details {
		totalSelling = totalSelling.Add(detail.Amount)
	}
	pi.TotalSelling = utils.RoundMoney(totalSelling)

	pi.CommissionRate = ClampCommissionRate(pi.CommissionRate)
	if pi.CommissionRate.IsPositive() {
		pi.CommissionAmount = CalculateCommission(pi.TotalSelling, pi.CommissionRate)
	} else {
		pi.CommissionAmount = utils.RoundMoney(utils.SanitizeAmount(pi.CommissionAmount))
	}

	flatExpenses := utils.SanitizeAmount(pi.Labour).
		Add(utils.SanitizeAmount(pi.TruckFreight)).
		Add(utils.SanitizeAmount(pi.CrateFreight)).
		Add(utils.SanitizeAmount(pi.PostExpenses)).
		Add(utils.SanitizeAmount(pi.DraftExpenses)).
		Add(utils.SanitizeAmount(pi.Vatav)).
		Add(utils.SanitizeAmount(pi.OtherExpenses)).
		Add(utils.SanitizeAmount(pi.Advance))

	pi.TotalExpense = utils.RoundMoney(pi.CommissionAmount.Add(flatExpenses))
	pi.NetAmount = pi.TotalSelling.Sub(pi.TotalExpense)
	pi.BalanceAmount = utils.RoundMoney(pi.NetAmount.Sub(pi.PaidAmount))
	pi.CurrentStatus = DerivePurchaseInvoiceStatus(pi.PaidAmount, pi.NetAmount)
}

func GetPurchaseInvoice(ctx context.Context, id int) (*PurchaseInvoice, error) {
	db := config.GetDB()
	var invoice PurchaseInvoice
	err := db.WithContext(ctx).Preload("Details").First(&invoice, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func GetPurchaseInvoices(ctx context.Context, vendorId int) ([]PurchaseInvoice, error) {
	db := config.GetDB()
	var invoices []PurchaseInvoice
	query := db.WithContext(ctx).Preload("Details").Order("invoice_date DESC, id DESC")
	if vendorId > 0 {
		query = query.Where("vendor_id = ?", vendorId)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func LockPurchaseInvoice(tx *gorm.DB, id int) (*PurchaseInvoice, error) {
	var invoice PurchaseInvoice
	err := tx.Preload("Details").First(&invoice, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	// Re-read the header row FOR UPDATE; Preload cannot lock the parent.
	err = tx.Exec("SELECT id FROM purchase_invoices WHERE id = ? FOR UPDATE", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
