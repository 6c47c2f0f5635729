package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesInvoice bills a retailer. BalanceAmount is floored at zero so an
// overpayment never surfaces as a negative due amount; CurrentStatus is a
// pure function of (paid, total) and is never set independently.
type SalesInvoice struct {
	ID            int             `gorm:"primary_key" json:"id"`
	InvoiceNumber string          `gorm:"size:100;not null;uniqueIndex" json:"invoice_number"`
	RetailerId    int             `gorm:"index;not null" json:"retailer_id"`
	InvoiceDate   time.Time       `gorm:"not null" json:"invoice_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"paid_amount"`
	BalanceAmount decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"balance_amount"`
	// ShortfallAmount is the part of the balance written over to the
	// retailer's shortfall ledger by a settle-short. The balance invariant
	// stays intact; the open receivable is BalanceAmount - ShortfallAmount.
	ShortfallAmount decimal.Decimal      `gorm:"type:decimal(20,2);default:0" json:"shortfall_amount"`
	SettledShortAt  *time.Time           `gorm:"default:null" json:"settled_short_at"`
	CurrentStatus   SalesInvoiceStatus   `gorm:"type:enum('Pending','Partial','Paid');not null;default:'Pending'" json:"current_status"`
	Details         []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId int             `gorm:"index;not null" json:"sales_invoice_id"`
	ItemId         int             `gorm:"index;not null" json:"item_id"`
	Unit           Unit            `gorm:"type:enum('KGS','CRATE','BOX');not null;default:'KGS'" json:"unit"`
	Weight         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	Crates         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"crates"`
	Boxes          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"boxes"`
	Rate           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"rate"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesInvoice struct {
	InvoiceNumber    string                  `json:"invoice_number" binding:"required"`
	RetailerId       int                     `json:"retailer_id" binding:"required"`
	InvoiceDate      time.Time               `json:"invoice_date" binding:"required"`
	PaidAmount       decimal.Decimal         `json:"paid_amount"`
	Details          []NewSalesInvoiceDetail `json:"details" binding:"required"`
	CrateTransaction *NewCrateTransaction    `json:"crate_transaction"`
}

type NewSalesInvoiceDetail struct {
	ItemId int             `json:"item_id" binding:"required"`
	Weight decimal.Decimal `json:"weight"`
	Crates decimal.Decimal `json:"crates"`
	Boxes  decimal.Decimal `json:"boxes"`
	Rate   decimal.Decimal `json:"rate"`
}

func (input *NewSalesInvoice) Validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[Retailer](ctx, input.RetailerId); err != nil {
		return utils.NewValidationError(-1, "retailer_id", "not found")
	}
	if len(input.Details) == 0 {
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

func (d *SalesInvoiceDetail) CalculateAmount(unit Unit) {
	d.Unit = unit
	d.Weight = utils.SanitizeAmount(d.Weight)
	d.Crates = utils.SanitizeAmount(d.Crates)
	d.Boxes = utils.SanitizeAmount(d.Boxes)
	d.Rate = utils.RoundMoney(utils.SanitizeAmount(d.Rate))
	d.Amount = LineAmount(unit, d.Weight, d.Crates, d.Boxes, d.Rate)
}

// CalculateTotals derives total, clamped balance and status from the lines
// and the paid amount.
func (si *SalesInvoice) CalculateTotals() {
	totalAmount := decimal.Zero
	for _, detail := range si.Details {
		totalAmount = totalAmount.Add(detail.Amount)
	}
	si.TotalAmount = utils.RoundMoney(totalAmount)
	si.PaidAmount = utils.RoundMoney(utils.SanitizeAmount(si.PaidAmount))
	si.BalanceAmount = utils.RoundMoney(SalesBalance(si.TotalAmount, si.PaidAmount))
	si.CurrentStatus = DeriveSalesInvoiceStatus(si.PaidAmount, si.TotalAmount)
}

// OpenReceivable is this invoice's current contribution to the retailer's
// udhaar balance.
func (si *SalesInvoice) OpenReceivable() decimal.Decimal {
	return si.BalanceAmount.Sub(si.ShortfallAmount)
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	db := config.GetDB()
	var invoice SalesInvoice
	err := db.WithContext(ctx).Preload("Details").First(&invoice, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func GetSalesInvoices(ctx context.Context, retailerId int) ([]SalesInvoice, error) {
	db := config.GetDB()
	var invoices []SalesInvoice
	query := db.WithContext(ctx).Preload("Details").Order("invoice_date DESC, id DESC")
	if retailerId > 0 {
		query = query.Where("retailer_id = ?", retailerId)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func LockSalesInvoice(tx *gorm.DB, id int) (*SalesInvoice, error) {
	var invoice SalesInvoice
	err := tx.Preload("Details").First(&invoice, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	err = tx.Exec("SELECT id FROM sales_invoices WHERE id = ? FOR UPDATE", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
