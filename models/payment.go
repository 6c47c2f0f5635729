package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorPayment pays down a purchase invoice's balance and the vendor's
// running payable.
type VendorPayment struct {
	ID                int             `gorm:"primary_key" json:"id"`
	VendorId          int             `gorm:"index;not null" json:"vendor_id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaymentDate       time.Time       `gorm:"not null" json:"payment_date"`
	Notes             string          `gorm:"size:255;default:null" json:"notes"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendorPayment struct {
	PurchaseInvoiceId int             `json:"purchase_invoice_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate       time.Time       `json:"payment_date" binding:"required"`
	Notes             string          `json:"notes"`
}

// RetailerPayment settles a retailer's sales invoice; overpayment is
// accepted and the invoice balance clamps at zero.
type RetailerPayment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	RetailerId     int             `gorm:"index;not null" json:"retailer_id"`
	SalesInvoiceId int             `gorm:"index;not null" json:"sales_invoice_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	// AppliedAmount is the part of Amount that actually reduced the udhaar
	// balance; an overpayment applies only up to the open balance. It is
	// re-derived by replaying the surviving payments whenever one is removed.
	AppliedAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"applied_amount"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Notes         string          `gorm:"size:255;default:null" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRetailerPayment struct {
	SalesInvoiceId int             `json:"sales_invoice_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate    time.Time       `json:"payment_date" binding:"required"`
	Notes          string          `json:"notes"`
}

func GetVendorPayment(ctx context.Context, id int) (*VendorPayment, error) {
	db := config.GetDB()
	var payment VendorPayment
	if err := db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func GetRetailerPayment(ctx context.Context, id int) (*RetailerPayment, error) {
	db := config.GetDB()
	var payment RetailerPayment
	if err := db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &payment, nil
}
