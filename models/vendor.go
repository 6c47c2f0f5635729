package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Vendor balances are running ledgers; they are mutated only through the
// invoice/payment lifecycle in workflow, never set directly from the API.
type Vendor struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone        string          `gorm:"size:30;default:null" json:"phone"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"balance"`
	CrateBalance decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"crate_balance"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	db := config.GetDB()
	vendor := Vendor{
		Name:    input.Name,
		Phone:   input.Phone,
		Balance: decimal.Zero,
	}
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	db := config.GetDB()
	var vendor Vendor
	if err := db.WithContext(ctx).First(&vendor, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &vendor, nil
}

func GetVendors(ctx context.Context, search string) ([]Vendor, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Order("name")
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%").Limit(config.SearchLimit)
	}
	var vendors []Vendor
	if err := query.Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

// LockVendor takes a row lock so concurrent invoice writes against the same
// vendor serialize their read-modify-write of the balance.
func LockVendor(tx *gorm.DB, id int) (*Vendor, error) {
	var vendor Vendor
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&vendor, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &vendor, nil
}

func AddVendorBalance(tx *gorm.DB, id int, delta decimal.Decimal) error {
	return tx.Model(&Vendor{}).Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", utils.RoundMoney(delta))).Error
}

func AddVendorCrateBalance(tx *gorm.DB, id int, delta decimal.Decimal) error {
	return tx.Model(&Vendor{}).Where("id = ?", id).
		Update("crate_balance", gorm.Expr("crate_balance + ?", delta)).Error
}
