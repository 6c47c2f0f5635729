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

// Retailer carries two receivable ledgers: UdhaarBalance is the open credit
// owed by the retailer; ShortfallBalance is the deficit left by invoices the
// business settled short. Both mutate only through lifecycle events.
type Retailer struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone            string          `gorm:"size:30;default:null" json:"phone"`
	UdhaarBalance    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"udhaar_balance"`
	ShortfallBalance decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"shortfall_balance"`
	CrateBalance     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"crate_balance"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRetailer struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

func CreateRetailer(ctx context.Context, input *NewRetailer) (*Retailer, error) {
	db := config.GetDB()
	retailer := Retailer{
		Name:  input.Name,
		Phone: input.Phone,
	}
	if err := db.WithContext(ctx).Create(&retailer).Error; err != nil {
		return nil, err
	}
	return &retailer, nil
}

func GetRetailer(ctx context.Context, id int) (*Retailer, error) {
	db := config.GetDB()
	var retailer Retailer
	if err := db.WithContext(ctx).First(&retailer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &retailer, nil
}

func GetRetailers(ctx context.Context, search string) ([]Retailer, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Order("name")
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%").Limit(config.SearchLimit)
	}
	var retailers []Retailer
	if err := query.Find(&retailers).Error; err != nil {
		return nil, err
	}
	return retailers, nil
}

func LockRetailer(tx *gorm.DB, id int) (*Retailer, error) {
	var retailer Retailer
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&retailer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &retailer, nil
}

func AddRetailerUdhaarBalance(tx *gorm.DB, id int, delta decimal.Decimal) error {
	return tx.Model(&Retailer{}).Where("id = ?", id).
		Update("udhaar_balance", gorm.Expr("udhaar_balance + ?", utils.RoundMoney(delta))).Error
}

func AddRetailerShortfallBalance(tx *gorm.DB, id int, delta decimal.Decimal) error {
	return tx.Model(&Retailer{}).Where("id = ?", id).
		Update("shortfall_balance", gorm.Expr("shortfall_balance + ?", utils.RoundMoney(delta))).Error
}

func AddRetailerCrateBalance(tx *gorm.DB, id int, delta decimal.Decimal) error {
	return tx.Model(&Retailer{}).Where("id = ?", id).
		Update("crate_balance", gorm.Expr("crate_balance + ?", delta)).Error
}
