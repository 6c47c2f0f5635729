package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CrateTransaction is the side ledger tracking physical crate custody. At
// most one transaction is linked to an invoice; the reconciler keeps the link
// exact across create, edit and delete so no orphaned row survives.
type CrateTransaction struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	PartyType       PartyType            `gorm:"type:enum('Vendor','Retailer');not null" json:"party_type"`
	PartyId         int                  `gorm:"index;not null" json:"party_id"`
	TransactionType CrateTransactionType `gorm:"type:enum('Given','Received');not null" json:"transaction_type"`
	Quantity        decimal.Decimal      `gorm:"type:decimal(20,2);default:0" json:"quantity"`
	TransactionDate time.Time            `gorm:"not null" json:"transaction_date"`
	ReferenceType   CrateReferenceType   `gorm:"size:50;not null;index:idx_crate_ref" json:"reference_type"`
	ReferenceId     int                  `gorm:"not null;index:idx_crate_ref" json:"reference_id"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCrateTransaction struct {
	TransactionType CrateTransactionType `json:"transaction_type" binding:"required,oneof=Given Received"`
	Quantity        decimal.Decimal      `json:"quantity" binding:"required"`
	TransactionDate time.Time            `json:"transaction_date" binding:"required"`
}

// CrateCustodyEffect is the signed effect of a transaction on the party's
// crate balance: Given hands crates out (+), Received takes them back (-).
func CrateCustodyEffect(transactionType CrateTransactionType, quantity decimal.Decimal) decimal.Decimal {
	if transactionType == CrateTransactionTypeReceived {
		return quantity.Neg()
	}
	return quantity
}

func GetCrateTransactionByReference(tx *gorm.DB, referenceType CrateReferenceType, referenceId int) (*CrateTransaction, error) {
	var crateTransaction CrateTransaction
	err := tx.Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		First(&crateTransaction).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &crateTransaction, nil
}
