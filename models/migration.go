package models

import (
	"log"

	"github.com/agrifocus/mandi_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Item{}, &Vendor{}, &Retailer{},
		&StockSummary{}, &StockOutEntry{},
		&PurchaseInvoice{}, &PurchaseInvoiceDetail{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&CrateTransaction{},
		&VendorPayment{}, &RetailerPayment{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
