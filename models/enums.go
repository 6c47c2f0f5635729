package models

type Unit string

const (
	UnitKgs   Unit = "KGS"
	UnitCrate Unit = "CRATE"
	UnitBox   Unit = "BOX"
)

type PurchaseInvoiceStatus string

const (
	PurchaseInvoiceStatusUnpaid  PurchaseInvoiceStatus = "Unpaid"
	PurchaseInvoiceStatusPartial PurchaseInvoiceStatus = "Partial"
	PurchaseInvoiceStatusPaid    PurchaseInvoiceStatus = "Paid"
)

type SalesInvoiceStatus string

const (
	SalesInvoiceStatusPending SalesInvoiceStatus = "Pending"
	SalesInvoiceStatusPartial SalesInvoiceStatus = "Partial"
	SalesInvoiceStatusPaid    SalesInvoiceStatus = "Paid"
)

type CrateTransactionType string

const (
	CrateTransactionTypeGiven    CrateTransactionType = "Given"
	CrateTransactionTypeReceived CrateTransactionType = "Received"
)

type PartyType string

const (
	PartyTypeVendor   PartyType = "Vendor"
	PartyTypeRetailer PartyType = "Retailer"
)

type CrateReferenceType string

const (
	CrateReferenceTypePurchaseInvoice CrateReferenceType = "purchase_invoices"
	CrateReferenceTypeSalesInvoice    CrateReferenceType = "sales_invoices"
)
