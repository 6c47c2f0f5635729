package workflow

import (
	"context"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/utils"
	"gorm.io/gorm"
)

const handlerSalesInvoice = "SalesInvoice"

func buildSalesDetails(tx *gorm.DB, input *models.NewSalesInvoice) ([]models.SalesInvoiceDetail, error) {
	details := make([]models.SalesInvoiceDetail, 0, len(input.Details))
	itemIds := make([]int, 0, len(input.Details))
	for _, d := range input.Details {
		details = append(details, models.SalesInvoiceDetail{
			ItemId: d.ItemId,
			Weight: d.Weight,
			Crates: d.Crates,
			Boxes:  d.Boxes,
			Rate:   d.Rate,
		})
		itemIds = append(itemIds, d.ItemId)
	}
	units, err := models.GetItemUnits(tx, itemIds)
	if err != nil {
		return nil, err
	}
	for i := range details {
		unit, ok := units[details[i].ItemId]
		if !ok {
			return nil, utils.NewValidationError(i, "item_id", "not found")
		}
		details[i].CalculateAmount(unit)
	}
	return details, nil
}

func assembleSalesInvoice(input *models.NewSalesInvoice, details []models.SalesInvoiceDetail) *models.SalesInvoice {
	invoice := models.SalesInvoice{
		InvoiceNumber: input.InvoiceNumber,
		RetailerId:    input.RetailerId,
		InvoiceDate:   input.InvoiceDate,
		PaidAmount:    input.PaidAmount,
		Details:       details,
	}
	invoice.CalculateTotals()
	return &invoice
}

// BuildSalesIntent is the invoice's current contribution to the ledgers: the
// open receivable on the retailer's udhaar, the settled-short remainder on
// the shortfall ledger, and the sold quantities debited from stock.
func BuildSalesIntent(invoice *models.SalesInvoice) WriteIntent {
	intent := WriteIntent{
		BalanceDeltas: []BalanceDelta{{
			Field:   BalanceFieldRetailerUdhaar,
			PartyId: invoice.RetailerId,
			Amount:  invoice.OpenReceivable(),
		}},
	}
	if !invoice.ShortfallAmount.IsZero() {
		intent.BalanceDeltas = append(intent.BalanceDeltas, BalanceDelta{
			Field:   BalanceFieldRetailerShortfall,
			PartyId: invoice.RetailerId,
			Amount:  invoice.ShortfallAmount,
		})
	}
	for _, detail := range invoice.Details {
		intent.StockDeltas = append(intent.StockDeltas, StockDelta{
			ItemId: detail.ItemId,
			Kgs:    detail.Weight.Neg(),
			Crates: detail.Crates.Neg(),
			Boxes:  detail.Boxes.Neg(),
		})
	}
	return intent
}

func CreateSalesInvoice(ctx context.Context, input *models.NewSalesInvoice, idempotencyKey string) (invoice *models.SalesInvoice, retErr error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	// Marking a failed key uses a fresh connection, so it has to run after
	// the rollback releases the key row's lock.
	keyStarted := false
	if idempotencyKey != "" {
		defer func() {
			if keyStarted && retErr != nil {
				_ = MarkIdempotencyFailed(db, handlerSalesInvoice, idempotencyKey, retErr)
			}
		}()
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, input.RetailerId); err != nil {
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, input.RetailerId)

	if idempotencyKey != "" {
		skip, err := BeginIdempotency(tx, handlerSalesInvoice, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, ErrDuplicateSubmission
		}
		keyStarted = true
	}

	details, err := buildSalesDetails(tx, input)
	if err != nil {
		return nil, err
	}
	invoice = assembleSalesInvoice(input, details)

	if err := tx.Create(invoice).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "CreateSalesInvoice", "CreateInvoice", invoice, err)
		return nil, err
	}

	intent := BuildSalesIntent(invoice)
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypeSalesInvoice, invoice.ID,
		models.PartyTypeRetailer, invoice.RetailerId, nil, input.CrateTransaction)
	intent.CrateOp = crateOp
	intent.BalanceDeltas = append(intent.BalanceDeltas, crateDeltas...)

	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if err := MarkIdempotencySucceeded(tx, handlerSalesInvoice, idempotencyKey); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return invoice, nil
}

func UpdateSalesInvoice(ctx context.Context, id int, input *models.NewSalesInvoice) (*models.SalesInvoice, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	oldInvoice, err := models.LockSalesInvoice(tx, id)
	if err != nil {
		return nil, err
	}
	if oldInvoice.SettledShortAt != nil {
		return nil, utils.NewValidationError(-1, "id", "invoice was settled short and can no longer be edited")
	}

	lockIds := []int{oldInvoice.RetailerId}
	if input.RetailerId != oldInvoice.RetailerId {
		lockIds = utils.MergeIntSlices(lockIds, []int{input.RetailerId})
		if lockIds[0] > lockIds[1] {
			lockIds[0], lockIds[1] = lockIds[1], lockIds[0]
		}
	}
	for _, retailerId := range lockIds {
		if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, retailerId); err != nil {
			return nil, err
		}
		defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, retailerId)
	}

	details, err := buildSalesDetails(tx, input)
	if err != nil {
		return nil, err
	}
	newInvoice := assembleSalesInvoice(input, details)
	newInvoice.ID = id
	// Receipts recorded so far stay attached; totals re-derive around them.
	newInvoice.PaidAmount = oldInvoice.PaidAmount
	newInvoice.CalculateTotals()

	delta := MergeIntents(BuildSalesIntent(newInvoice), BuildSalesIntent(oldInvoice).Reversed())

	oldCrate, err := models.GetCrateTransactionByReference(tx, models.CrateReferenceTypeSalesInvoice, id)
	if err != nil {
		return nil, err
	}
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypeSalesInvoice, id,
		models.PartyTypeRetailer, newInvoice.RetailerId, oldCrate, input.CrateTransaction)
	delta.CrateOp = crateOp
	delta.BalanceDeltas = append(delta.BalanceDeltas, crateDeltas...)

	if err := tx.Where("sales_invoice_id = ?", id).Delete(&models.SalesInvoiceDetail{}).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "UpdateSalesInvoice", "DeleteOldDetails", id, err)
		return nil, err
	}
	for i := range newInvoice.Details {
		newInvoice.Details[i].SalesInvoiceId = id
	}
	if err := tx.Create(&newInvoice.Details).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "UpdateSalesInvoice", "CreateNewDetails", newInvoice.Details, err)
		return nil, err
	}
	if err := tx.Model(&models.SalesInvoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"invoice_number": newInvoice.InvoiceNumber,
		"retailer_id":    newInvoice.RetailerId,
		"invoice_date":   newInvoice.InvoiceDate,
		"total_amount":   newInvoice.TotalAmount,
		"paid_amount":    newInvoice.PaidAmount,
		"balance_amount": newInvoice.BalanceAmount,
		"current_status": newInvoice.CurrentStatus,
	}).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "UpdateSalesInvoice", "UpdateInvoice", newInvoice, err)
		return nil, err
	}

	if err := ApplyWriteIntent(tx, logger, delta); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return newInvoice, nil
}

func DeleteSalesInvoice(ctx context.Context, id int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	invoice, err := models.LockSalesInvoice(tx, id)
	if err != nil {
		return err
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId); err != nil {
		return err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId)

	intent := BuildSalesIntent(invoice).Reversed()

	oldCrate, err := models.GetCrateTransactionByReference(tx, models.CrateReferenceTypeSalesInvoice, id)
	if err != nil {
		return err
	}
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypeSalesInvoice, id,
		models.PartyTypeRetailer, invoice.RetailerId, oldCrate, nil)
	intent.CrateOp = crateOp
	intent.BalanceDeltas = append(intent.BalanceDeltas, crateDeltas...)

	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return err
	}
	if err := tx.Where("sales_invoice_id = ?", id).Delete(&models.RetailerPayment{}).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "DeleteSalesInvoice", "DeletePayments", id, err)
		return err
	}
	if err := tx.Where("sales_invoice_id = ?", id).Delete(&models.SalesInvoiceDetail{}).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "DeleteSalesInvoice", "DeleteDetails", id, err)
		return err
	}
	if err := tx.Delete(&models.SalesInvoice{}, id).Error; err != nil {
		config.LogError(logger, "salesInvoiceWorkflow.go", "DeleteSalesInvoice", "DeleteInvoice", id, err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	InvalidateBalanceSummary()
	return nil
}
