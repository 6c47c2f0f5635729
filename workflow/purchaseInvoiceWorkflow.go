package workflow

import (
	"context"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/utils"
	"gorm.io/gorm"
)

const handlerPurchaseInvoice = "PurchaseInvoice"

// buildPurchaseDetails turns the request into calculated invoice lines.
// When stock-out entries are selected they replace any manually entered
// lines and are re-aggregated from scratch, so re-toggling a selection
// cannot accumulate drift.
func buildPurchaseDetails(tx *gorm.DB, input *models.NewPurchaseInvoice, editingInvoiceId int) ([]models.PurchaseInvoiceDetail, []int, error) {

	var details []models.PurchaseInvoiceDetail
	var entryIds []int

	if len(input.StockOutEntryIds) > 0 {
		entries, err := models.GetStockOutEntriesByIds(tx, input.StockOutEntryIds)
		if err != nil {
			return nil, nil, err
		}
		if len(entries) != len(utils.MergeIntSlices(input.StockOutEntryIds, nil)) {
			return nil, nil, utils.NewValidationError(-1, "stock_out_entry_ids", "not found")
		}
		for _, entry := range entries {
			if entry.VendorId != input.VendorId {
				return nil, nil, utils.NewValidationError(-1, "stock_out_entry_ids", "do not belong to this vendor")
			}
			if entry.PurchaseInvoiceId != nil && *entry.PurchaseInvoiceId != editingInvoiceId {
				return nil, nil, utils.NewValidationError(-1, "stock_out_entry_ids", "already billed on another invoice")
			}
			entryIds = append(entryIds, entry.ID)
		}
		for _, line := range models.AggregateStockOutEntries(entries) {
			details = append(details, models.PurchaseInvoiceDetail{
				ItemId: line.ItemId,
				Weight: line.Weight,
				Crates: line.Crates,
				Boxes:  line.Boxes,
				Rate:   line.Rate,
			})
		}
	} else {
		for _, d := range input.Details {
			details = append(details, models.PurchaseInvoiceDetail{
				ItemId: d.ItemId,
				Weight: d.Weight,
				Crates: d.Crates,
				Boxes:  d.Boxes,
				Rate:   d.Rate,
			})
		}
	}

	itemIds := make([]int, 0, len(details))
	for _, d := range details {
		itemIds = append(itemIds, d.ItemId)
	}
	units, err := models.GetItemUnits(tx, itemIds)
	if err != nil {
		return nil, nil, err
	}
	for i := range details {
		unit, ok := units[details[i].ItemId]
		if !ok {
			return nil, nil, utils.NewValidationError(i, "item_id", "not found")
		}
		details[i].CalculateAmount(unit)
	}
	return details, entryIds, nil
}

func assemblePurchaseInvoice(input *models.NewPurchaseInvoice, details []models.PurchaseInvoiceDetail) *models.PurchaseInvoice {
	invoice := models.PurchaseInvoice{
		InvoiceNumber:    input.InvoiceNumber,
		VendorId:         input.VendorId,
		InvoiceDate:      input.InvoiceDate,
		CommissionRate:   input.CommissionRate,
		CommissionAmount: input.CommissionAmount,
		Labour:           input.Labour,
		TruckFreight:     input.TruckFreight,
		CrateFreight:     input.CrateFreight,
		PostExpenses:     input.PostExpenses,
		DraftExpenses:    input.DraftExpenses,
		Vatav:            input.Vatav,
		OtherExpenses:    input.OtherExpenses,
		Advance:          input.Advance,
		Details:          details,
	}
	invoice.CalculateTotals()
	return &invoice
}

// BuildPurchaseIntent is the invoice's current contribution to the ledgers:
// the open balance owed to the vendor, plus the received stock quantities.
// Reversing it undoes exactly what the invoice has applied so far.
func BuildPurchaseIntent(invoice *models.PurchaseInvoice) WriteIntent {
	intent := WriteIntent{
		BalanceDeltas: []BalanceDelta{{
			Field:   BalanceFieldVendorPayable,
			PartyId: invoice.VendorId,
			Amount:  invoice.BalanceAmount,
		}},
	}
	for _, detail := range invoice.Details {
		intent.StockDeltas = append(intent.StockDeltas, StockDelta{
			ItemId: detail.ItemId,
			Kgs:    detail.Weight,
			Crates: detail.Crates,
			Boxes:  detail.Boxes,
		})
	}
	return intent
}

func CreatePurchaseInvoice(ctx context.Context, input *models.NewPurchaseInvoice, idempotencyKey string) (invoice *models.PurchaseInvoice, retErr error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	// Marking a failed key uses a fresh connection, so it has to run after
	// the rollback releases the key row's lock. The STARTED row usually rolls
	// back with the tx; when a stale key was reused it pre-exists, and the
	// failure lands on it.
	keyStarted := false
	if idempotencyKey != "" {
		defer func() {
			if keyStarted && retErr != nil {
				_ = MarkIdempotencyFailed(db, handlerPurchaseInvoice, idempotencyKey, retErr)
			}
		}()
	}

	tx := db.Begin()
	// Always rollback on early-return or panic to avoid leaking DB locks.
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := AcquirePartyPostingLock(tx, models.PartyTypeVendor, input.VendorId); err != nil {
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeVendor, input.VendorId)

	if idempotencyKey != "" {
		skip, err := BeginIdempotency(tx, handlerPurchaseInvoice, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, ErrDuplicateSubmission
		}
		keyStarted = true
	}

	details, entryIds, err := buildPurchaseDetails(tx, input, 0)
	if err != nil {
		return nil, err
	}
	invoice = assemblePurchaseInvoice(input, details)

	if err := tx.Create(invoice).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "CreatePurchaseInvoice", "CreateInvoice", invoice, err)
		return nil, err
	}
	if err := models.LinkStockOutEntries(tx, entryIds, invoice.ID); err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "CreatePurchaseInvoice", "LinkStockOutEntries", entryIds, err)
		return nil, err
	}

	intent := BuildPurchaseIntent(invoice)
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, invoice.ID,
		models.PartyTypeVendor, invoice.VendorId, nil, input.CrateTransaction)
	intent.CrateOp = crateOp
	intent.BalanceDeltas = append(intent.BalanceDeltas, crateDeltas...)

	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if err := MarkIdempotencySucceeded(tx, handlerPurchaseInvoice, idempotencyKey); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return invoice, nil
}

func UpdatePurchaseInvoice(ctx context.Context, id int, input *models.NewPurchaseInvoice) (*models.PurchaseInvoice, error) {
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

	oldInvoice, err := models.LockPurchaseInvoice(tx, id)
	if err != nil {
		return nil, err
	}

	// Lock both parties in stable order when the vendor changes.
	lockIds := []int{oldInvoice.VendorId}
	if input.VendorId != oldInvoice.VendorId {
		lockIds = utils.MergeIntSlices(lockIds, []int{input.VendorId})
		if lockIds[0] > lockIds[1] {
			lockIds[0], lockIds[1] = lockIds[1], lockIds[0]
		}
	}
	for _, vendorId := range lockIds {
		if err := AcquirePartyPostingLock(tx, models.PartyTypeVendor, vendorId); err != nil {
			return nil, err
		}
		defer ReleasePartyPostingLock(tx, models.PartyTypeVendor, vendorId)
	}

	details, entryIds, err := buildPurchaseDetails(tx, input, id)
	if err != nil {
		return nil, err
	}
	newInvoice := assemblePurchaseInvoice(input, details)
	newInvoice.ID = id
	// Payments already made stay attached; totals re-derive around them.
	newInvoice.PaidAmount = oldInvoice.PaidAmount
	newInvoice.CalculateTotals()

	// Apply only the old->new delta, never a full re-application.
	delta := MergeIntents(BuildPurchaseIntent(newInvoice), BuildPurchaseIntent(oldInvoice).Reversed())

	oldCrate, err := models.GetCrateTransactionByReference(tx, models.CrateReferenceTypePurchaseInvoice, id)
	if err != nil {
		return nil, err
	}
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, id,
		models.PartyTypeVendor, newInvoice.VendorId, oldCrate, input.CrateTransaction)
	delta.CrateOp = crateOp
	delta.BalanceDeltas = append(delta.BalanceDeltas, crateDeltas...)

	if err := models.UnlinkStockOutEntries(tx, id); err != nil {
		return nil, err
	}
	if err := tx.Where("purchase_invoice_id = ?", id).Delete(&models.PurchaseInvoiceDetail{}).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "UpdatePurchaseInvoice", "DeleteOldDetails", id, err)
		return nil, err
	}
	for i := range newInvoice.Details {
		newInvoice.Details[i].PurchaseInvoiceId = id
	}
	if err := tx.Create(&newInvoice.Details).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "UpdatePurchaseInvoice", "CreateNewDetails", newInvoice.Details, err)
		return nil, err
	}
	if err := tx.Model(&models.PurchaseInvoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"invoice_number":    newInvoice.InvoiceNumber,
		"vendor_id":         newInvoice.VendorId,
		"invoice_date":      newInvoice.InvoiceDate,
		"commission_rate":   newInvoice.CommissionRate,
		"commission_amount": newInvoice.CommissionAmount,
		"labour":            newInvoice.Labour,
		"truck_freight":     newInvoice.TruckFreight,
		"crate_freight":     newInvoice.CrateFreight,
		"post_expenses":     newInvoice.PostExpenses,
		"draft_expenses":    newInvoice.DraftExpenses,
		"vatav":             newInvoice.Vatav,
		"other_expenses":    newInvoice.OtherExpenses,
		"advance":           newInvoice.Advance,
		"total_selling":     newInvoice.TotalSelling,
		"total_expense":     newInvoice.TotalExpense,
		"net_amount":        newInvoice.NetAmount,
		"paid_amount":       newInvoice.PaidAmount,
		"balance_amount":    newInvoice.BalanceAmount,
		"current_status":    newInvoice.CurrentStatus,
	}).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "UpdatePurchaseInvoice", "UpdateInvoice", newInvoice, err)
		return nil, err
	}
	if err := models.LinkStockOutEntries(tx, entryIds, id); err != nil {
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

func DeletePurchaseInvoice(ctx context.Context, id int) error {
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

	invoice, err := models.LockPurchaseInvoice(tx, id)
	if err != nil {
		return err
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId); err != nil {
		return err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId)

	// Full reversal of the invoice's current ledger contribution. Payment
	// rows go with it; their effect is already folded into the open balance.
	intent := BuildPurchaseIntent(invoice).Reversed()

	oldCrate, err := models.GetCrateTransactionByReference(tx, models.CrateReferenceTypePurchaseInvoice, id)
	if err != nil {
		return err
	}
	crateOp, crateDeltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, id,
		models.PartyTypeVendor, invoice.VendorId, oldCrate, nil)
	intent.CrateOp = crateOp
	intent.BalanceDeltas = append(intent.BalanceDeltas, crateDeltas...)

	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return err
	}
	if err := models.UnlinkStockOutEntries(tx, id); err != nil {
		return err
	}
	if err := tx.Where("purchase_invoice_id = ?", id).Delete(&models.VendorPayment{}).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "DeletePurchaseInvoice", "DeletePayments", id, err)
		return err
	}
	if err := tx.Where("purchase_invoice_id = ?", id).Delete(&models.PurchaseInvoiceDetail{}).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "DeletePurchaseInvoice", "DeleteDetails", id, err)
		return err
	}
	if err := tx.Delete(&models.PurchaseInvoice{}, id).Error; err != nil {
		config.LogError(logger, "purchaseInvoiceWorkflow.go", "DeletePurchaseInvoice", "DeleteInvoice", id, err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	InvalidateBalanceSummary()
	return nil
}
