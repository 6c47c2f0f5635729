package workflow

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	handlerVendorPayment   = "VendorPayment"
	handlerRetailerPayment = "RetailerPayment"
)

func updatePurchasePaidAmount(tx *gorm.DB, invoice *models.PurchaseInvoice, paidAmount decimal.Decimal) error {
	invoice.PaidAmount = utils.RoundMoney(paidAmount)
	invoice.BalanceAmount = utils.RoundMoney(invoice.NetAmount.Sub(invoice.PaidAmount))
	invoice.CurrentStatus = models.DerivePurchaseInvoiceStatus(invoice.PaidAmount, invoice.NetAmount)
	return tx.Model(&models.PurchaseInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"paid_amount":    invoice.PaidAmount,
		"balance_amount": invoice.BalanceAmount,
		"current_status": invoice.CurrentStatus,
	}).Error
}

func updateSalesPaidAmount(tx *gorm.DB, invoice *models.SalesInvoice, paidAmount decimal.Decimal) error {
	invoice.PaidAmount = utils.RoundMoney(paidAmount)
	invoice.BalanceAmount = utils.RoundMoney(models.SalesBalance(invoice.TotalAmount, invoice.PaidAmount))
	invoice.CurrentStatus = models.DeriveSalesInvoiceStatus(invoice.PaidAmount, invoice.TotalAmount)
	return tx.Model(&models.SalesInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"paid_amount":    invoice.PaidAmount,
		"balance_amount": invoice.BalanceAmount,
		"current_status": invoice.CurrentStatus,
	}).Error
}

// CreateVendorPayment records a payout against a purchase invoice. The
// vendor's payable drops by the full amount; the invoice balance may go
// negative when the payout overshoots, which is surfaced rather than hidden.
func CreateVendorPayment(ctx context.Context, input *models.NewVendorPayment, idempotencyKey string) (result *models.VendorPayment, retErr error) {
	db := config.GetDB()
	logger := config.GetLogger()

	// Marking a failed key uses a fresh connection, so it has to run after
	// the rollback releases the key row's lock.
	keyStarted := false
	if idempotencyKey != "" {
		defer func() {
			if keyStarted && retErr != nil {
				_ = MarkIdempotencyFailed(db, handlerVendorPayment, idempotencyKey, retErr)
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

	invoice, err := models.LockPurchaseInvoice(tx, input.PurchaseInvoiceId)
	if err != nil {
		return nil, err
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId); err != nil {
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId)

	if idempotencyKey != "" {
		skip, err := BeginIdempotency(tx, handlerVendorPayment, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, ErrDuplicateSubmission
		}
		keyStarted = true
	}

	amount := utils.RoundMoney(utils.SanitizeAmount(input.Amount))
	if amount.IsZero() {
		return nil, utils.NewValidationError(-1, "amount", "must be positive")
	}

	payment := models.VendorPayment{
		VendorId:          invoice.VendorId,
		PurchaseInvoiceId: invoice.ID,
		Amount:            amount,
		PaymentDate:       input.PaymentDate,
		Notes:             input.Notes,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "CreateVendorPayment", "CreatePayment", payment, err)
		return nil, err
	}
	if err := updatePurchasePaidAmount(tx, invoice, invoice.PaidAmount.Add(amount)); err != nil {
		config.LogError(logger, "paymentWorkflow.go", "CreateVendorPayment", "UpdateInvoice", invoice, err)
		return nil, err
	}
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{{
		Field:   BalanceFieldVendorPayable,
		PartyId: invoice.VendorId,
		Amount:  amount.Neg(),
	}}}
	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if err := MarkIdempotencySucceeded(tx, handlerVendorPayment, idempotencyKey); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return &payment, nil
}

func DeleteVendorPayment(ctx context.Context, id int) error {
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

	var payment models.VendorPayment
	if err := tx.First(&payment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	invoice, err := models.LockPurchaseInvoice(tx, payment.PurchaseInvoiceId)
	if err != nil {
		return err
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId); err != nil {
		return err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeVendor, invoice.VendorId)

	if err := updatePurchasePaidAmount(tx, invoice, invoice.PaidAmount.Sub(payment.Amount)); err != nil {
		config.LogError(logger, "paymentWorkflow.go", "DeleteVendorPayment", "UpdateInvoice", invoice, err)
		return err
	}
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{{
		Field:   BalanceFieldVendorPayable,
		PartyId: invoice.VendorId,
		Amount:  payment.Amount,
	}}}
	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return err
	}
	if err := tx.Delete(&models.VendorPayment{}, id).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "DeleteVendorPayment", "DeletePayment", id, err)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	InvalidateBalanceSummary()
	return nil
}

// CreateRetailerPayment records a receipt against a sales invoice. An
// overpayment is accepted; only the part that covered the open receivable
// reduces the udhaar balance. The applied part is stored on the payment for
// reporting and is re-derived whenever a payment on the invoice is removed.
func CreateRetailerPayment(ctx context.Context, input *models.NewRetailerPayment, idempotencyKey string) (result *models.RetailerPayment, retErr error) {
	db := config.GetDB()
	logger := config.GetLogger()

	// Marking a failed key uses a fresh connection, so it has to run after
	// the rollback releases the key row's lock.
	keyStarted := false
	if idempotencyKey != "" {
		defer func() {
			if keyStarted && retErr != nil {
				_ = MarkIdempotencyFailed(db, handlerRetailerPayment, idempotencyKey, retErr)
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

	invoice, err := models.LockSalesInvoice(tx, input.SalesInvoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.SettledShortAt != nil {
		return nil, utils.NewValidationError(-1, "sales_invoice_id", "invoice was settled short and no longer accepts payments")
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId); err != nil {
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId)

	if idempotencyKey != "" {
		skip, err := BeginIdempotency(tx, handlerRetailerPayment, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, ErrDuplicateSubmission
		}
		keyStarted = true
	}

	amount := utils.RoundMoney(utils.SanitizeAmount(input.Amount))
	if amount.IsZero() {
		return nil, utils.NewValidationError(-1, "amount", "must be positive")
	}
	applied := models.AppliedPortion(amount, invoice.OpenReceivable())

	payment := models.RetailerPayment{
		RetailerId:     invoice.RetailerId,
		SalesInvoiceId: invoice.ID,
		Amount:         amount,
		AppliedAmount:  applied,
		PaymentDate:    input.PaymentDate,
		Notes:          input.Notes,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "CreateRetailerPayment", "CreatePayment", payment, err)
		return nil, err
	}
	if err := updateSalesPaidAmount(tx, invoice, invoice.PaidAmount.Add(amount)); err != nil {
		config.LogError(logger, "paymentWorkflow.go", "CreateRetailerPayment", "UpdateInvoice", invoice, err)
		return nil, err
	}
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{{
		Field:   BalanceFieldRetailerUdhaar,
		PartyId: invoice.RetailerId,
		Amount:  applied.Neg(),
	}}}
	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if err := MarkIdempotencySucceeded(tx, handlerRetailerPayment, idempotencyKey); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return &payment, nil
}

// retailerPaymentRemovalDelta is how much the open receivable grows when a
// payment of the given amount comes off the invoice. With an overpayment in
// the history this is not the payment's applied amount: the invoice only
// reopens up to what the remaining payments leave uncovered.
func retailerPaymentRemovalDelta(invoice *models.SalesInvoice, amount decimal.Decimal) decimal.Decimal {
	openAfter := models.SalesBalance(invoice.TotalAmount, invoice.PaidAmount.Sub(amount)).Sub(invoice.ShortfallAmount)
	return openAfter.Sub(invoice.OpenReceivable())
}

// replayAppliedAmounts walks the payments in order and re-derives how much of
// each one covered the receivable that was open when it landed.
func replayAppliedAmounts(openingReceivable decimal.Decimal, amounts []decimal.Decimal) []decimal.Decimal {
	open := openingReceivable
	applied := make([]decimal.Decimal, len(amounts))
	for i, amount := range amounts {
		applied[i] = models.AppliedPortion(amount, open)
		open = open.Sub(applied[i])
	}
	return applied
}

func rederiveAppliedAmounts(tx *gorm.DB, invoice *models.SalesInvoice) error {
	var payments []models.RetailerPayment
	if err := tx.Where("sales_invoice_id = ?", invoice.ID).Order("id").Find(&payments).Error; err != nil {
		return err
	}
	amounts := make([]decimal.Decimal, len(payments))
	for i := range payments {
		amounts[i] = payments[i].Amount
	}
	applied := replayAppliedAmounts(invoice.TotalAmount.Sub(invoice.ShortfallAmount), amounts)
	for i := range payments {
		if payments[i].AppliedAmount.Equal(applied[i]) {
			continue
		}
		if err := tx.Model(&models.RetailerPayment{}).Where("id = ?", payments[i].ID).
			Update("applied_amount", applied[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func DeleteRetailerPayment(ctx context.Context, id int) error {
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

	var payment models.RetailerPayment
	if err := tx.First(&payment, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	invoice, err := models.LockSalesInvoice(tx, payment.SalesInvoiceId)
	if err != nil {
		return err
	}
	if invoice.SettledShortAt != nil {
		return utils.NewValidationError(-1, "id", "invoice was settled short; its payments can no longer be removed")
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId); err != nil {
		return err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId)

	delta := retailerPaymentRemovalDelta(invoice, payment.Amount)
	if err := updateSalesPaidAmount(tx, invoice, invoice.PaidAmount.Sub(payment.Amount)); err != nil {
		config.LogError(logger, "paymentWorkflow.go", "DeleteRetailerPayment", "UpdateInvoice", invoice, err)
		return err
	}
	if err := tx.Delete(&models.RetailerPayment{}, id).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "DeleteRetailerPayment", "DeletePayment", id, err)
		return err
	}
	if err := rederiveAppliedAmounts(tx, invoice); err != nil {
		config.LogError(logger, "paymentWorkflow.go", "DeleteRetailerPayment", "RederiveApplied", invoice.ID, err)
		return err
	}
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{{
		Field:   BalanceFieldRetailerUdhaar,
		PartyId: invoice.RetailerId,
		Amount:  delta,
	}}}
	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	InvalidateBalanceSummary()
	return nil
}

// SettleShortSalesInvoice closes out an invoice the retailer will not pay in
// full. The open receivable moves from the udhaar ledger to the shortfall
// ledger; the invoice keeps its balance so the books still reconcile, and is
// frozen against further edits and payments.
func SettleShortSalesInvoice(ctx context.Context, id int) (*models.SalesInvoice, error) {
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
		return nil, err
	}
	if invoice.SettledShortAt != nil {
		return nil, utils.NewValidationError(-1, "id", "invoice is already settled short")
	}
	remainder := invoice.OpenReceivable()
	if !remainder.IsPositive() {
		return nil, utils.NewValidationError(-1, "id", "invoice has no open balance to settle")
	}
	if err := AcquirePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId); err != nil {
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, models.PartyTypeRetailer, invoice.RetailerId)

	now := time.Now().UTC()
	invoice.ShortfallAmount = remainder
	invoice.SettledShortAt = &now
	if err := tx.Model(&models.SalesInvoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"shortfall_amount": invoice.ShortfallAmount,
		"settled_short_at": invoice.SettledShortAt,
	}).Error; err != nil {
		config.LogError(logger, "paymentWorkflow.go", "SettleShortSalesInvoice", "UpdateInvoice", invoice, err)
		return nil, err
	}
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{
		{Field: BalanceFieldRetailerUdhaar, PartyId: invoice.RetailerId, Amount: remainder.Neg()},
		{Field: BalanceFieldRetailerShortfall, PartyId: invoice.RetailerId, Amount: remainder},
	}}
	if err := ApplyWriteIntent(tx, logger, intent); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	InvalidateBalanceSummary()
	return invoice, nil
}
