package models

import (
	"strings"

	"github.com/agrifocus/mandi_backend/utils"
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// SelectQuantity picks the billable quantity for an item's configured unit.
// An unknown or missing unit falls back to weight, so a misconfigured item
// bills by weight instead of silently producing a zero line.
func SelectQuantity(unit Unit, weight decimal.Decimal, crates decimal.Decimal, boxes decimal.Decimal) decimal.Decimal {
	switch Unit(strings.ToUpper(strings.TrimSpace(string(unit)))) {
	case UnitCrate:
		return utils.SanitizeAmount(crates)
	case UnitBox:
		return utils.SanitizeAmount(boxes)
	case UnitKgs:
		return utils.SanitizeAmount(weight)
	default:
		return utils.SanitizeAmount(weight)
	}
}

// LineAmount is quantity x rate, rounded once for persistence.
// Recomputing with unchanged inputs reproduces the identical amount.
func LineAmount(unit Unit, weight decimal.Decimal, crates decimal.Decimal, boxes decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	qty := SelectQuantity(unit, weight, crates, boxes)
	return utils.RoundMoney(qty.Mul(utils.SanitizeAmount(rate)))
}

// ClampCommissionRate keeps the commission percentage inside [0,100].
// Out-of-range input is clamped, not rejected.
func ClampCommissionRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(decimalOneHundred) {
		return decimalOneHundred
	}
	return rate
}

// CalculateCommission applies the clamped rate to the selling total.
func CalculateCommission(totalSelling decimal.Decimal, commissionRate decimal.Decimal) decimal.Decimal {
	rate := ClampCommissionRate(commissionRate)
	return utils.RoundMoney(totalSelling.Mul(rate).Div(decimalOneHundred))
}

// SalesBalance floors the due amount at zero so an overpayment can never
// surface as a negative balance.
func SalesBalance(totalAmount decimal.Decimal, paidAmount decimal.Decimal) decimal.Decimal {
	balance := totalAmount.Sub(paidAmount)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// AppliedPortion is the part of a receipt that reduces the open receivable.
// An overpayment applies only up to what is open.
func AppliedPortion(amount decimal.Decimal, openReceivable decimal.Decimal) decimal.Decimal {
	applied := decimal.Min(amount, openReceivable)
	if applied.IsNegative() {
		return decimal.Zero
	}
	return applied
}

// DeriveSalesInvoiceStatus is the single status rule shared by create, edit,
// payment and display paths. Status is never set independently of it.
func DeriveSalesInvoiceStatus(paidAmount decimal.Decimal, totalAmount decimal.Decimal) SalesInvoiceStatus {
	if paidAmount.LessThanOrEqual(decimal.Zero) {
		return SalesInvoiceStatusPending
	}
	if paidAmount.GreaterThanOrEqual(totalAmount) {
		return SalesInvoiceStatusPaid
	}
	return SalesInvoiceStatusPartial
}

// DerivePurchaseInvoiceStatus mirrors the sales rule for the amount payable
// to the vendor. A non-positive net amount with any payment counts as paid.
func DerivePurchaseInvoiceStatus(paidAmount decimal.Decimal, netAmount decimal.Decimal) PurchaseInvoiceStatus {
	if paidAmount.LessThanOrEqual(decimal.Zero) {
		return PurchaseInvoiceStatusUnpaid
	}
	if paidAmount.GreaterThanOrEqual(netAmount) {
		return PurchaseInvoiceStatusPaid
	}
	return PurchaseInvoiceStatusPartial
}
