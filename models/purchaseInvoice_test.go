package models

import (
	"testing"
)

func purchaseLine(unit Unit, weight, crates, boxes, rate string) PurchaseInvoiceDetail {
	detail := PurchaseInvoiceDetail{
		Weight: d(weight),
		Crates: d(crates),
		Boxes:  d(boxes),
		Rate:   d(rate),
	}
	detail.CalculateAmount(unit)
	return detail
}

func TestPurchaseInvoiceCalculateTotals(t *testing.T) {
	pi := PurchaseInvoice{
		CommissionRate: d("10"),
		Labour:         d("50"),
		TruckFreight:   d("30"),
		Details: []PurchaseInvoiceDetail{
			purchaseLine(UnitKgs, "100", "0", "0", "8"),   // 800
			purchaseLine(UnitCrate, "0", "10", "0", "20"), // 200
		},
	}
	pi.CalculateTotals()

	if !pi.TotalSelling.Equal(d("1000.00")) {
		t.Fatalf("total selling = %s, want 1000.00", pi.TotalSelling)
	}
	if !pi.CommissionAmount.Equal(d("100.00")) {
		t.Fatalf("commission = %s, want 100.00", pi.CommissionAmount)
	}
	if !pi.TotalExpense.Equal(d("180.00")) {
		t.Fatalf("total expense = %s, want 180.00", pi.TotalExpense)
	}
	if !pi.NetAmount.Equal(d("820.00")) {
		t.Fatalf("net = %s, want 820.00", pi.NetAmount)
	}
	if !pi.BalanceAmount.Equal(d("820.00")) {
		t.Fatalf("balance = %s, want 820.00", pi.BalanceAmount)
	}
	if pi.CurrentStatus != PurchaseInvoiceStatusUnpaid {
		t.Fatalf("status = %s, want Unpaid", pi.CurrentStatus)
	}
}

func TestPurchaseInvoiceFlatCommissionWhenRateZero(t *testing.T) {
	pi := PurchaseInvoice{
		CommissionAmount: d("75"),
		Details: []PurchaseInvoiceDetail{
			purchaseLine(UnitKgs, "100", "0", "0", "10"),
		},
	}
	pi.CalculateTotals()
	if !pi.CommissionAmount.Equal(d("75.00")) {
		t.Fatalf("flat commission = %s, want 75.00", pi.CommissionAmount)
	}
	// A positive rate wins over a flat amount.
	pi.CommissionRate = d("5")
	pi.CalculateTotals()
	if !pi.CommissionAmount.Equal(d("50.00")) {
		t.Fatalf("rate commission = %s, want 50.00", pi.CommissionAmount)
	}
}

func TestPurchaseInvoiceNegativeNetSurvives(t *testing.T) {
	pi := PurchaseInvoice{
		Labour: d("500"),
		Details: []PurchaseInvoiceDetail{
			purchaseLine(UnitKgs, "10", "0", "0", "10"), // 100
		},
	}
	pi.CalculateTotals()
	if !pi.NetAmount.Equal(d("-400.00")) {
		t.Fatalf("net = %s, want -400.00 (never floored)", pi.NetAmount)
	}
	if !pi.BalanceAmount.Equal(d("-400.00")) {
		t.Fatalf("balance = %s, want -400.00", pi.BalanceAmount)
	}
}

func TestPurchaseInvoiceBalancePreservesPaidAmount(t *testing.T) {
	pi := PurchaseInvoice{
		Details: []PurchaseInvoiceDetail{
			purchaseLine(UnitKgs, "150", "0", "0", "10"), // 1500
		},
		PaidAmount: d("200"),
	}
	pi.CalculateTotals()
	if !pi.BalanceAmount.Equal(d("1300.00")) {
		t.Fatalf("balance = %s, want 1300.00", pi.BalanceAmount)
	}
	if pi.CurrentStatus != PurchaseInvoiceStatusPartial {
		t.Fatalf("status = %s, want Partial", pi.CurrentStatus)
	}
}

func TestPurchaseLineSanitizesNegativeInputs(t *testing.T) {
	detail := PurchaseInvoiceDetail{
		Weight: d("-10"),
		Rate:   d("5"),
	}
	detail.CalculateAmount(UnitKgs)
	if !detail.Amount.IsZero() {
		t.Fatalf("amount from negative weight = %s, want 0", detail.Amount)
	}
	if !detail.Weight.IsZero() {
		t.Fatalf("sanitized weight = %s, want 0", detail.Weight)
	}
}

func TestSalesInvoiceCalculateTotalsOverpayment(t *testing.T) {
	si := SalesInvoice{
		PaidAmount: d("700"),
		Details: []SalesInvoiceDetail{
			func() SalesInvoiceDetail {
				detail := SalesInvoiceDetail{Weight: d("50"), Rate: d("10")}
				detail.CalculateAmount(UnitKgs)
				return detail
			}(),
		},
	}
	si.CalculateTotals()
	if !si.TotalAmount.Equal(d("500.00")) {
		t.Fatalf("total = %s, want 500.00", si.TotalAmount)
	}
	if !si.BalanceAmount.IsZero() {
		t.Fatalf("balance = %s, want 0 (clamped)", si.BalanceAmount)
	}
	if si.CurrentStatus != SalesInvoiceStatusPaid {
		t.Fatalf("status = %s, want Paid", si.CurrentStatus)
	}
}

func TestSalesInvoiceOpenReceivable(t *testing.T) {
	si := SalesInvoice{
		BalanceAmount:   d("300"),
		ShortfallAmount: d("120"),
	}
	if got := si.OpenReceivable(); !got.Equal(d("180")) {
		t.Fatalf("open receivable = %s, want 180", got)
	}
}

func TestCrateCustodyEffect(t *testing.T) {
	if got := CrateCustodyEffect(CrateTransactionTypeGiven, d("12")); !got.Equal(d("12")) {
		t.Fatalf("Given effect = %s, want 12", got)
	}
	if got := CrateCustodyEffect(CrateTransactionTypeReceived, d("12")); !got.Equal(d("-12")) {
		t.Fatalf("Received effect = %s, want -12", got)
	}
}
