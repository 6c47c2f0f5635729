package workflow

import (
	"testing"

	"github.com/agrifocus/mandi_backend/models"
	"github.com/shopspring/decimal"
)

func salesInvoiceAt(total, paid string) *models.SalesInvoice {
	totalAmount := d(total)
	paidAmount := d(paid)
	return &models.SalesInvoice{
		TotalAmount:   totalAmount,
		PaidAmount:    paidAmount,
		BalanceAmount: models.SalesBalance(totalAmount, paidAmount),
	}
}

func TestRemovingPaymentsAfterOverpaymentReopensOnlyWhatIsUncovered(t *testing.T) {
	// A 500 invoice takes two receipts of 300. The first applied 300, the
	// second only 200. Removing the first one out of order must reopen 200,
	// not 300: the surviving 300 receipt still covers 300 of the total.
	invoice := salesInvoiceAt("500", "600")
	udhaar := invoice.OpenReceivable()
	if !udhaar.IsZero() {
		t.Fatalf("fully paid invoice has open receivable %s, want 0", udhaar)
	}

	delta := retailerPaymentRemovalDelta(invoice, d("300"))
	if !delta.Equal(d("200")) {
		t.Fatalf("first removal delta = %s, want 200", delta)
	}
	udhaar = udhaar.Add(delta)

	invoice = salesInvoiceAt("500", "300")
	if !udhaar.Equal(invoice.OpenReceivable()) {
		t.Fatalf("udhaar %s diverged from open receivable %s", udhaar, invoice.OpenReceivable())
	}

	delta = retailerPaymentRemovalDelta(invoice, d("300"))
	if !delta.Equal(d("300")) {
		t.Fatalf("second removal delta = %s, want 300", delta)
	}
	udhaar = udhaar.Add(delta)
	if !udhaar.Equal(d("500")) {
		t.Fatalf("udhaar after removing both payments = %s, want 500", udhaar)
	}
}

func TestRemovalDeltaMatchesAppliedAmountWithoutOverpayment(t *testing.T) {
	// 200 then 100 against a 500 invoice; nothing overpaid, so removing
	// either one reopens exactly what it paid.
	invoice := salesInvoiceAt("500", "300")
	if got := retailerPaymentRemovalDelta(invoice, d("100")); !got.Equal(d("100")) {
		t.Fatalf("removal delta = %s, want 100", got)
	}
	if got := retailerPaymentRemovalDelta(invoice, d("200")); !got.Equal(d("200")) {
		t.Fatalf("removal delta = %s, want 200", got)
	}
}

func TestReplayAppliedAmounts(t *testing.T) {
	cases := []struct {
		name    string
		opening string
		amounts []string
		want    []string
	}{
		{"second receipt overpays", "500", []string{"300", "300"}, []string{"300", "200"}},
		{"survivor after removal", "500", []string{"300"}, []string{"300"}},
		{"exhausted receivable", "500", []string{"500", "100"}, []string{"500", "0"}},
		{"no payments", "500", nil, nil},
	}
	for _, c := range cases {
		amounts := make([]decimal.Decimal, len(c.amounts))
		for i, s := range c.amounts {
			amounts[i] = d(s)
		}
		got := replayAppliedAmounts(d(c.opening), amounts)
		if len(got) != len(c.want) {
			t.Fatalf("%s: got %d applied amounts, want %d", c.name, len(got), len(c.want))
		}
		for i := range got {
			if !got[i].Equal(d(c.want[i])) {
				t.Fatalf("%s: applied[%d] = %s, want %s", c.name, i, got[i], c.want[i])
			}
		}
	}
}
