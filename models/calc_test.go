package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSelectQuantity(t *testing.T) {
	weight, crates, boxes := d("10.5"), d("3"), d("7")

	cases := []struct {
		name string
		unit Unit
		want decimal.Decimal
	}{
		{"kgs", UnitKgs, weight},
		{"crate", UnitCrate, crates},
		{"box", UnitBox, boxes},
		{"lowercase kgs", Unit("kgs"), weight},
		{"padded crate", Unit("  CRATE "), crates},
		{"unknown unit falls back to weight", Unit("TONNE"), weight},
		{"empty unit falls back to weight", Unit(""), weight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectQuantity(tc.unit, weight, crates, boxes)
			if !got.Equal(tc.want) {
				t.Fatalf("SelectQuantity(%q) = %s, want %s", tc.unit, got, tc.want)
			}
		})
	}
}

func TestSelectQuantityFloorsNegative(t *testing.T) {
	got := SelectQuantity(UnitKgs, d("-5"), decimal.Zero, decimal.Zero)
	if !got.IsZero() {
		t.Fatalf("negative weight should select as 0, got %s", got)
	}
}

func TestLineAmountRoundsOnce(t *testing.T) {
	// 3.333 kg x 7.77 = 25.897... -> 25.90
	got := LineAmount(UnitKgs, d("3.333"), decimal.Zero, decimal.Zero, d("7.77"))
	if !got.Equal(d("25.90")) {
		t.Fatalf("LineAmount = %s, want 25.90", got)
	}
	// Recomputation with unchanged inputs is exact.
	again := LineAmount(UnitKgs, d("3.333"), decimal.Zero, decimal.Zero, d("7.77"))
	if !got.Equal(again) {
		t.Fatalf("recomputation drifted: %s vs %s", got, again)
	}
}

func TestClampCommissionRate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"150", "100"},
		{"-10", "0"},
		{"0", "0"},
		{"100", "100"},
		{"6.5", "6.5"},
	}
	for _, tc := range cases {
		got := ClampCommissionRate(d(tc.in))
		if !got.Equal(d(tc.want)) {
			t.Fatalf("ClampCommissionRate(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCalculateCommission(t *testing.T) {
	got := CalculateCommission(d("1000"), d("6.5"))
	if !got.Equal(d("65.00")) {
		t.Fatalf("commission = %s, want 65.00", got)
	}
	// Rate outside [0,100] clamps before applying.
	if got := CalculateCommission(d("200"), d("150")); !got.Equal(d("200.00")) {
		t.Fatalf("commission with clamped 150%% = %s, want 200.00", got)
	}
	if got := CalculateCommission(d("200"), d("-10")); !got.IsZero() {
		t.Fatalf("commission with clamped -10%% = %s, want 0", got)
	}
}

func TestSalesBalanceClampsOverpayment(t *testing.T) {
	if got := SalesBalance(d("500"), d("700")); !got.IsZero() {
		t.Fatalf("overpaid balance = %s, want 0", got)
	}
	if got := SalesBalance(d("500"), d("200")); !got.Equal(d("300")) {
		t.Fatalf("balance = %s, want 300", got)
	}
}

func TestAppliedPortion(t *testing.T) {
	if got := AppliedPortion(d("300"), d("500")); !got.Equal(d("300")) {
		t.Fatalf("applied = %s, want 300", got)
	}
	if got := AppliedPortion(d("300"), d("200")); !got.Equal(d("200")) {
		t.Fatalf("overpaying receipt applied = %s, want 200", got)
	}
	if got := AppliedPortion(d("300"), d("0")); !got.IsZero() {
		t.Fatalf("receipt on closed invoice applied = %s, want 0", got)
	}
}

func TestDeriveSalesInvoiceStatus(t *testing.T) {
	cases := []struct {
		paid, total string
		want        SalesInvoiceStatus
	}{
		{"0", "500", SalesInvoiceStatusPending},
		{"-1", "500", SalesInvoiceStatusPending},
		{"200", "500", SalesInvoiceStatusPartial},
		{"500", "500", SalesInvoiceStatusPaid},
		{"700", "500", SalesInvoiceStatusPaid},
	}
	for _, tc := range cases {
		got := DeriveSalesInvoiceStatus(d(tc.paid), d(tc.total))
		if got != tc.want {
			t.Fatalf("status(paid=%s total=%s) = %s, want %s", tc.paid, tc.total, got, tc.want)
		}
	}
}

func TestDerivePurchaseInvoiceStatus(t *testing.T) {
	cases := []struct {
		paid, net string
		want      PurchaseInvoiceStatus
	}{
		{"0", "1000", PurchaseInvoiceStatusUnpaid},
		{"400", "1000", PurchaseInvoiceStatusPartial},
		{"1000", "1000", PurchaseInvoiceStatusPaid},
		{"1200", "1000", PurchaseInvoiceStatusPaid},
		{"100", "-50", PurchaseInvoiceStatusPaid},
	}
	for _, tc := range cases {
		got := DerivePurchaseInvoiceStatus(d(tc.paid), d(tc.net))
		if got != tc.want {
			t.Fatalf("status(paid=%s net=%s) = %s, want %s", tc.paid, tc.net, got, tc.want)
		}
	}
}
