package workflow

import (
	"testing"
	"time"

	"github.com/agrifocus/mandi_backend/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func purchaseWithNet(vendorId int, net string) *models.PurchaseInvoice {
	return &models.PurchaseInvoice{
		VendorId:      vendorId,
		NetAmount:     d(net),
		BalanceAmount: d(net),
	}
}

func balanceFor(intent WriteIntent, field BalanceField, partyId int) decimal.Decimal {
	total := decimal.Zero
	for _, bd := range intent.BalanceDeltas {
		if bd.Field == field && bd.PartyId == partyId {
			total = total.Add(bd.Amount)
		}
	}
	return total
}

func TestEditAppliesOnlyTheDelta(t *testing.T) {
	// Invoice created at net 500, edited to net 1500, edited again to 1300.
	// Each edit posts new minus old; the vendor balance walks 500 -> 1500 -> 1300.
	balance := decimal.Zero

	create := BuildPurchaseIntent(purchaseWithNet(1, "500"))
	balance = balance.Add(balanceFor(create, BalanceFieldVendorPayable, 1))

	firstEdit := MergeIntents(
		BuildPurchaseIntent(purchaseWithNet(1, "1500")),
		BuildPurchaseIntent(purchaseWithNet(1, "500")).Reversed(),
	)
	if got := balanceFor(firstEdit, BalanceFieldVendorPayable, 1); !got.Equal(d("1000")) {
		t.Fatalf("first edit delta = %s, want 1000", got)
	}
	balance = balance.Add(balanceFor(firstEdit, BalanceFieldVendorPayable, 1))

	secondEdit := MergeIntents(
		BuildPurchaseIntent(purchaseWithNet(1, "1300")),
		BuildPurchaseIntent(purchaseWithNet(1, "1500")).Reversed(),
	)
	if got := balanceFor(secondEdit, BalanceFieldVendorPayable, 1); !got.Equal(d("-200")) {
		t.Fatalf("second edit delta = %s, want -200", got)
	}
	balance = balance.Add(balanceFor(secondEdit, BalanceFieldVendorPayable, 1))

	if !balance.Equal(d("1300")) {
		t.Fatalf("running balance = %s, want 1300", balance)
	}
}

func TestDeleteReversesExactly(t *testing.T) {
	invoice := purchaseWithNet(1, "500")
	applied := BuildPurchaseIntent(invoice)
	reversed := applied.Reversed()

	net := MergeIntents(applied, reversed)
	if got := balanceFor(net, BalanceFieldVendorPayable, 1); !got.IsZero() {
		t.Fatalf("create+delete net balance = %s, want 0", got)
	}
}

func TestReversedNegatesStockDeltas(t *testing.T) {
	intent := WriteIntent{
		StockDeltas: []StockDelta{{ItemId: 4, Kgs: d("25"), Crates: d("2")}},
	}
	reversed := intent.Reversed()
	if !reversed.StockDeltas[0].Kgs.Equal(d("-25")) || !reversed.StockDeltas[0].Crates.Equal(d("-2")) {
		t.Fatalf("reversed stock delta = %+v", reversed.StockDeltas[0])
	}
}

func TestReversedDropsCrateOp(t *testing.T) {
	intent := WriteIntent{CrateOp: &CrateOp{Action: CrateOpCreate}}
	if intent.Reversed().CrateOp != nil {
		t.Fatal("Reversed must not carry the crate op; callers attach the explicit reversal")
	}
}

func TestMergeIntentsCompactsPerRow(t *testing.T) {
	merged := MergeIntents(
		WriteIntent{
			BalanceDeltas: []BalanceDelta{
				{Field: BalanceFieldVendorPayable, PartyId: 1, Amount: d("100")},
				{Field: BalanceFieldVendorPayable, PartyId: 2, Amount: d("40")},
			},
			StockDeltas: []StockDelta{{ItemId: 9, Kgs: d("10")}},
		},
		WriteIntent{
			BalanceDeltas: []BalanceDelta{
				{Field: BalanceFieldVendorPayable, PartyId: 1, Amount: d("-30")},
			},
			StockDeltas: []StockDelta{{ItemId: 9, Kgs: d("-4")}},
		},
	)
	if len(merged.BalanceDeltas) != 2 {
		t.Fatalf("expected 2 compacted balance deltas, got %d", len(merged.BalanceDeltas))
	}
	if got := balanceFor(merged, BalanceFieldVendorPayable, 1); !got.Equal(d("70")) {
		t.Fatalf("party 1 delta = %s, want 70", got)
	}
	if got := balanceFor(merged, BalanceFieldVendorPayable, 2); !got.Equal(d("40")) {
		t.Fatalf("party 2 delta = %s, want 40", got)
	}
	if len(merged.StockDeltas) != 1 || !merged.StockDeltas[0].Kgs.Equal(d("6")) {
		t.Fatalf("stock deltas = %+v, want single item 9 kgs 6", merged.StockDeltas)
	}
}

func TestSalesIntentDebitsStock(t *testing.T) {
	invoice := &models.SalesInvoice{
		RetailerId:    3,
		TotalAmount:   d("500"),
		BalanceAmount: d("500"),
		Details: []models.SalesInvoiceDetail{
			{ItemId: 2, Weight: d("50")},
		},
	}
	intent := BuildSalesIntent(invoice)
	if got := balanceFor(intent, BalanceFieldRetailerUdhaar, 3); !got.Equal(d("500")) {
		t.Fatalf("udhaar delta = %s, want 500", got)
	}
	if !intent.StockDeltas[0].Kgs.Equal(d("-50")) {
		t.Fatalf("stock delta = %s, want -50", intent.StockDeltas[0].Kgs)
	}
}

func TestSalesIntentCarriesShortfall(t *testing.T) {
	invoice := &models.SalesInvoice{
		RetailerId:      3,
		BalanceAmount:   d("300"),
		ShortfallAmount: d("120"),
	}
	intent := BuildSalesIntent(invoice)
	if got := balanceFor(intent, BalanceFieldRetailerUdhaar, 3); !got.Equal(d("180")) {
		t.Fatalf("udhaar delta = %s, want 180 (open receivable)", got)
	}
	if got := balanceFor(intent, BalanceFieldRetailerShortfall, 3); !got.Equal(d("120")) {
		t.Fatalf("shortfall delta = %s, want 120", got)
	}
	// Deleting the invoice removes both ledger contributions.
	reversed := intent.Reversed()
	if got := balanceFor(reversed, BalanceFieldRetailerShortfall, 3); !got.Equal(d("-120")) {
		t.Fatalf("reversed shortfall delta = %s, want -120", got)
	}
}

func newCrateInput(transactionType models.CrateTransactionType, quantity string) *models.NewCrateTransaction {
	return &models.NewCrateTransaction{
		TransactionType: transactionType,
		Quantity:        d(quantity),
		TransactionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildCrateOpCreate(t *testing.T) {
	op, deltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, 10,
		models.PartyTypeVendor, 1, nil, newCrateInput(models.CrateTransactionTypeGiven, "15"))
	if op == nil || op.Action != CrateOpCreate {
		t.Fatalf("expected create op, got %+v", op)
	}
	if op.Transaction.ReferenceId != 10 || op.Transaction.PartyId != 1 {
		t.Fatalf("created transaction not linked: %+v", op.Transaction)
	}
	if len(deltas) != 1 || !deltas[0].Amount.Equal(d("15")) || deltas[0].Field != BalanceFieldVendorCrates {
		t.Fatalf("create deltas = %+v", deltas)
	}
}

func TestBuildCrateOpUpdate(t *testing.T) {
	old := &models.CrateTransaction{
		ID:              5,
		PartyType:       models.PartyTypeVendor,
		PartyId:         1,
		TransactionType: models.CrateTransactionTypeGiven,
		Quantity:        d("10"),
	}
	op, deltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, 10,
		models.PartyTypeVendor, 1, old, newCrateInput(models.CrateTransactionTypeReceived, "4"))
	if op == nil || op.Action != CrateOpUpdate {
		t.Fatalf("expected update op, got %+v", op)
	}
	// Given 10 (+10) became Received 4 (-4): delta -14.
	if len(deltas) != 1 || !deltas[0].Amount.Equal(d("-14")) {
		t.Fatalf("update deltas = %+v, want single -14", deltas)
	}
}

func TestBuildCrateOpDeleteOnToggleOff(t *testing.T) {
	old := &models.CrateTransaction{
		ID:              5,
		PartyType:       models.PartyTypeRetailer,
		PartyId:         2,
		TransactionType: models.CrateTransactionTypeReceived,
		Quantity:        d("6"),
	}
	op, deltas := BuildCrateOp(models.CrateReferenceTypeSalesInvoice, 20,
		models.PartyTypeRetailer, 2, old, nil)
	if op == nil || op.Action != CrateOpDelete {
		t.Fatalf("expected delete op, got %+v", op)
	}
	// Received 6 was -6 on custody; removal restores +6.
	if len(deltas) != 1 || !deltas[0].Amount.Equal(d("6")) || deltas[0].Field != BalanceFieldRetailerCrates {
		t.Fatalf("delete deltas = %+v", deltas)
	}
}

func TestBuildCrateOpNoChange(t *testing.T) {
	op, deltas := BuildCrateOp(models.CrateReferenceTypeSalesInvoice, 20,
		models.PartyTypeRetailer, 2, nil, nil)
	if op != nil || deltas != nil {
		t.Fatalf("expected no-op, got op=%+v deltas=%+v", op, deltas)
	}
}

func TestBuildCrateOpMovesCustodyAcrossParties(t *testing.T) {
	old := &models.CrateTransaction{
		ID:              5,
		PartyType:       models.PartyTypeVendor,
		PartyId:         1,
		TransactionType: models.CrateTransactionTypeGiven,
		Quantity:        d("10"),
	}
	op, deltas := BuildCrateOp(models.CrateReferenceTypePurchaseInvoice, 10,
		models.PartyTypeVendor, 9, old, newCrateInput(models.CrateTransactionTypeGiven, "10"))
	if op == nil || op.Action != CrateOpUpdate || op.Transaction.PartyId != 9 {
		t.Fatalf("expected update moving to party 9, got %+v", op)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %+v", deltas)
	}
	intent := WriteIntent{BalanceDeltas: deltas}
	if got := balanceFor(intent, BalanceFieldVendorCrates, 1); !got.Equal(d("-10")) {
		t.Fatalf("old party delta = %s, want -10", got)
	}
	if got := balanceFor(intent, BalanceFieldVendorCrates, 9); !got.Equal(d("10")) {
		t.Fatalf("new party delta = %s, want 10", got)
	}
}
