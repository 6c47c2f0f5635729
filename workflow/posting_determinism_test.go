package workflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// posting semantics:
// - duplicate submissions with the same idempotency key post once
// - per-party serialization prevents racey interleavings of balance updates
//
// Full DB integration tests should be added in an environment that can run MySQL.

type fakePoster struct {
	muByParty map[string]*sync.Mutex
	mu        sync.Mutex
	seen      map[string]bool
	balances  map[string]decimal.Decimal
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		muByParty: map[string]*sync.Mutex{},
		seen:      map[string]bool{},
		balances:  map[string]decimal.Decimal{},
	}
}

func (p *fakePoster) post(partyKey, handlerName, idempotencyKey string, intent WriteIntent) {
	// Serialize per party (AcquirePartyPostingLock).
	p.mu.Lock()
	pm := p.muByParty[partyKey]
	if pm == nil {
		pm = &sync.Mutex{}
		p.muByParty[partyKey] = pm
	}
	p.mu.Unlock()

	pm.Lock()
	defer pm.Unlock()

	// Deduplicate (BeginIdempotency).
	if idempotencyKey != "" {
		key := handlerName + "|" + idempotencyKey
		p.mu.Lock()
		if p.seen[key] {
			p.mu.Unlock()
			return
		}
		p.seen[key] = true
		p.mu.Unlock()
	}

	// Read-modify-write, the exact pattern the lock protects.
	for _, bd := range intent.BalanceDeltas {
		rowKey := string(bd.Field) + "|" + fmt.Sprint(bd.PartyId)
		current := p.balances[rowKey]
		p.balances[rowKey] = current.Add(bd.Amount)
	}
}

func TestDuplicateSubmissionPostsOnce(t *testing.T) {
	p := newFakePoster()
	intent := WriteIntent{BalanceDeltas: []BalanceDelta{
		{Field: BalanceFieldVendorPayable, PartyId: 1, Amount: d("500")},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.post("Vendor:1", handlerPurchaseInvoice, "key-123", intent)
		}()
	}
	wg.Wait()

	if got := p.balances["vendor_payable|1"]; !got.Equal(d("500")) {
		t.Fatalf("balance after 25 duplicate submissions = %s, want 500", got)
	}
}

func TestConcurrentPostingToOnePartyIsSerialized(t *testing.T) {
	p := newFakePoster()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			intent := WriteIntent{BalanceDeltas: []BalanceDelta{
				{Field: BalanceFieldRetailerUdhaar, PartyId: 7, Amount: d("10")},
			}}
			p.post("Retailer:7", handlerSalesInvoice, fmt.Sprintf("key-%d", n), intent)
		}(i)
	}
	wg.Wait()

	if got := p.balances["retailer_udhaar|7"]; !got.Equal(d("500")) {
		t.Fatalf("balance after %d serialized posts = %s, want 500", workers, got)
	}
}

// postThenFail mirrors the defer layout of the create workflows: the
// failure-mark defer is registered before the transaction defers, so on a
// failed post the rollback runs first and the mark never touches a locked
// key row.
func postThenFail(events *[]string, idempotencyKey string, beginSucceeds bool) (retErr error) {
	keyStarted := false
	if idempotencyKey != "" {
		defer func() {
			if keyStarted && retErr != nil {
				*events = append(*events, "mark-failed")
			}
		}()
	}
	defer func() { *events = append(*events, "rollback") }()
	if idempotencyKey != "" {
		if !beginSucceeds {
			return fmt.Errorf("begin idempotency failed")
		}
		keyStarted = true
	}
	return fmt.Errorf("posting failed")
}

func TestFailedPostRollsBackBeforeMarkingKey(t *testing.T) {
	var events []string
	if err := postThenFail(&events, "key-123", true); err == nil {
		t.Fatal("expected failure")
	}
	if len(events) != 2 || events[0] != "rollback" || events[1] != "mark-failed" {
		t.Fatalf("event order = %v, want [rollback mark-failed]", events)
	}
}

func TestFailureBeforeKeyStartedDoesNotMark(t *testing.T) {
	var events []string
	if err := postThenFail(&events, "key-123", false); err == nil {
		t.Fatal("expected failure")
	}
	if len(events) != 1 || events[0] != "rollback" {
		t.Fatalf("event order = %v, want [rollback]", events)
	}
}

func TestCreateEditDeleteLeavesLedgerClean(t *testing.T) {
	p := newFakePoster()

	create := BuildPurchaseIntent(purchaseWithNet(1, "500"))
	edit := MergeIntents(
		BuildPurchaseIntent(purchaseWithNet(1, "1300")),
		BuildPurchaseIntent(purchaseWithNet(1, "500")).Reversed(),
	)
	remove := BuildPurchaseIntent(purchaseWithNet(1, "1300")).Reversed()

	p.post("Vendor:1", handlerPurchaseInvoice, "", create)
	p.post("Vendor:1", handlerPurchaseInvoice, "", edit)
	p.post("Vendor:1", handlerPurchaseInvoice, "", remove)

	if got := p.balances["vendor_payable|1"]; !got.IsZero() {
		t.Fatalf("balance after full lifecycle = %s, want 0", got)
	}
}
