package models

import (
	"testing"
)

func entry(itemId int, kgs, rate string) StockOutEntry {
	return StockOutEntry{
		ItemId:        itemId,
		QuantityInKgs: d(kgs),
		Rate:          d(rate),
	}
}

func TestAggregateStockOutEntriesWeightedAverage(t *testing.T) {
	// 10kg @ 5 + 20kg @ 8 -> 30kg @ 7.00
	lines := AggregateStockOutEntries([]StockOutEntry{
		entry(1, "10", "5"),
		entry(1, "20", "8"),
	})
	if len(lines) != 1 {
		t.Fatalf("expected 1 aggregated line, got %d", len(lines))
	}
	if !lines[0].Weight.Equal(d("30")) {
		t.Fatalf("weight = %s, want 30", lines[0].Weight)
	}
	if !lines[0].Rate.Equal(d("7.00")) {
		t.Fatalf("rate = %s, want 7.00", lines[0].Rate)
	}
}

func TestAggregateStockOutEntriesZeroWeight(t *testing.T) {
	lines := AggregateStockOutEntries([]StockOutEntry{
		{ItemId: 1, QuantityInCrates: d("5"), Rate: d("40")},
		{ItemId: 1, QuantityInCrates: d("3"), Rate: d("50")},
	})
	if len(lines) != 1 {
		t.Fatalf("expected 1 aggregated line, got %d", len(lines))
	}
	if !lines[0].Crates.Equal(d("8")) {
		t.Fatalf("crates = %s, want 8", lines[0].Crates)
	}
	// No weight to average by; a made-up rate would be worse than none.
	if !lines[0].Rate.IsZero() {
		t.Fatalf("rate with zero total weight = %s, want 0", lines[0].Rate)
	}
}

func TestAggregateStockOutEntriesPreservesFirstSeenOrder(t *testing.T) {
	lines := AggregateStockOutEntries([]StockOutEntry{
		entry(7, "1", "10"),
		entry(3, "2", "20"),
		entry(7, "4", "10"),
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 aggregated lines, got %d", len(lines))
	}
	if lines[0].ItemId != 7 || lines[1].ItemId != 3 {
		t.Fatalf("order = [%d %d], want [7 3]", lines[0].ItemId, lines[1].ItemId)
	}
	if !lines[0].Weight.Equal(d("5")) {
		t.Fatalf("item 7 weight = %s, want 5", lines[0].Weight)
	}
}

func TestAggregateStockOutEntriesRecomputeIsExact(t *testing.T) {
	entries := []StockOutEntry{
		entry(1, "12.5", "6.3"),
		entry(1, "7.5", "9.1"),
		entry(2, "40", "3"),
	}
	first := AggregateStockOutEntries(entries)
	second := AggregateStockOutEntries(entries)
	if len(first) != len(second) {
		t.Fatalf("line counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ItemId != second[i].ItemId ||
			!first[i].Weight.Equal(second[i].Weight) ||
			!first[i].Rate.Equal(second[i].Rate) {
			t.Fatalf("recompute drifted at line %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
