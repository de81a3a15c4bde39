package core

import "testing"

func TestSummarizeAllocationsEmpty(t *testing.T) {
	got := SummarizeAllocations(nil)
	if len(got) != 0 {
		t.Fatalf("expected empty summary, got %d entries", len(got))
	}
	got = SummarizeAllocations([]AllocationRecord{})
	if len(got) != 0 {
		t.Fatalf("expected empty summary, got %d entries", len(got))
	}
}

func TestSummarizeAllocationsFold(t *testing.T) {
	records := []AllocationRecord{
		{ID: 1, UserID: 7, Allocations: []CategoryAllocation{
			{Category: Food, Planned: Money{Cents: 10000}, Spent: Money{Cents: 2000}},
		}},
		{ID: 2, UserID: 7, Allocations: []CategoryAllocation{
			{Category: Food, Planned: Money{Cents: 5000}, Spent: Money{Cents: 2000}},
			{Category: Transport, Planned: Money{Cents: 3000}},
		}},
	}

	got := SummarizeAllocations(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}

	byCat := map[Category]CategorySummary{}
	for _, s := range got {
		byCat[s.Category] = s
	}
	food := byCat[Food]
	if food.Planned.Cents != 15000 || food.Spent.Cents != 4000 {
		t.Fatalf("Food: got planned=%d spent=%d", food.Planned.Cents, food.Spent.Cents)
	}
	transport := byCat[Transport]
	if transport.Planned.Cents != 3000 || transport.Spent.Cents != 0 {
		t.Fatalf("Transport: got planned=%d spent=%d", transport.Planned.Cents, transport.Spent.Cents)
	}

	if TotalPlanned(got).Cents != 18000 {
		t.Fatalf("total planned: got %d", TotalPlanned(got).Cents)
	}
	if TotalSpent(got).Cents != 4000 {
		t.Fatalf("total spent: got %d", TotalSpent(got).Cents)
	}
}

func TestSummarizeAllocationsOrderIndependent(t *testing.T) {
	a := AllocationRecord{ID: 1, Allocations: []CategoryAllocation{
		{Category: Food, Planned: Money{Cents: 100}, Spent: Money{Cents: 10}},
	}}
	b := AllocationRecord{ID: 2, Allocations: []CategoryAllocation{
		{Category: Food, Planned: Money{Cents: 200}, Spent: Money{Cents: 20}},
		{Category: Bills, Planned: Money{Cents: 50}},
	}}

	ab := SummarizeAllocations([]AllocationRecord{a, b})
	ba := SummarizeAllocations([]AllocationRecord{b, a})

	sums := func(in []CategorySummary) map[Category][2]int64 {
		out := map[Category][2]int64{}
		for _, s := range in {
			out[s.Category] = [2]int64{s.Planned.Cents, s.Spent.Cents}
		}
		return out
	}
	sa, sb := sums(ab), sums(ba)
	if len(sa) != len(sb) {
		t.Fatalf("category counts differ: %d vs %d", len(sa), len(sb))
	}
	for cat, v := range sa {
		if sb[cat] != v {
			t.Fatalf("%s differs: %v vs %v", cat, v, sb[cat])
		}
	}
}

func TestCategorySummaryRemaining(t *testing.T) {
	s := CategorySummary{Category: Food, Planned: Money{Cents: 100}, Spent: Money{Cents: 130}}
	if got := s.Remaining().Cents; got != -30 {
		t.Fatalf("remaining: got %d, want -30 (overspend)", got)
	}
}
