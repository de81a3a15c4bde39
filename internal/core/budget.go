package core

import "time"

type (
	// CategoryAllocation is one category's planned/spent pair inside an
	// allocation record. Spent is a running total of expenses matched to
	// the category across all of the owning user's records, not scoped to
	// the record's own transaction.
	CategoryAllocation struct {
		Category Category `json:"category"`
		Planned  Money    `json:"planned"`
		Spent    Money    `json:"spent"`
	}

	// AllocationRecord splits one income transaction across categories.
	// At most one record exists per (UserID, TransactionID) pair; the
	// budget service enforces this, not storage.
	AllocationRecord struct {
		ID            int64                `json:"id"`
		UserID        int64                `json:"userId"`
		TransactionID int64                `json:"transactionId"`
		Allocations   []CategoryAllocation `json:"allocations"`
		CreatedAt     time.Time            `json:"createdAt"`
		UpdatedAt     time.Time            `json:"updatedAt"`
	}

	// CategorySummary is the derived per-category aggregate across all of
	// a user's allocation records. It is never stored.
	CategorySummary struct {
		Category Category `json:"category"`
		Planned  Money    `json:"planned"`
		Spent    Money    `json:"spent"`
	}
)

func (a CategoryAllocation) Validate() error {
	if !a.Category.Valid() {
		return ErrUnknownCategory
	}
	if a.Planned.Cents < 0 || a.Spent.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Remaining is planned minus spent; negative means overspend.
func (s CategorySummary) Remaining() Money {
	return Money{Cents: s.Planned.Cents - s.Spent.Cents}
}

// SummarizeAllocations folds every allocation entry across the given
// records into one summary per category, by addition. The fold is a pure
// function over the snapshot it is handed: commutative, no cached state.
// Output order is first-encounter order; callers must not rely on it.
func SummarizeAllocations(records []AllocationRecord) []CategorySummary {
	index := make(map[Category]int)
	summaries := make([]CategorySummary, 0, len(records))
	for _, rec := range records {
		for _, alloc := range rec.Allocations {
			i, ok := index[alloc.Category]
			if !ok {
				i = len(summaries)
				index[alloc.Category] = i
				summaries = append(summaries, CategorySummary{Category: alloc.Category})
			}
			summaries[i].Planned.Cents += alloc.Planned.Cents
			summaries[i].Spent.Cents += alloc.Spent.Cents
		}
	}
	return summaries
}

// TotalPlanned sums planned across a summary.
func TotalPlanned(summaries []CategorySummary) Money {
	var total Money
	for _, s := range summaries {
		total.Cents += s.Planned.Cents
	}
	return total
}

// TotalSpent sums spent across a summary.
func TotalSpent(summaries []CategorySummary) Money {
	var total Money
	for _, s := range summaries {
		total.Cents += s.Spent.Cents
	}
	return total
}
