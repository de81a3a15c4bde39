// Package budget implements the allocation engine: it validates and
// persists per-transaction allocation records, aggregates spend into
// them, and projects per-user category summaries.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"dailyfocus/internal/core"
)

// Store is the ledger surface the engine needs. Reads are fully
// consistent with completed writes. AddSpend must be an atomic
// increment at the storage layer; it reports how many allocation rows
// it touched.
type Store interface {
	AllocationRecordsByUser(ctx context.Context, userID int64) ([]core.AllocationRecord, error)
	AllocationRecordByID(ctx context.Context, id int64) (core.AllocationRecord, bool, error)
	AllocationRecordByTransaction(ctx context.Context, userID, transactionID int64) (core.AllocationRecord, bool, error)
	InsertAllocationRecord(ctx context.Context, rec core.AllocationRecord) (core.AllocationRecord, error)
	ReplaceAllocationRecord(ctx context.Context, id int64, allocations []core.CategoryAllocation) (core.AllocationRecord, bool, error)
	DeleteAllocationRecord(ctx context.Context, id int64) (bool, error)
	AddSpend(ctx context.Context, userID int64, category core.Category, amountCents int64) (int64, error)
}

// Service is the allocation engine. All mutations for a given user are
// serialized through a per-user lock so concurrent writes cannot race
// each other between read and write.
type Service struct {
	store Store

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// CreateAllocation stores a new allocation record for the transaction.
// Entries with zero planned amount are dropped (the client submits the
// full category list and the user fills in a few); at least one entry
// with planned > 0 must remain. Caller-supplied spent values are ignored
// and forced to zero.
func (s *Service) CreateAllocation(ctx context.Context, userID, transactionID int64, allocations []core.CategoryAllocation) (core.AllocationRecord, error) {
	cleaned, err := normalizeAllocations(allocations)
	if err != nil {
		return core.AllocationRecord{}, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	_, exists, err := s.store.AllocationRecordByTransaction(ctx, userID, transactionID)
	if err != nil {
		return core.AllocationRecord{}, storageErr("lookup allocation by transaction", err)
	}
	if exists {
		return core.AllocationRecord{}, fmt.Errorf("%w: user=%d transaction=%d", ErrDuplicate, userID, transactionID)
	}

	rec, err := s.store.InsertAllocationRecord(ctx, core.AllocationRecord{
		UserID:        userID,
		TransactionID: transactionID,
		Allocations:   cleaned,
	})
	if err != nil {
		return core.AllocationRecord{}, storageErr("insert allocation record", err)
	}

	slog.InfoContext(ctx, "Allocation record created",
		"record_id", rec.ID,
		"user_id", userID,
		"transaction_id", transactionID,
		"categories", len(rec.Allocations))
	return rec, nil
}

// UpdateAllocation replaces the record's allocation list wholesale.
// Spent totals are merged by category key: a category that survives the
// update keeps its accumulated spent, a category that disappears loses
// it. Spent values in the input are ignored.
func (s *Service) UpdateAllocation(ctx context.Context, recordID int64, allocations []core.CategoryAllocation) (core.AllocationRecord, error) {
	cleaned, err := normalizeAllocations(allocations)
	if err != nil {
		return core.AllocationRecord{}, err
	}

	existing, ok, err := s.store.AllocationRecordByID(ctx, recordID)
	if err != nil {
		return core.AllocationRecord{}, storageErr("lookup allocation record", err)
	}
	if !ok {
		return core.AllocationRecord{}, fmt.Errorf("%w: id=%d", ErrNotFound, recordID)
	}

	lock := s.userLock(existing.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent spend may have bumped totals
	// between the unlocked lookup and here.
	existing, ok, err = s.store.AllocationRecordByID(ctx, recordID)
	if err != nil {
		return core.AllocationRecord{}, storageErr("lookup allocation record", err)
	}
	if !ok {
		return core.AllocationRecord{}, fmt.Errorf("%w: id=%d", ErrNotFound, recordID)
	}

	prior := make(map[core.Category]int64, len(existing.Allocations))
	for _, a := range existing.Allocations {
		prior[a.Category] = a.Spent.Cents
	}
	for i := range cleaned {
		cleaned[i].Spent = core.Money{Cents: prior[cleaned[i].Category]}
	}

	rec, ok, err := s.store.ReplaceAllocationRecord(ctx, recordID, cleaned)
	if err != nil {
		return core.AllocationRecord{}, storageErr("replace allocation record", err)
	}
	if !ok {
		return core.AllocationRecord{}, fmt.Errorf("%w: id=%d", ErrNotFound, recordID)
	}

	slog.InfoContext(ctx, "Allocation record updated",
		"record_id", rec.ID,
		"user_id", rec.UserID,
		"categories", len(rec.Allocations))
	return rec, nil
}

// GetAllocationByTransaction returns the record tied to the transaction.
// Absence is a normal state (an income transaction not yet allocated),
// reported via ok=false rather than an error.
func (s *Service) GetAllocationByTransaction(ctx context.Context, userID, transactionID int64) (core.AllocationRecord, bool, error) {
	rec, ok, err := s.store.AllocationRecordByTransaction(ctx, userID, transactionID)
	if err != nil {
		return core.AllocationRecord{}, false, storageErr("lookup allocation by transaction", err)
	}
	return rec, ok, nil
}

// DeleteAllocation removes an allocation record.
func (s *Service) DeleteAllocation(ctx context.Context, recordID int64) error {
	rec, ok, err := s.store.AllocationRecordByID(ctx, recordID)
	if err != nil {
		return storageErr("lookup allocation record", err)
	}
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, recordID)
	}

	lock := s.userLock(rec.UserID)
	lock.Lock()
	defer lock.Unlock()

	ok, err = s.store.DeleteAllocationRecord(ctx, recordID)
	if err != nil {
		return storageErr("delete allocation record", err)
	}
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, recordID)
	}
	slog.InfoContext(ctx, "Allocation record deleted", "record_id", recordID, "user_id", rec.UserID)
	return nil
}

// RecordSpend adds amount to the matching category entry of every
// allocation record the user owns. A single expense can increment spent
// in multiple records; per-record values are partial contributions that
// the summary re-aggregates. Returns ErrNoMatchingCategory when the
// category is not budgeted anywhere; callers recording an expense treat
// that as informational.
func (s *Service) RecordSpend(ctx context.Context, userID int64, category core.Category, amount core.Money) error {
	if !amount.Positive() {
		return fmt.Errorf("%w: spend amount must be positive", ErrValidation)
	}
	if !category.Valid() {
		return fmt.Errorf("%w: %s", ErrValidation, core.ErrUnknownCategory)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	matched, err := s.store.AddSpend(ctx, userID, category, amount.Cents)
	if err != nil {
		return storageErr("add spend", err)
	}
	if matched == 0 {
		return fmt.Errorf("%w: user=%d category=%s", ErrNoMatchingCategory, userID, category)
	}

	slog.InfoContext(ctx, "Spend recorded",
		"user_id", userID,
		"category", category,
		"amount_cents", amount.Cents,
		"records_touched", matched)
	return nil
}

// GetSummary folds all of the user's allocation records into per-category
// totals. A user with no records gets an empty list, never an error. The
// summary is recomputed from a fresh snapshot on every call; any caching
// happens above this layer with explicit invalidation.
func (s *Service) GetSummary(ctx context.Context, userID int64) ([]core.CategorySummary, error) {
	records, err := s.store.AllocationRecordsByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("list allocation records", err)
	}
	return core.SummarizeAllocations(records), nil
}

// normalizeAllocations validates input entries, drops the zero-planned
// ones, zeroes spent, and requires at least one positive planned amount.
func normalizeAllocations(allocations []core.CategoryAllocation) ([]core.CategoryAllocation, error) {
	cleaned := make([]core.CategoryAllocation, 0, len(allocations))
	seen := make(map[core.Category]bool, len(allocations))
	for _, a := range allocations {
		if !a.Category.Valid() {
			return nil, fmt.Errorf("%w: %s %q", ErrValidation, core.ErrUnknownCategory, a.Category)
		}
		if a.Planned.Cents < 0 {
			return nil, fmt.Errorf("%w: negative planned amount for %s", ErrValidation, a.Category)
		}
		if a.Planned.Cents == 0 {
			continue
		}
		if seen[a.Category] {
			return nil, fmt.Errorf("%w: duplicate category %s", ErrValidation, a.Category)
		}
		seen[a.Category] = true
		cleaned = append(cleaned, core.CategoryAllocation{Category: a.Category, Planned: a.Planned})
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one allocation with planned > 0 required", ErrValidation)
	}
	return cleaned, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
