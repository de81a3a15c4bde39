package storage

import (
	"context"
	"path/filepath"
	"testing"

	"dailyfocus/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository, name, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Name: name, Email: email})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := seedUser(t, repo, "Ada", "ada@example.com")
	if u.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, ok, err := repo.UserByEmail(ctx, "ada@example.com")
	if err != nil || !ok {
		t.Fatalf("UserByEmail: ok=%v err=%v", ok, err)
	}
	if got.ID != u.ID || got.Name != "Ada" {
		t.Errorf("got user %+v", got)
	}

	got.Name = "Ada L."
	updated, ok, err := repo.UpdateUser(ctx, got)
	if err != nil || !ok {
		t.Fatalf("UpdateUser: ok=%v err=%v", ok, err)
	}
	if updated.Name != "Ada L." {
		t.Errorf("name = %q, want %q", updated.Name, "Ada L.")
	}

	if _, err := repo.CreateUser(ctx, core.User{Name: "Dup", Email: "ada@example.com"}); err == nil {
		t.Error("expected unique email violation")
	}

	_, ok, err = repo.UserByID(ctx, 999)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if ok {
		t.Error("expected missing user")
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := seedUser(t, repo, "Ada", "ada@example.com")
	other := seedUser(t, repo, "Bob", "bob@example.com")

	if _, err := repo.CreateTask(ctx, core.Task{UserID: u.ID, Title: "Pay rent"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	txn, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: u.ID, Type: core.Expense, Description: "Groceries",
		Amount: core.Money{Cents: 2500}, Category: core.Food,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := repo.InsertAllocationRecord(ctx, core.AllocationRecord{
		UserID: u.ID, TransactionID: txn.ID,
		Allocations: []core.CategoryAllocation{{Category: core.Food, Planned: core.Money{Cents: 10000}}},
	}); err != nil {
		t.Fatalf("InsertAllocationRecord: %v", err)
	}
	group, err := repo.CreateGroup(ctx, core.Group{Name: "Home", OwnerID: u.ID, Members: []int64{other.ID}})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	deleted, ok, err := repo.DeleteUser(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteUser: ok=%v err=%v", ok, err)
	}
	if deleted.Email != "ada@example.com" {
		t.Errorf("deleted email = %q", deleted.Email)
	}

	if tasks, _ := repo.TasksByUser(ctx, u.ID); len(tasks) != 0 {
		t.Errorf("tasks survived delete: %d", len(tasks))
	}
	if txns, _ := repo.TransactionsByUser(ctx, u.ID); len(txns) != 0 {
		t.Errorf("transactions survived delete: %d", len(txns))
	}
	if recs, _ := repo.AllocationRecordsByUser(ctx, u.ID); len(recs) != 0 {
		t.Errorf("allocation records survived delete: %d", len(recs))
	}
	if _, ok, _ := repo.GroupByID(ctx, group.ID); ok {
		t.Error("owned group survived delete")
	}
	if _, ok, _ := repo.UserByID(ctx, other.ID); !ok {
		t.Error("unrelated user removed")
	}
}

func TestTaskAssignedToRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "Ada", "ada@example.com")

	task, err := repo.CreateTask(ctx, core.Task{
		UserID: u.ID, Title: "Plan trip", Priority: "high", AssignedTo: []int64{u.ID, 42},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, ok, err := repo.TaskByID(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("TaskByID: ok=%v err=%v", ok, err)
	}
	if len(got.AssignedTo) != 2 || got.AssignedTo[0] != u.ID || got.AssignedTo[1] != 42 {
		t.Errorf("assignedTo = %v", got.AssignedTo)
	}

	got.Status = "done"
	got.AssignedTo = nil
	updated, ok, err := repo.UpdateTask(ctx, got)
	if err != nil || !ok {
		t.Fatalf("UpdateTask: ok=%v err=%v", ok, err)
	}
	if updated.Status != "done" {
		t.Errorf("status = %q", updated.Status)
	}
	if len(updated.AssignedTo) != 0 {
		t.Errorf("assignedTo = %v, want empty", updated.AssignedTo)
	}

	ok, err = repo.DeleteTask(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTask: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.DeleteTask(ctx, task.ID); ok {
		t.Error("second delete reported success")
	}
}

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	owner := seedUser(t, repo, "Ada", "ada@example.com")
	member := seedUser(t, repo, "Bob", "bob@example.com")

	g, err := repo.CreateGroup(ctx, core.Group{Name: "Home", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if len(g.Members) != 1 || g.Members[0] != owner.ID {
		t.Fatalf("members = %v, want owner only", g.Members)
	}

	if err := repo.AddGroupMember(ctx, g.ID, member.ID); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	if err := repo.AddGroupMember(ctx, g.ID, member.ID); err != nil {
		t.Fatalf("AddGroupMember repeat: %v", err)
	}

	groups, err := repo.GroupsByUser(ctx, member.ID)
	if err != nil {
		t.Fatalf("GroupsByUser: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("groups = %+v", groups)
	}

	task, err := repo.CreateTask(ctx, core.Task{UserID: owner.ID, GroupID: g.ID, Title: "Chores"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	memberTasks, err := repo.TasksByUser(ctx, member.ID)
	if err != nil {
		t.Fatalf("TasksByUser: %v", err)
	}
	if len(memberTasks) != 1 || memberTasks[0].ID != task.ID {
		t.Errorf("member sees tasks %v", memberTasks)
	}

	removed, err := repo.RemoveGroupMember(ctx, g.ID, member.ID)
	if err != nil || !removed {
		t.Fatalf("RemoveGroupMember: removed=%v err=%v", removed, err)
	}
	if groups, _ := repo.GroupsByUser(ctx, member.ID); len(groups) != 0 {
		t.Errorf("membership survived removal: %v", groups)
	}

	ok, err := repo.DeleteGroup(ctx, g.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteGroup: ok=%v err=%v", ok, err)
	}
	if tasks, _ := repo.TasksByGroup(ctx, g.ID); len(tasks) != 0 {
		t.Errorf("group tasks survived delete: %v", tasks)
	}
}

func TestDeleteTransactionRemovesAllocationRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "Ada", "ada@example.com")

	txn, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: u.ID, Type: core.Income, Description: "Salary",
		Amount: core.Money{Cents: 300000}, Category: core.Other,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := repo.InsertAllocationRecord(ctx, core.AllocationRecord{
		UserID: u.ID, TransactionID: txn.ID,
		Allocations: []core.CategoryAllocation{
			{Category: core.Food, Planned: core.Money{Cents: 50000}},
			{Category: core.Bills, Planned: core.Money{Cents: 30000}},
		},
	}); err != nil {
		t.Fatalf("InsertAllocationRecord: %v", err)
	}

	deleted, ok, err := repo.DeleteTransaction(ctx, txn.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTransaction: ok=%v err=%v", ok, err)
	}
	if deleted.Description != "Salary" {
		t.Errorf("deleted = %+v", deleted)
	}
	if recs, _ := repo.AllocationRecordsByUser(ctx, u.ID); len(recs) != 0 {
		t.Errorf("allocation record survived transaction delete: %v", recs)
	}
}

func TestAddSpendFanOut(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "Ada", "ada@example.com")

	for txnID := int64(1); txnID <= 2; txnID++ {
		if _, err := repo.InsertAllocationRecord(ctx, core.AllocationRecord{
			UserID: u.ID, TransactionID: txnID,
			Allocations: []core.CategoryAllocation{
				{Category: core.Food, Planned: core.Money{Cents: 10000}},
				{Category: core.Transport, Planned: core.Money{Cents: 5000}},
			},
		}); err != nil {
			t.Fatalf("InsertAllocationRecord: %v", err)
		}
	}

	matched, err := repo.AddSpend(ctx, u.ID, core.Food, 1500)
	if err != nil {
		t.Fatalf("AddSpend: %v", err)
	}
	if matched != 2 {
		t.Fatalf("matched = %d, want 2", matched)
	}

	recs, err := repo.AllocationRecordsByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("AllocationRecordsByUser: %v", err)
	}
	for _, rec := range recs {
		for _, a := range rec.Allocations {
			want := int64(0)
			if a.Category == core.Food {
				want = 1500
			}
			if a.Spent.Cents != want {
				t.Errorf("record %d %s spent = %d, want %d", rec.ID, a.Category, a.Spent.Cents, want)
			}
		}
	}

	matched, err = repo.AddSpend(ctx, u.ID, core.Savings, 100)
	if err != nil {
		t.Fatalf("AddSpend no match: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched = %d, want 0", matched)
	}
}

func TestSpendEventLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.InsertSpendEvent(ctx, 1, core.Food, 1500)
	if err != nil {
		t.Fatalf("InsertSpendEvent: %v", err)
	}

	pending, err := repo.PendingSpendEvents(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSpendEvents: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id || pending[0].Status != SpendEventPending {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSpendEventApplied(ctx, id); err != nil {
		t.Fatalf("MarkSpendEventApplied: %v", err)
	}
	if pending, _ := repo.PendingSpendEvents(ctx, 10); len(pending) != 0 {
		t.Errorf("applied event still pending: %v", pending)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := seedUser(t, repo, "Ada", "ada@example.com")

	txn, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: u.ID, Type: core.Expense, Description: "Groceries",
		Amount: core.Money{Cents: 2500}, Category: core.Food,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := repo.InsertAllocationRecord(ctx, core.AllocationRecord{
		UserID: u.ID, TransactionID: txn.ID,
		Allocations: []core.CategoryAllocation{
			{Category: core.Food, Planned: core.Money{Cents: 10000}, Spent: core.Money{Cents: 2500}},
		},
	}); err != nil {
		t.Fatalf("InsertAllocationRecord: %v", err)
	}
	if _, err := repo.CreateTask(ctx, core.Task{UserID: u.ID, Title: "Budget review"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	backup, err := repo.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if backup.Version != "4.0.0" {
		t.Errorf("version = %q", backup.Version)
	}
	if len(backup.Data.Users) != 1 || len(backup.Data.Transactions) != 1 || len(backup.Data.Budgets) != 1 {
		t.Fatalf("backup data = %+v", backup.Data)
	}

	other := newTestRepo(t)
	if err := other.RestoreAll(ctx, backup); err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}

	restored, err := other.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll after restore: %v", err)
	}
	if len(restored.Data.Users) != 1 || restored.Data.Users[0].Email != "ada@example.com" {
		t.Errorf("restored users = %+v", restored.Data.Users)
	}
	if len(restored.Data.Budgets) != 1 || restored.Data.Budgets[0].Allocations[0].Spent.Cents != 2500 {
		t.Errorf("restored budgets = %+v", restored.Data.Budgets)
	}
	if len(restored.Data.Tasks) != 1 {
		t.Errorf("restored tasks = %+v", restored.Data.Tasks)
	}
}
