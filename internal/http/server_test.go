package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dailyfocus/internal/amqp"
	"dailyfocus/internal/budget"
	"dailyfocus/internal/core"
	"dailyfocus/internal/storage"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.SpendEventMessage
	err      error
}

func (f *fakePublisher) PublishSpendEvent(_ context.Context, msg *amqp.SpendEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func newTestServer(t *testing.T, publisher SpendPublisher) (*Server, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	srv := NewServer(":0", repo, budget.NewService(repo), publisher, 64, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, repo
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func createUser(t *testing.T, srv *Server, name, email string) core.User {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{
		"name": name, "email": email, "password": "secret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[core.User](t, rr)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestUserLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	u := createUser(t, srv, "Ada", "ada@example.com")
	if u.ID == 0 || u.Password != "" && u.Password != "secret" {
		t.Fatalf("unexpected user %+v", u)
	}

	// Duplicate email conflicts.
	rr := doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{
		"name": "Other", "email": "ada@example.com",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate email status=%d", rr.Code)
	}

	// Missing name is rejected.
	rr = doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{"email": "x@example.com"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid user status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/users/%d", u.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get user status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/users/email/ada@example.com", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get user by email status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/users/999", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing user status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/users/%d", u.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete user status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/users/%d", u.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createUser(t, srv, "Ada", "ada@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/login", map[string]string{
		"email": "ada@example.com", "password": "secret",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/login", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d", rr.Code)
	}
}

func TestTaskFilters(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ada := createUser(t, srv, "Ada", "ada@example.com")
	bob := createUser(t, srv, "Bob", "bob@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"userId": ada.ID, "title": "Pay rent",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"userId": bob.ID, "title": "Call bank",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/tasks?userId=%d", ada.ID), nil)
	tasks := decode[[]core.Task](t, rr)
	if len(tasks) != 1 || tasks[0].Title != "Pay rent" {
		t.Fatalf("filtered tasks = %+v", tasks)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/tasks", nil)
	if all := decode[[]core.Task](t, rr); len(all) != 2 {
		t.Fatalf("all tasks = %+v", all)
	}

	// Unknown owner is rejected.
	rr = doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"userId": 999, "title": "Orphan",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("orphan task status=%d", rr.Code)
	}
}

func TestGroupMembers(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ada := createUser(t, srv, "Ada", "ada@example.com")
	bob := createUser(t, srv, "Bob", "bob@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/groups", map[string]any{
		"name": "Home", "ownerId": ada.ID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group status=%d body=%s", rr.Code, rr.Body.String())
	}
	group := decode[core.Group](t, rr)
	if len(group.Members) != 1 || group.Members[0] != ada.ID {
		t.Fatalf("group members = %v", group.Members)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/groups/%d/members", group.ID), map[string]any{
		"userId": bob.ID,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add member status=%d", rr.Code)
	}
	if g := decode[core.Group](t, rr); len(g.Members) != 2 {
		t.Fatalf("members after add = %v", g.Members)
	}

	// Owner cannot be removed.
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/groups/%d/members/%d", group.ID, ada.ID), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("remove owner status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/groups/%d/members/%d", group.ID, bob.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove member status=%d", rr.Code)
	}
}

func TestCreateExpensePublishesSpendEvent(t *testing.T) {
	pub := &fakePublisher{}
	srv, repo := newTestServer(t, pub)
	ada := createUser(t, srv, "Ada", "ada@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"userId": ada.ID, "type": "expense", "description": "Groceries",
		"amount": "25.00", "category": "Food", "date": "2025-03-01",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transaction status=%d body=%s", rr.Code, rr.Body.String())
	}
	txn := decode[core.Transaction](t, rr)
	if txn.Amount.Cents != 2500 {
		t.Fatalf("amount = %d, want 2500", txn.Amount.Cents)
	}

	pub.mu.Lock()
	if len(pub.messages) != 1 || pub.messages[0].AmountCents != 2500 {
		t.Fatalf("published = %+v", pub.messages)
	}
	pub.mu.Unlock()

	// Durable pending row exists until the worker applies it.
	pending, err := repo.PendingSpendEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("PendingSpendEvents: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending events = %+v", pending)
	}
}

func TestCreateExpenseInlineSpend(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ada := createUser(t, srv, "Ada", "ada@example.com")

	// Income to budget against.
	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"userId": ada.ID, "type": "income", "description": "Salary",
		"amount": "3000.00", "category": "Other", "date": "2025-03-01",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create income status=%d", rr.Code)
	}
	income := decode[core.Transaction](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/budgets", map[string]any{
		"userId": ada.ID, "transactionId": income.ID,
		"allocations": []map[string]string{
			{"category": "Food", "planned": "150.00"},
			{"category": "Transport", "planned": "30.00"},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Expense applies inline without a publisher.
	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"userId": ada.ID, "type": "expense", "description": "Groceries",
		"amount": "40.00", "category": "Food", "date": "2025-03-02",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create expense status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/budgets/summary/%d", ada.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	summary := decode[struct {
		Categories []core.CategorySummary `json:"categories"`
	}](t, rr)
	if len(summary.Categories) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Categories[0].Category != core.Food || summary.Categories[0].Spent.Cents != 4000 {
		t.Errorf("food summary = %+v", summary.Categories[0])
	}
	if got := summary.Categories[0].Remaining(); got.Cents != 11000 {
		t.Errorf("food remaining = %d, want 11000", got.Cents)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ada := createUser(t, srv, "Ada", "ada@example.com")

	create := func(transactionID int64) *httptest.ResponseRecorder {
		return doJSON(t, srv, http.MethodPost, "/api/budgets", map[string]any{
			"userId": ada.ID, "transactionId": transactionID,
			"allocations": []map[string]string{{"category": "Food", "planned": "100.00"}},
		})
	}

	rr := create(1)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	record := decode[core.AllocationRecord](t, rr)

	// One allocation record per transaction.
	if rr := create(1); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d", rr.Code)
	}

	// Unknown category is rejected.
	rr = doJSON(t, srv, http.MethodPost, "/api/budgets", map[string]any{
		"userId": ada.ID, "transactionId": 2,
		"allocations": []map[string]string{{"category": "Candy", "planned": "5.00"}},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/budgets/transaction/1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("by transaction status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/budgets/transaction/99", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing by transaction status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/budgets/%d", record.ID), map[string]any{
		"allocations": []map[string]string{{"category": "Bills", "planned": "80.00"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[core.AllocationRecord](t, rr)
	if len(updated.Allocations) != 1 || updated.Allocations[0].Category != core.Bills {
		t.Fatalf("updated allocations = %+v", updated.Allocations)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/budgets/%d", record.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/budgets/%d", record.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestSummaryCacheInvalidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ada := createUser(t, srv, "Ada", "ada@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/budgets", map[string]any{
		"userId": ada.ID, "transactionId": 1,
		"allocations": []map[string]string{{"category": "Food", "planned": "100.00"}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget status=%d", rr.Code)
	}

	// Prime the cache.
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/budgets/summary/%d", ada.ID), nil)
	first := decode[struct {
		Categories []core.CategorySummary `json:"categories"`
	}](t, rr)
	if len(first.Categories) != 1 {
		t.Fatalf("summary = %+v", first)
	}

	// A new allocation must show up in the next summary read.
	rr = doJSON(t, srv, http.MethodPost, "/api/budgets", map[string]any{
		"userId": ada.ID, "transactionId": 2,
		"allocations": []map[string]string{{"category": "Bills", "planned": "50.00"}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("second budget status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/budgets/summary/%d", ada.ID), nil)
	second := decode[struct {
		Categories []core.CategorySummary `json:"categories"`
	}](t, rr)
	if len(second.Categories) != 2 {
		t.Fatalf("summary after mutation = %+v", second)
	}
}

func TestBackupRoundTripHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createUser(t, srv, "Ada", "ada@example.com")

	rr := doJSON(t, srv, http.MethodGet, "/api/backup", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	backup := decode[storage.Backup](t, rr)
	if backup.Version != "4.0.0" || len(backup.Data.Users) != 1 {
		t.Fatalf("backup = %+v", backup)
	}

	// Restore into a fresh server.
	srv2, _ := newTestServer(t, nil)
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(backup); err != nil {
		t.Fatalf("encode backup: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/backup/restore", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv2.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status=%d body=%s", rec.Code, rec.Body.String())
	}

	rr = doJSON(t, srv2, http.MethodGet, "/api/users", nil)
	if users := decode[[]core.User](t, rr); len(users) != 1 || users[0].Email != "ada@example.com" {
		t.Fatalf("restored users = %+v", users)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid body status=%d", rr.Code)
	}
}
