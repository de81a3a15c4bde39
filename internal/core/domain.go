package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Budget categories form a closed set. Allocation entries and expense
// transactions must use one of these names exactly; matching is
// case-sensitive with no normalization.
const (
	Housing   Category = "Housing"
	Food      Category = "Food"
	Transport Category = "Transport"
	Health    Category = "Health"
	Education Category = "Education"
	Leisure   Category = "Leisure"
	Shopping  Category = "Shopping"
	Bills     Category = "Bills"
	Savings   Category = "Savings"
	Other     Category = "Other"
)

type (
	TransactionType string

	Category string

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Category    Category        `json:"category"`
		Date        string          `json:"date"` // ISO date (YYYY-MM-DD)
		Notes       string          `json:"notes,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	User struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Password  string    `json:"password,omitempty"`
		Avatar    string    `json:"avatar,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Task struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"userId"`
		GroupID     int64     `json:"groupId,omitempty"` // 0 means personal task
		Title       string    `json:"title"`
		Description string    `json:"description,omitempty"`
		Priority    string    `json:"priority,omitempty"`
		DueDate     string    `json:"dueDate,omitempty"`
		Status      string    `json:"status,omitempty"`
		AssignedTo  []int64   `json:"assignedTo"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	Group struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		OwnerID     int64     `json:"ownerId"`
		Members     []int64   `json:"members"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyEmail       = errors.New("empty email")
)

// Categories returns the full fixed category set in display order.
func Categories() []Category {
	return []Category{
		Housing, Food, Transport, Health, Education,
		Leisure, Shopping, Bills, Savings, Other,
	}
}

// ParseCategory maps a name to the closed category set. The match is
// exact: no trimming beyond surrounding whitespace, no case folding.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.TrimSpace(name))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !t.Category.Valid() {
		return ErrUnknownCategory
	}
	return nil
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Name)) == 0 {
		return ErrEmptyName
	}
	if len(strings.TrimSpace(u.Email)) == 0 {
		return ErrEmptyEmail
	}
	return nil
}

func (t Task) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	return nil
}

func (g Group) Validate() error {
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyName
	}
	return nil
}
