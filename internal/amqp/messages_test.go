package amqp

import (
	"testing"
	"time"

	"dailyfocus/internal/core"
)

func TestNewSpendEventMessage(t *testing.T) {
	msg := NewSpendEventMessage(7, 42, core.Food, 1500)

	if msg.EventID != 7 {
		t.Errorf("EventID = %v, want 7", msg.EventID)
	}
	if msg.UserID != 42 {
		t.Errorf("UserID = %v, want 42", msg.UserID)
	}
	if msg.Category != core.Food {
		t.Errorf("Category = %v, want Food", msg.Category)
	}
	if msg.AmountCents != 1500 {
		t.Errorf("AmountCents = %v, want 1500", msg.AmountCents)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestSpendEventMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &SpendEventMessage{
		EventID:     7,
		UserID:      42,
		Category:    core.Transport,
		AmountCents: 900,
		Timestamp:   timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SpendEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SpendEventMessageFromJSON() error = %v", err)
	}

	if parsed.EventID != msg.EventID {
		t.Errorf("Parsed EventID = %v, want %v", parsed.EventID, msg.EventID)
	}
	if parsed.Category != msg.Category {
		t.Errorf("Parsed Category = %v, want %v", parsed.Category, msg.Category)
	}
	if parsed.AmountCents != msg.AmountCents {
		t.Errorf("Parsed AmountCents = %v, want %v", parsed.AmountCents, msg.AmountCents)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSpendEventMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"eventId": "not_a_number"}`)

	if _, err := SpendEventMessageFromJSON(invalidJSON); err == nil {
		t.Error("SpendEventMessageFromJSON() should fail with invalid JSON")
	}
}
