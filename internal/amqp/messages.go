package amqp

import (
	"encoding/json"
	"time"

	"dailyfocus/internal/core"
)

// SpendEventMessage tells the worker to apply one expense against the
// owner's allocations. EventID points at the durable spend_events row;
// the payload carries enough to apply without a lookup.
type SpendEventMessage struct {
	EventID     int64         `json:"eventId"`
	UserID      int64         `json:"userId"`
	Category    core.Category `json:"category"`
	AmountCents int64         `json:"amountCents"`
	Timestamp   time.Time     `json:"timestamp"`
}

func NewSpendEventMessage(eventID, userID int64, category core.Category, amountCents int64) *SpendEventMessage {
	return &SpendEventMessage{
		EventID:     eventID,
		UserID:      userID,
		Category:    category,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

func (m *SpendEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SpendEventMessageFromJSON(data []byte) (*SpendEventMessage, error) {
	var msg SpendEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
