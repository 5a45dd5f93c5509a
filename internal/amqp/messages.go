package amqp

import (
	"encoding/json"
	"time"
)

// EntryRecordedMessage tells the export worker that a bucket changed.
// It carries the bucket key, not the amounts: the worker re-reads the
// authoritative totals from the database before rendering.
type EntryRecordedMessage struct {
	ChatID       int64     `json:"chat_id"`
	BusinessDate string    `json:"business_date"`
	Shift        string    `json:"shift"`
	Currency     string    `json:"currency"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewEntryRecordedMessage(chatID int64, businessDate, shift, currency string) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		ChatID:       chatID,
		BusinessDate: businessDate,
		Shift:        shift,
		Currency:     currency,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryRecordedMessageFromJSON creates a message from JSON bytes
func EntryRecordedMessageFromJSON(data []byte) (*EntryRecordedMessage, error) {
	var msg EntryRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
