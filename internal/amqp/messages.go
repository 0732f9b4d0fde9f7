package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried by clock messages.
const (
	KindClockIn  = "clock_in"
	KindClockOut = "clock_out"
)

// ClockEventMessage notifies downstream consumers that a caregiver clocked
// in or out. It carries only identifiers and the shift outcome, consumers
// fetch the full entry from the API if they need more.
type ClockEventMessage struct {
	EntryID     int64     `json:"entryId"`
	CaregiverID string    `json:"caregiverId"`
	Kind        string    `json:"kind"`
	At          time.Time `json:"at"`
	TotalHours  *float64  `json:"totalHours,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewClockInMessage creates an event for a shift that just started.
func NewClockInMessage(entryID int64, caregiverID string, at time.Time) *ClockEventMessage {
	return &ClockEventMessage{
		EntryID:     entryID,
		CaregiverID: caregiverID,
		Kind:        KindClockIn,
		At:          at,
		Timestamp:   time.Now(),
	}
}

// NewClockOutMessage creates an event for a completed shift.
func NewClockOutMessage(entryID int64, caregiverID string, at time.Time, totalHours float64) *ClockEventMessage {
	return &ClockEventMessage{
		EntryID:     entryID,
		CaregiverID: caregiverID,
		Kind:        KindClockOut,
		At:          at,
		TotalHours:  &totalHours,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ClockEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClockEventMessageFromJSON creates a message from JSON bytes
func ClockEventMessageFromJSON(data []byte) (*ClockEventMessage, error) {
	var msg ClockEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
