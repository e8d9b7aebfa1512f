package messages

import (
	"encoding/json"
	"time"
)

// Replay action types, in the order terminals record them while offline.
const (
	ReplayActionStart   = "start"
	ReplayActionStop    = "stop"
	ReplayActionUpdate  = "update"
	ReplayActionCheckIn = "checkIn"
)

// ReplayBatch is the queue a terminal accumulated while disconnected.
type ReplayBatch struct {
	TerminalID string         `json:"terminal_id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Actions    []ReplayAction `json:"actions"`
}

// ReplayAction is one recorded action. Payload shape depends on Type and is
// decoded by the reconciler.
type ReplayAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type StartPayload struct {
	EstablishmentID string          `json:"establishment_id"`
	ActivityName    string          `json:"activity_name"`
	StartTime       time.Time       `json:"start_time"`
	Guests          json.RawMessage `json:"guests,omitempty"`
}

type StopPayload struct {
	SessionID string    `json:"session_id"`
	EndTime   time.Time `json:"end_time"`
}

type UpdatePayload struct {
	SessionID    string          `json:"session_id"`
	ActivityName *string         `json:"activity_name,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	Status       *string         `json:"status,omitempty"`
	Guests       json.RawMessage `json:"guests,omitempty"`
}

type CheckInPayload struct {
	NumberOfKids  int           `json:"number_of_kids"`
	SafetyChecked bool          `json:"safety_checked"`
	Timestamp     time.Time     `json:"timestamp"`
	Tickets       []ScannedCode `json:"tickets,omitempty"`
	Bracelets     []ScannedCode `json:"bracelets,omitempty"`
}
