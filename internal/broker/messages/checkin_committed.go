package messages

import (
	"time"
)

// CheckInCommitted is published after a check-in transaction commits.
// Consumers must treat it as at-least-once.
type CheckInCommitted struct {
	TransactionID string    `json:"transaction_id"`
	NumberOfKids  int       `json:"number_of_kids"`
	SafetyChecked bool      `json:"safety_checked"`
	ArrivedAt     time.Time `json:"arrived_at"`
	CommittedAt   time.Time `json:"committed_at"`

	Tickets   []ScannedCode `json:"tickets,omitempty"`
	Bracelets []ScannedCode `json:"bracelets,omitempty"`
}

type ScannedCode struct {
	Code      string `json:"code"`
	Duplicate bool   `json:"duplicate"`
}
