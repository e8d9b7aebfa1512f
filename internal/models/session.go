package models

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrDuplicateGuest marks a guest code already scanned into the same session.
var ErrDuplicateGuest = errors.New("duplicate guest ID")

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// ActivitySession is a timed activity (play area, slide, ...) run at an
// establishment. Created on start, mutated once on stop or via replay update.
type ActivitySession struct {
	ID              string          `json:"id"`
	EstablishmentID string          `json:"establishment_id"`
	ActivityName    string          `json:"activity_name"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Status          string          `json:"status"`
	Guests          json.RawMessage `json:"guests,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type SessionStartInput struct {
	EstablishmentID string
	ActivityName    string
	StartTime       time.Time
	Guests          json.RawMessage
}

// SessionUpdateInput carries a partial update; nil fields are left untouched.
type SessionUpdateInput struct {
	ActivityName *string
	EndTime      *time.Time
	Status       *string
	Guests       json.RawMessage
}

// SessionCode is one guest code scanned into a session. Unique per session,
// unlike admission codes which are flagged and kept.
type SessionCode struct {
	ID        uint64    `json:"id"`
	SessionID string    `json:"session_id"`
	Code      string    `json:"code"`
	ScannedAt time.Time `json:"scanned_at"`
}

// TerminalConfig is the per-hostname JSON configuration document served to
// terminals on boot.
type TerminalConfig struct {
	Hostname    string          `json:"hostname"`
	Config      json.RawMessage `json:"config"`
	IsPublished bool            `json:"is_published"`
	PublishAt   *time.Time      `json:"publish_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
