package models

import (
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by storage lookups for missing or soft-deleted rows.
var ErrNotFound = errors.New("not found")

// TicketKind selects the duplicate namespace. A code scanned as a ticket and
// again as a bracelet is an original in both namespaces.
type TicketKind string

const (
	KindTicket   TicketKind = "ticket"
	KindBracelet TicketKind = "bracelet"
)

type CheckIn struct {
	TransactionID string     `json:"transaction_id"`
	NumberOfKids  int        `json:"number_of_kids"`
	SafetyChecked bool       `json:"safety_checked"`
	ArrivedAt     time.Time  `json:"timestamp"`
	Tickets       []*Ticket  `json:"tickets"`
	Bracelets     []*Ticket  `json:"bracelets"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Ticket is one scanned admission code (ticket or bracelet row, depending on
// table). Duplicate is frozen at insertion time and never re-evaluated.
type Ticket struct {
	ID        uint64     `json:"id"`
	CheckInID string     `json:"check_in_id"`
	Code      string     `json:"code"`
	Duplicate bool       `json:"duplicate"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type CheckInCreateInput struct {
	NumberOfKids  int
	SafetyChecked bool
	ArrivedAt     time.Time
	TicketCodes   []string
	BraceletCodes []string
}

// CodeCount is the number of scanned codes the input contributes to the
// running totals (tickets plus bracelets).
func (in CheckInCreateInput) CodeCount() int {
	return len(in.TicketCodes) + len(in.BraceletCodes)
}

type CheckInPage struct {
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Items       []*CheckIn `json:"items"`
}

// CounterSnapshot mirrors the running totals for the active counting period.
// It is a best-effort view held in Redis, not transactionally tied to the
// durable rows.
type CounterSnapshot struct {
	TotalCheckIns int64 `json:"totalCheckIns"`
	TotalKids     int64 `json:"totalKids"`
	TotalCodes    int64 `json:"totalCodes"`
}
