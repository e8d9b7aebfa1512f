package admissions

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/broker/messages"
	"github.com/kidzo/gatesync/internal/models"
)

// ErrCountersStale marks a submission whose check-in committed but whose
// counter increment failed. The check-in is durable; only the displayed
// totals lag until the next reset or reconciliation.
var ErrCountersStale = errors.New("check-in committed, counters not updated")

type Repository interface {
	CreateCheckIn(ctx context.Context, in models.CheckInCreateInput) (*models.CheckIn, error)
	CodeSeen(ctx context.Context, kind models.TicketKind, code string) (bool, error)
	ListCheckIns(ctx context.Context, page, pageSize int) (*models.CheckInPage, error)
	SoftDeleteCheckIn(ctx context.Context, transactionID string) error
}

type Ledger interface {
	Increment(ctx context.Context, kids, codes int64) (models.CounterSnapshot, error)
	Reset(ctx context.Context) error
	Read(ctx context.Context) (models.CounterSnapshot, error)
}

type Broadcaster interface {
	BroadcastSnapshot(snap models.CounterSnapshot)
	BroadcastCheckIn(c *models.CheckIn)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Service struct {
	repo     Repository
	ledger   Ledger
	hub      Broadcaster
	producer Producer
	topic    string
}

func New(repo Repository, ledger Ledger, hub Broadcaster, producer Producer, topic string) *Service {
	return &Service{repo: repo, ledger: ledger, hub: hub, producer: producer, topic: topic}
}

// Submit runs one check-in end to end: validate, persist atomically with
// duplicate classification, advance the counters, notify observers. The
// ordering is fixed: commit happens-before increment happens-before
// broadcast, so a rolled-back submission can never move the totals.
func (s *Service) Submit(ctx context.Context, in models.CheckInCreateInput) (*models.CheckIn, error) {
	if in.NumberOfKids <= 0 {
		return nil, errors.New("numberOfKids must be positive")
	}
	if in.ArrivedAt.IsZero() {
		return nil, errors.New("timestamp is required")
	}
	for _, code := range in.TicketCodes {
		if code == "" {
			return nil, errors.New("ticket code must not be empty")
		}
	}
	for _, code := range in.BraceletCodes {
		if code == "" {
			return nil, errors.New("bracelet code must not be empty")
		}
	}

	checkIn, err := s.repo.CreateCheckIn(ctx, in)
	if err != nil {
		return nil, err
	}

	s.publishCommitted(ctx, checkIn)
	if s.hub != nil {
		s.hub.BroadcastCheckIn(checkIn)
	}

	snap, err := s.ledger.Increment(ctx, int64(in.NumberOfKids), int64(in.CodeCount()))
	if err != nil {
		// The check-in is durable; the mirror counter under-counts until
		// the periodic reconciliation job corrects it.
		slog.Error("increment counters after commit",
			"transaction_id", checkIn.TransactionID, "error", err.Error())
		return checkIn, ErrCountersStale
	}
	if s.hub != nil {
		s.hub.BroadcastSnapshot(snap)
	}

	return checkIn, nil
}

func (s *Service) publishCommitted(ctx context.Context, c *models.CheckIn) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.CheckInCommitted{
		TransactionID: c.TransactionID,
		NumberOfKids:  c.NumberOfKids,
		SafetyChecked: c.SafetyChecked,
		ArrivedAt:     c.ArrivedAt,
		CommittedAt:   time.Now().UTC(),
	}
	for _, t := range c.Tickets {
		msg.Tickets = append(msg.Tickets, messages.ScannedCode{Code: t.Code, Duplicate: t.Duplicate})
	}
	for _, b := range c.Bracelets {
		msg.Bracelets = append(msg.Bracelets, messages.ScannedCode{Code: b.Code, Duplicate: b.Duplicate})
	}
	if err := s.producer.PublishJSON(ctx, s.topic, c.TransactionID, msg); err != nil {
		slog.Error("publish check-in committed", "transaction_id", c.TransactionID, "error", err.Error())
	}
}

type DuplicateProbe struct {
	TicketDuplicate   bool `json:"ticketDuplicate"`
	BraceletDuplicate bool `json:"braceletDuplicate"`
}

// CheckDuplicate answers whether a code was ever scanned, per namespace,
// against current committed state. Read-only.
func (s *Service) CheckDuplicate(ctx context.Context, code string) (DuplicateProbe, error) {
	if code == "" {
		return DuplicateProbe{}, errors.New("code is required")
	}
	ticket, err := s.repo.CodeSeen(ctx, models.KindTicket, code)
	if err != nil {
		return DuplicateProbe{}, err
	}
	bracelet, err := s.repo.CodeSeen(ctx, models.KindBracelet, code)
	if err != nil {
		return DuplicateProbe{}, err
	}
	return DuplicateProbe{TicketDuplicate: ticket, BraceletDuplicate: bracelet}, nil
}

func (s *Service) ListCheckIns(ctx context.Context, page, pageSize int) (*models.CheckInPage, error) {
	return s.repo.ListCheckIns(ctx, page, pageSize)
}

func (s *Service) DeleteCheckIn(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return errors.New("transactionId is required")
	}
	return s.repo.SoftDeleteCheckIn(ctx, transactionID)
}

func (s *Service) Snapshot(ctx context.Context) (models.CounterSnapshot, error) {
	return s.ledger.Read(ctx)
}

// ResetCounters zeroes the ledger and pushes the zeroed snapshot to every
// observer. Used by the privileged reset endpoint and the boundary scheduler.
func (s *Service) ResetCounters(ctx context.Context) error {
	if err := s.ledger.Reset(ctx); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastSnapshot(models.CounterSnapshot{})
	}
	return nil
}
