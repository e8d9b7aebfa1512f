package sessions

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/broker/messages"
	"github.com/kidzo/gatesync/internal/models"
	"github.com/kidzo/gatesync/internal/services/admissions"
)

// Submitter is the live check-in path; replayed check-ins go through exactly
// the same validation and transaction as online submissions.
type Submitter interface {
	Submit(ctx context.Context, in models.CheckInCreateInput) (*models.CheckIn, error)
}

// Reconciler replays the action queue a terminal recorded while offline.
// Actions are applied strictly in recorded order, each one independently:
// a stale or malformed entry is skipped, it never rolls back or aborts the
// rest of the batch.
type Reconciler struct {
	sessions   *Service
	admissions Submitter
}

func NewReconciler(sessions *Service, admissions Submitter) *Reconciler {
	return &Reconciler{sessions: sessions, admissions: admissions}
}

type ReplayResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

func (r *Reconciler) Replay(ctx context.Context, batch messages.ReplayBatch) ReplayResult {
	var res ReplayResult
	for i, action := range batch.Actions {
		if err := r.apply(ctx, action); err != nil {
			res.Skipped++
			if errors.Is(err, models.ErrNotFound) {
				// superseded entry, expected in offline batches
				continue
			}
			slog.Warn("skip replay action",
				"terminal_id", batch.TerminalID, "index", i, "type", action.Type, "error", err.Error())
			continue
		}
		res.Applied++
	}
	return res
}

func (r *Reconciler) apply(ctx context.Context, action messages.ReplayAction) error {
	switch action.Type {
	case messages.ReplayActionStart:
		var p messages.StartPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return errors.Wrap(err, "decode start payload")
		}
		if p.EstablishmentID == "" {
			p.EstablishmentID = "unknown"
		}
		_, err := r.sessions.Start(ctx, models.SessionStartInput{
			EstablishmentID: p.EstablishmentID,
			ActivityName:    p.ActivityName,
			StartTime:       p.StartTime,
			Guests:          p.Guests,
		})
		return err

	case messages.ReplayActionStop:
		var p messages.StopPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return errors.Wrap(err, "decode stop payload")
		}
		_, err := r.sessions.Stop(ctx, p.SessionID, p.EndTime)
		return err

	case messages.ReplayActionUpdate:
		var p messages.UpdatePayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return errors.Wrap(err, "decode update payload")
		}
		_, err := r.sessions.Update(ctx, p.SessionID, models.SessionUpdateInput{
			ActivityName: p.ActivityName,
			EndTime:      p.EndTime,
			Status:       p.Status,
			Guests:       p.Guests,
		})
		return err

	case messages.ReplayActionCheckIn:
		var p messages.CheckInPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return errors.Wrap(err, "decode check-in payload")
		}
		in := models.CheckInCreateInput{
			NumberOfKids:  p.NumberOfKids,
			SafetyChecked: p.SafetyChecked,
			ArrivedAt:     p.Timestamp,
		}
		for _, t := range p.Tickets {
			in.TicketCodes = append(in.TicketCodes, t.Code)
		}
		for _, b := range p.Bracelets {
			in.BraceletCodes = append(in.BraceletCodes, b.Code)
		}
		_, err := r.admissions.Submit(ctx, in)
		if errors.Is(err, admissions.ErrCountersStale) {
			// the check-in itself committed
			return nil
		}
		return err

	default:
		return errors.Errorf("unknown action type %q", action.Type)
	}
}
