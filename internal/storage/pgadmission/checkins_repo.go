package pgadmission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
)

func codeTable(kind models.TicketKind) string {
	if kind == models.KindBracelet {
		return "admission_bracelets"
	}
	return "admission_tickets"
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// countActiveCodes is the duplicate classifier: how many non-deleted rows of
// the given kind already carry this code.
func countActiveCodes(ctx context.Context, q rowQuerier, kind models.TicketKind, code string) (int64, error) {
	var n int64
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+codeTable(kind)+` WHERE code = $1 AND deleted_at IS NULL`,
		code,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count codes")
	}
	return n, nil
}

// CodeSeen answers the read-only duplicate probe against committed state.
func (s *Storage) CodeSeen(ctx context.Context, kind models.TicketKind, code string) (bool, error) {
	n, err := countActiveCodes(ctx, s.db, kind, code)
	return n > 0, err
}

// CreateCheckIn runs the whole check-in as one transaction: the check-in row,
// then every ticket and bracelet row with its duplicate flag. Classification
// for the entire batch happens before any of the batch's own inserts, so a
// code repeated within one submission is judged against prior state only.
// Any failure rolls back everything.
func (s *Storage) CreateCheckIn(ctx context.Context, in models.CheckInCreateInput) (*models.CheckIn, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ticketDups := make([]bool, len(in.TicketCodes))
	for i, code := range in.TicketCodes {
		n, err := countActiveCodes(ctx, tx, models.KindTicket, code)
		if err != nil {
			return nil, err
		}
		ticketDups[i] = n > 0
	}
	braceletDups := make([]bool, len(in.BraceletCodes))
	for i, code := range in.BraceletCodes {
		n, err := countActiveCodes(ctx, tx, models.KindBracelet, code)
		if err != nil {
			return nil, err
		}
		braceletDups[i] = n > 0
	}

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
INSERT INTO admission_check_ins (
  transaction_id, number_of_kids, safety_checked, arrived_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$5)
`, id, in.NumberOfKids, in.SafetyChecked, in.ArrivedAt.UTC(), now)
	if err != nil {
		return nil, errors.Wrap(err, "insert check-in")
	}

	insertCodes := func(kind models.TicketKind, codes []string, dups []bool) ([]*models.Ticket, error) {
		out := make([]*models.Ticket, 0, len(codes))
		for i, code := range codes {
			var rowID uint64
			err := tx.QueryRow(ctx, `
INSERT INTO `+codeTable(kind)+` (check_in_id, code, duplicate, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, id, code, dups[i], now).Scan(&rowID)
			if err != nil {
				return nil, errors.Wrapf(err, "insert %s", kind)
			}
			out = append(out, &models.Ticket{
				ID:        rowID,
				CheckInID: id,
				Code:      code,
				Duplicate: dups[i],
				CreatedAt: now,
			})
		}
		return out, nil
	}

	tickets, err := insertCodes(models.KindTicket, in.TicketCodes, ticketDups)
	if err != nil {
		return nil, err
	}
	bracelets, err := insertCodes(models.KindBracelet, in.BraceletCodes, braceletDups)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &models.CheckIn{
		TransactionID: id,
		NumberOfKids:  in.NumberOfKids,
		SafetyChecked: in.SafetyChecked,
		ArrivedAt:     in.ArrivedAt.UTC(),
		Tickets:       tickets,
		Bracelets:     bracelets,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ListCheckIns returns non-deleted check-ins newest first with their nested
// ticket and bracelet rows.
func (s *Storage) ListCheckIns(ctx context.Context, page, pageSize int) (*models.CheckInPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM admission_check_ins WHERE deleted_at IS NULL`,
	).Scan(&total)
	if err != nil {
		return nil, errors.Wrap(err, "count check-ins")
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	rows, err := s.db.Query(ctx, `
SELECT transaction_id, number_of_kids, safety_checked, arrived_at, created_at, updated_at
FROM admission_check_ins
WHERE deleted_at IS NULL
ORDER BY arrived_at DESC
LIMIT $1 OFFSET $2
`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "select check-ins")
	}
	defer rows.Close()

	byID := make(map[string]*models.CheckIn)
	ids := make([]string, 0, pageSize)
	items := make([]*models.CheckIn, 0, pageSize)
	for rows.Next() {
		var c models.CheckIn
		if err := rows.Scan(
			&c.TransactionID, &c.NumberOfKids, &c.SafetyChecked,
			&c.ArrivedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan check-in")
		}
		c.Tickets = []*models.Ticket{}
		c.Bracelets = []*models.Ticket{}
		byID[c.TransactionID] = &c
		ids = append(ids, c.TransactionID)
		items = append(items, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	if len(ids) > 0 {
		for _, kind := range []models.TicketKind{models.KindTicket, models.KindBracelet} {
			codes, err := s.codesByCheckIn(ctx, kind, ids)
			if err != nil {
				return nil, err
			}
			for _, t := range codes {
				c := byID[t.CheckInID]
				if c == nil {
					continue
				}
				if kind == models.KindBracelet {
					c.Bracelets = append(c.Bracelets, t)
				} else {
					c.Tickets = append(c.Tickets, t)
				}
			}
		}
	}

	return &models.CheckInPage{
		TotalPages:  totalPages,
		CurrentPage: page,
		Items:       items,
	}, nil
}

func (s *Storage) codesByCheckIn(ctx context.Context, kind models.TicketKind, checkInIDs []string) ([]*models.Ticket, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, check_in_id, code, duplicate, created_at
FROM `+codeTable(kind)+`
WHERE check_in_id = ANY($1) AND deleted_at IS NULL
ORDER BY id
`, checkInIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "select %ss", kind)
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.CheckInID, &t.Code, &t.Duplicate, &t.CreatedAt); err != nil {
			return nil, errors.Wrapf(err, "scan %s", kind)
		}
		out = append(out, &t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SoftDeleteCheckIn marks a check-in and its code rows deleted. Deleted codes
// no longer count toward duplicate classification.
func (s *Storage) SoftDeleteCheckIn(ctx context.Context, transactionID string) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE admission_check_ins SET deleted_at = $2, updated_at = $2
WHERE transaction_id = $1 AND deleted_at IS NULL
`, transactionID, now)
	if err != nil {
		return errors.Wrap(err, "soft delete check-in")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	for _, kind := range []models.TicketKind{models.KindTicket, models.KindBracelet} {
		_, err = tx.Exec(ctx,
			`UPDATE `+codeTable(kind)+` SET deleted_at = $2 WHERE check_in_id = $1 AND deleted_at IS NULL`,
			transactionID, now)
		if err != nil {
			return errors.Wrapf(err, "soft delete %ss", kind)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}
