package pgadmission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
)

func (s *Storage) CreateSession(ctx context.Context, in models.SessionStartInput) (*models.ActivitySession, error) {
	now := time.Now().UTC()
	start := in.StartTime
	if start.IsZero() {
		start = now
	}

	sess := &models.ActivitySession{
		ID:              uuid.NewString(),
		EstablishmentID: in.EstablishmentID,
		ActivityName:    in.ActivityName,
		StartTime:       start.UTC(),
		Status:          models.SessionStatusActive,
		Guests:          in.Guests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO activity_sessions (
  id, establishment_id, activity_name, start_time, status, guests, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
`, sess.ID, sess.EstablishmentID, sess.ActivityName, sess.StartTime, sess.Status, sess.Guests, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}
	return sess, nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*models.ActivitySession, error) {
	var sess models.ActivitySession
	err := s.db.QueryRow(ctx, `
SELECT id, establishment_id, activity_name, start_time, end_time, status, guests, created_at, updated_at
FROM activity_sessions
WHERE id = $1
`, id).Scan(
		&sess.ID, &sess.EstablishmentID, &sess.ActivityName,
		&sess.StartTime, &sess.EndTime, &sess.Status, &sess.Guests,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	return &sess, nil
}

// StopSession completes an active session. Stopping an unknown or already
// completed session returns ErrNotFound.
func (s *Storage) StopSession(ctx context.Context, id string, endTime time.Time) (*models.ActivitySession, error) {
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	tag, err := s.db.Exec(ctx, `
UPDATE activity_sessions
SET end_time = $2, status = $3, updated_at = now()
WHERE id = $1 AND status = $4
`, id, endTime.UTC(), models.SessionStatusCompleted, models.SessionStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "stop session")
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return s.GetSession(ctx, id)
}

// UpdateSession applies a partial update; nil fields are left as they are.
func (s *Storage) UpdateSession(ctx context.Context, id string, in models.SessionUpdateInput) (*models.ActivitySession, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE activity_sessions
SET
  activity_name = COALESCE($2, activity_name),
  end_time      = COALESCE($3, end_time),
  status        = COALESCE($4, status),
  guests        = COALESCE($5, guests),
  updated_at    = now()
WHERE id = $1
`, id, in.ActivityName, in.EndTime, in.Status, in.Guests)
	if err != nil {
		return nil, errors.Wrap(err, "update session")
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *Storage) ListSessions(ctx context.Context, limit int) ([]*models.ActivitySession, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, establishment_id, activity_name, start_time, end_time, status, guests, created_at, updated_at
FROM activity_sessions
ORDER BY start_time DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select sessions")
	}
	defer rows.Close()

	var out []*models.ActivitySession
	for rows.Next() {
		var sess models.ActivitySession
		if err := rows.Scan(
			&sess.ID, &sess.EstablishmentID, &sess.ActivityName,
			&sess.StartTime, &sess.EndTime, &sess.Status, &sess.Guests,
			&sess.CreatedAt, &sess.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		out = append(out, &sess)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// AddSessionCode records a guest code against a session. The same code
// scanned twice into one session is rejected with ErrDuplicateGuest.
func (s *Storage) AddSessionCode(ctx context.Context, sessionID, code string) (*models.SessionCode, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM activity_sessions WHERE id = $1)
`, sessionID).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "check session")
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	sc := models.SessionCode{SessionID: sessionID, Code: code, ScannedAt: time.Now().UTC()}
	err = s.db.QueryRow(ctx, `
INSERT INTO session_codes (session_id, code, scanned_at)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, code) DO NOTHING
RETURNING id
`, sc.SessionID, sc.Code, sc.ScannedAt).Scan(&sc.ID)
	if err == pgx.ErrNoRows {
		return nil, models.ErrDuplicateGuest
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert session code")
	}
	return &sc, nil
}

func (s *Storage) DeleteSessionCode(ctx context.Context, sessionID string, codeID uint64) error {
	tag, err := s.db.Exec(ctx, `
DELETE FROM session_codes
WHERE id = $1 AND session_id = $2
`, codeID, sessionID)
	if err != nil {
		return errors.Wrap(err, "delete session code")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListSessionCodes returns a session's codes in scan order.
func (s *Storage) ListSessionCodes(ctx context.Context, sessionID string) ([]*models.SessionCode, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, session_id, code, scanned_at
FROM session_codes
WHERE session_id = $1
ORDER BY scanned_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "select session codes")
	}
	defer rows.Close()

	var out []*models.SessionCode
	for rows.Next() {
		var sc models.SessionCode
		if err := rows.Scan(&sc.ID, &sc.SessionID, &sc.Code, &sc.ScannedAt); err != nil {
			return nil, errors.Wrap(err, "scan session code")
		}
		out = append(out, &sc)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
