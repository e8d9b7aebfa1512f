package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kidzo/gatesync/internal/models"
)

type fakeRepo struct {
	sessions map[string]*models.ActivitySession
	codes    map[string][]*models.SessionCode
	nextID   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: map[string]*models.ActivitySession{},
		codes:    map[string][]*models.SessionCode{},
	}
}

func (f *fakeRepo) CreateSession(ctx context.Context, in models.SessionStartInput) (*models.ActivitySession, error) {
	f.nextID++
	start := in.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}
	s := &models.ActivitySession{
		ID:              "sess-" + string(rune('0'+f.nextID)),
		EstablishmentID: in.EstablishmentID,
		ActivityName:    in.ActivityName,
		StartTime:       start,
		Status:          models.SessionStatusActive,
		Guests:          in.Guests,
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRepo) GetSession(ctx context.Context, id string) (*models.ActivitySession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) StopSession(ctx context.Context, id string, endTime time.Time) (*models.ActivitySession, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionStatusActive {
		return nil, models.ErrNotFound
	}
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	s.EndTime = &endTime
	s.Status = models.SessionStatusCompleted
	return s, nil
}

func (f *fakeRepo) UpdateSession(ctx context.Context, id string, in models.SessionUpdateInput) (*models.ActivitySession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if in.ActivityName != nil {
		s.ActivityName = *in.ActivityName
	}
	if in.EndTime != nil {
		s.EndTime = in.EndTime
	}
	if in.Status != nil {
		s.Status = *in.Status
	}
	if in.Guests != nil {
		s.Guests = in.Guests
	}
	return s, nil
}

func (f *fakeRepo) ListSessions(ctx context.Context, limit int) ([]*models.ActivitySession, error) {
	out := make([]*models.ActivitySession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepo) AddSessionCode(ctx context.Context, sessionID, code string) (*models.SessionCode, error) {
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, models.ErrNotFound
	}
	for _, sc := range f.codes[sessionID] {
		if sc.Code == code {
			return nil, models.ErrDuplicateGuest
		}
	}
	f.nextID++
	sc := &models.SessionCode{
		ID:        uint64(f.nextID),
		SessionID: sessionID,
		Code:      code,
		ScannedAt: time.Now().UTC(),
	}
	f.codes[sessionID] = append(f.codes[sessionID], sc)
	return sc, nil
}

func (f *fakeRepo) DeleteSessionCode(ctx context.Context, sessionID string, codeID uint64) error {
	list := f.codes[sessionID]
	for i, sc := range list {
		if sc.ID == codeID {
			f.codes[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeRepo) ListSessionCodes(ctx context.Context, sessionID string) ([]*models.SessionCode, error) {
	return f.codes[sessionID], nil
}

func TestService_Start_Validation(t *testing.T) {
	s := New(newFakeRepo())

	_, err := s.Start(context.Background(), models.SessionStartInput{EstablishmentID: "fib-001"})
	require.Error(t, err)

	_, err = s.Start(context.Background(), models.SessionStartInput{ActivityName: "Slide"})
	require.Error(t, err)

	sess, err := s.Start(context.Background(), models.SessionStartInput{
		EstablishmentID: "fib-001",
		ActivityName:    "Slide",
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusActive, sess.Status)
}

func TestService_StopUnknownSession(t *testing.T) {
	s := New(newFakeRepo())

	_, err := s.Stop(context.Background(), "", time.Time{})
	require.Error(t, err)

	_, err = s.Stop(context.Background(), "missing", time.Time{})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestService_Update_StatusValidated(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo)

	sess, err := s.Start(context.Background(), models.SessionStartInput{
		EstablishmentID: "fib-001", ActivityName: "Slide",
	})
	require.NoError(t, err)

	bad := "paused"
	_, err = s.Update(context.Background(), sess.ID, models.SessionUpdateInput{Status: &bad})
	require.Error(t, err)

	done := models.SessionStatusCompleted
	upd, err := s.Update(context.Background(), sess.ID, models.SessionUpdateInput{Status: &done})
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, upd.Status)
}

func TestService_SessionCodes(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo)

	sess, err := s.Start(context.Background(), models.SessionStartInput{
		EstablishmentID: "fib-001", ActivityName: "Slide",
	})
	require.NoError(t, err)

	_, err = s.AddCode(context.Background(), sess.ID, "")
	require.Error(t, err)

	_, err = s.AddCode(context.Background(), "missing", "G-1")
	require.ErrorIs(t, err, models.ErrNotFound)

	sc, err := s.AddCode(context.Background(), sess.ID, "G-1")
	require.NoError(t, err)
	require.Equal(t, "G-1", sc.Code)

	// same guest scanned twice into one session is rejected
	_, err = s.AddCode(context.Background(), sess.ID, "G-1")
	require.ErrorIs(t, err, models.ErrDuplicateGuest)

	_, err = s.AddCode(context.Background(), sess.ID, "G-2")
	require.NoError(t, err)

	codes, err := s.ListCodes(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	require.Equal(t, "G-1", codes[0].Code)

	require.ErrorIs(t, s.DeleteCode(context.Background(), sess.ID, 999), models.ErrNotFound)
	require.NoError(t, s.DeleteCode(context.Background(), sess.ID, sc.ID))

	codes, err = s.ListCodes(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	require.Equal(t, "G-2", codes[0].Code)
}
