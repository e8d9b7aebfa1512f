package sessions

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
)

type Repository interface {
	CreateSession(ctx context.Context, in models.SessionStartInput) (*models.ActivitySession, error)
	GetSession(ctx context.Context, id string) (*models.ActivitySession, error)
	StopSession(ctx context.Context, id string, endTime time.Time) (*models.ActivitySession, error)
	UpdateSession(ctx context.Context, id string, in models.SessionUpdateInput) (*models.ActivitySession, error)
	ListSessions(ctx context.Context, limit int) ([]*models.ActivitySession, error)
	AddSessionCode(ctx context.Context, sessionID, code string) (*models.SessionCode, error)
	DeleteSessionCode(ctx context.Context, sessionID string, codeID uint64) error
	ListSessionCodes(ctx context.Context, sessionID string) ([]*models.SessionCode, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Start(ctx context.Context, in models.SessionStartInput) (*models.ActivitySession, error) {
	if in.ActivityName == "" {
		return nil, errors.New("activityName is required")
	}
	if in.EstablishmentID == "" {
		return nil, errors.New("establishmentId is required")
	}
	return s.repo.CreateSession(ctx, in)
}

// Stop completes an active session. Unknown or already completed sessions
// surface models.ErrNotFound.
func (s *Service) Stop(ctx context.Context, id string, endTime time.Time) (*models.ActivitySession, error) {
	if id == "" {
		return nil, errors.New("sessionId is required")
	}
	return s.repo.StopSession(ctx, id, endTime)
}

func (s *Service) Update(ctx context.Context, id string, in models.SessionUpdateInput) (*models.ActivitySession, error) {
	if id == "" {
		return nil, errors.New("sessionId is required")
	}
	if in.Status != nil &&
		*in.Status != models.SessionStatusActive && *in.Status != models.SessionStatusCompleted {
		return nil, errors.Errorf("unknown status %q", *in.Status)
	}
	return s.repo.UpdateSession(ctx, id, in)
}

func (s *Service) Get(ctx context.Context, id string) (*models.ActivitySession, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]*models.ActivitySession, error) {
	return s.repo.ListSessions(ctx, limit)
}

// AddCode scans a guest code into a session. A code already present in the
// session surfaces models.ErrDuplicateGuest.
func (s *Service) AddCode(ctx context.Context, sessionID, code string) (*models.SessionCode, error) {
	if sessionID == "" {
		return nil, errors.New("sessionId is required")
	}
	if code == "" {
		return nil, errors.New("code is required")
	}
	return s.repo.AddSessionCode(ctx, sessionID, code)
}

func (s *Service) DeleteCode(ctx context.Context, sessionID string, codeID uint64) error {
	if sessionID == "" {
		return errors.New("sessionId is required")
	}
	return s.repo.DeleteSessionCode(ctx, sessionID, codeID)
}

func (s *Service) ListCodes(ctx context.Context, sessionID string) ([]*models.SessionCode, error) {
	if sessionID == "" {
		return nil, errors.New("sessionId is required")
	}
	return s.repo.ListSessionCodes(ctx, sessionID)
}
