package pgadmission

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/kidzo/gatesync/internal/models"
)

// GetTerminalConfig returns the published config document for a hostname.
func (s *Storage) GetTerminalConfig(ctx context.Context, hostname string) (*models.TerminalConfig, error) {
	var tc models.TerminalConfig
	err := s.db.QueryRow(ctx, `
SELECT hostname, config, is_published, publish_at, created_at, updated_at
FROM terminal_configs
WHERE hostname = $1 AND is_published
`, hostname).Scan(
		&tc.Hostname, &tc.Config, &tc.IsPublished, &tc.PublishAt, &tc.CreatedAt, &tc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select terminal config")
	}
	return &tc, nil
}

func (s *Storage) UpsertTerminalConfig(ctx context.Context, hostname string, cfg json.RawMessage, publish bool) (*models.TerminalConfig, error) {
	var tc models.TerminalConfig
	err := s.db.QueryRow(ctx, `
INSERT INTO terminal_configs (hostname, config, is_published, publish_at, created_at, updated_at)
VALUES ($1, $2, $3, CASE WHEN $3 THEN now() END, now(), now())
ON CONFLICT (hostname)
DO UPDATE SET
  config = EXCLUDED.config,
  is_published = EXCLUDED.is_published,
  publish_at = CASE WHEN EXCLUDED.is_published THEN now() ELSE terminal_configs.publish_at END,
  updated_at = now()
RETURNING hostname, config, is_published, publish_at, created_at, updated_at
`, hostname, cfg, publish).Scan(
		&tc.Hostname, &tc.Config, &tc.IsPublished, &tc.PublishAt, &tc.CreatedAt, &tc.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "upsert terminal config")
	}
	return &tc, nil
}
