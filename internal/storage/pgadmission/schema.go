package pgadmission

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS admission_check_ins (
  transaction_id UUID PRIMARY KEY,
  number_of_kids INT NOT NULL,
  safety_checked BOOLEAN NOT NULL,
  arrived_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_admission_check_ins_arrived_at ON admission_check_ins(arrived_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS admission_tickets (
  id BIGSERIAL PRIMARY KEY,
  check_in_id UUID NOT NULL REFERENCES admission_check_ins(transaction_id) ON DELETE CASCADE,
  code TEXT NOT NULL,
  duplicate BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ NULL
)`,
		// Duplicate classification is a point lookup by code under load.
		`CREATE INDEX IF NOT EXISTS idx_admission_tickets_code ON admission_tickets(code)`,
		`CREATE INDEX IF NOT EXISTS idx_admission_tickets_check_in_id ON admission_tickets(check_in_id)`,
		`
CREATE TABLE IF NOT EXISTS admission_bracelets (
  id BIGSERIAL PRIMARY KEY,
  check_in_id UUID NOT NULL REFERENCES admission_check_ins(transaction_id) ON DELETE CASCADE,
  code TEXT NOT NULL,
  duplicate BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_admission_bracelets_code ON admission_bracelets(code)`,
		`CREATE INDEX IF NOT EXISTS idx_admission_bracelets_check_in_id ON admission_bracelets(check_in_id)`,
		`
CREATE TABLE IF NOT EXISTS activity_sessions (
  id UUID PRIMARY KEY,
  establishment_id TEXT NOT NULL,
  activity_name TEXT NOT NULL,
  start_time TIMESTAMPTZ NOT NULL,
  end_time TIMESTAMPTZ NULL,
  status TEXT NOT NULL DEFAULT 'active',
  guests JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_sessions_start_time ON activity_sessions(start_time DESC)`,
		`
CREATE TABLE IF NOT EXISTS session_codes (
  id BIGSERIAL PRIMARY KEY,
  session_id UUID NOT NULL REFERENCES activity_sessions(id) ON DELETE CASCADE,
  code TEXT NOT NULL,
  scanned_at TIMESTAMPTZ NOT NULL,
  UNIQUE (session_id, code)
)`,
		`
CREATE TABLE IF NOT EXISTS terminal_configs (
  hostname TEXT PRIMARY KEY,
  config JSONB NOT NULL,
  is_published BOOLEAN NOT NULL DEFAULT FALSE,
  publish_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
