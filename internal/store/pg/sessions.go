package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// PGSessionStore implements store.SessionStore backed by Postgres.
type PGSessionStore struct {
	db *sql.DB
}

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

const sessionSelectCols = `id, tenant_id, name, phone, session_string, status,
	is_frozen, frozen_at, unfreeze_at, freeze_count,
	last_sync_at, total_groups, active_groups, created_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Name, &s.Phone, &s.SessionString, &s.Status,
		&s.IsFrozen, &s.FrozenAt, &s.UnfreezeAt, &s.FreezeCount,
		&s.LastSyncAt, &s.TotalGroups, &s.ActiveGroups, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *PGSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionSelectCols+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

func (s *PGSessionStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, statuses ...model.SessionStatus) ([]*model.Session, error) {
	q := `SELECT ` + sessionSelectCols + ` FROM sessions WHERE tenant_id = $1`
	args := []any{tenantID}
	if len(statuses) > 0 {
		ph := make([]string, len(statuses))
		for i, st := range statuses {
			args = append(args, st)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		q += ` AND status IN (` + strings.Join(ph, ", ") + `)`
	}
	q += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *PGSessionStore) ListActive(ctx context.Context) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionSelectCols+` FROM sessions WHERE status = $1 ORDER BY created_at`,
		model.SessionActive)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *PGSessionStore) ListFrozenBefore(ctx context.Context, t time.Time) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionSelectCols+` FROM sessions
		 WHERE is_frozen = true AND frozen_at < $1 ORDER BY frozen_at`, t)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *PGSessionStore) Update(ctx context.Context, sess *model.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = $2, phone = $3, session_string = $4, status = $5,
		   is_frozen = $6, frozen_at = $7, unfreeze_at = $8, freeze_count = $9
		 WHERE id = $1`,
		sess.ID, sess.Name, sess.Phone, sess.SessionString, sess.Status,
		sess.IsFrozen, sess.FrozenAt, sess.UnfreezeAt, sess.FreezeCount)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGSessionStore) SetFrozen(ctx context.Context, id uuid.UUID, at time.Time, status *model.SessionStatus) error {
	q := `UPDATE sessions SET is_frozen = true, frozen_at = $2, freeze_count = freeze_count + 1`
	args := []any{id, at}
	if status != nil {
		args = append(args, *status)
		q += `, status = $3`
	}
	q += ` WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGSessionStore) ClearFreeze(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_frozen = false, frozen_at = NULL, unfreeze_at = NULL
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGSessionStore) UpdateSyncStats(ctx context.Context, id uuid.UUID, total, active int, syncedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET total_groups = $2, active_groups = $3, last_sync_at = $4
		 WHERE id = $1`, id, total, active, syncedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanSessions(rows *sql.Rows) ([]*model.Session, error) {
	defer rows.Close()
	var out []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
