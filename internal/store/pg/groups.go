package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// PGGroupStore implements store.GroupStore backed by Postgres.
type PGGroupStore struct {
	db *sql.DB
}

func NewPGGroupStore(db *sql.DB) *PGGroupStore {
	return &PGGroupStore{db: db}
}

const groupSelectCols = `id, session_id, platform_id, title, username, kind,
	member_count, is_active, is_skipped, skip_reason,
	has_restrictions, restriction_until,
	is_priority, priority_order, activity_score,
	last_post_at, created_at`

func scanGroup(row interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := row.Scan(
		&g.ID, &g.SessionID, &g.PlatformID, &g.Title, &g.Username, &g.Kind,
		&g.MemberCount, &g.IsActive, &g.IsSkipped, &g.SkipReason,
		&g.HasRestrictions, &g.RestrictionUntil,
		&g.IsPriority, &g.PriorityOrder, &g.ActivityScore,
		&g.LastPostAt, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGGroupStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx,
		`SELECT `+groupSelectCols+` FROM groups WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func (s *PGGroupStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupSelectCols+` FROM groups
		 WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGGroupStore) BatchAdd(ctx context.Context, groups []*model.Group) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO groups (id, session_id, platform_id, title, username, kind,
		   member_count, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, platform_id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, g := range groups {
		id := g.ID
		if id == uuid.Nil {
			id = uuid.Must(uuid.NewV7())
		}
		res, err := stmt.ExecContext(ctx,
			id, g.SessionID, g.PlatformID, g.Title, g.Username, g.Kind,
			g.MemberCount, g.IsActive, g.CreatedAt)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

func (s *PGGroupStore) UpsertFromSync(ctx context.Context, g *model.Group) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE groups SET title = $3, username = $4, kind = $5, member_count = $6
		 WHERE session_id = $1 AND platform_id = $2`,
		g.SessionID, g.PlatformID, g.Title, g.Username, g.Kind, g.MemberCount)
	return err
}

func (s *PGGroupStore) MarkRestricted(ctx context.Context, id uuid.UUID, reason string, until *time.Time, skip bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET has_restrictions = true, restriction_until = $2,
		   is_skipped = is_skipped OR $3, skip_reason = $4
		 WHERE id = $1`, id, until, skip, reason)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGGroupStore) SetLastPost(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET last_post_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGGroupStore) RecomputePriority(ctx context.Context, sessionID uuid.UUID, topN int) error {
	_, err := s.db.ExecContext(ctx,
		`WITH ranked AS (
		   SELECT id, row_number() OVER (ORDER BY activity_score DESC, member_count DESC) AS rn
		   FROM groups
		   WHERE session_id = $1 AND is_active = true AND is_skipped = false
		 )
		 UPDATE groups g
		 SET is_priority = (r.rn <= $2),
		     priority_order = CASE WHEN r.rn <= $2 THEN r.rn ELSE 0 END
		 FROM ranked r WHERE g.id = r.id`, sessionID, topN)
	return err
}
