package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// PGPostStore implements store.PostStore backed by Postgres.
type PGPostStore struct {
	db *sql.DB
}

func NewPGPostStore(db *sql.DB) *PGPostStore {
	return &PGPostStore{db: db}
}

const postSelectCols = `id, ad_id, session_id, status,
	total_groups, completed_groups, failed_groups, skipped_groups,
	scheduled_for, started_at, finished_at, created_at`

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	var p model.Post
	err := row.Scan(
		&p.ID, &p.AdID, &p.SessionID, &p.Status,
		&p.TotalGroups, &p.CompletedGroups, &p.FailedGroups, &p.SkippedGroups,
		&p.ScheduledFor, &p.StartedAt, &p.FinishedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGPostStore) Create(ctx context.Context, p *model.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV7())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, ad_id, session_id, status,
		   total_groups, completed_groups, failed_groups, skipped_groups,
		   scheduled_for, started_at, finished_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.AdID, p.SessionID, p.Status,
		p.TotalGroups, p.CompletedGroups, p.FailedGroups, p.SkippedGroups,
		p.ScheduledFor, p.StartedAt, p.FinishedAt, p.CreatedAt)
	return err
}

func (s *PGPostStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx,
		`SELECT `+postSelectCols+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *PGPostStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PostStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = $2,
		   finished_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE finished_at END
		 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGPostStore) UpdateCounts(ctx context.Context, id uuid.UUID, completed, failed, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET completed_groups = $2, failed_groups = $3, skipped_groups = $4
		 WHERE id = $1`, id, completed, failed, skipped)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGPostStore) AddHistory(ctx context.Context, h *model.PostHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.Must(uuid.NewV7())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO post_history (id, post_id, group_id, status,
		   platform_message_id, error, sent_at, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.PostID, h.GroupID, h.Status,
		h.PlatformMessageID, h.Error, h.SentAt, h.FailedAt)
	return err
}

func (s *PGPostStore) ListHistory(ctx context.Context, postID uuid.UUID) ([]*model.PostHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, group_id, status, platform_message_id, error, sent_at, failed_at
		 FROM post_history WHERE post_id = $1 ORDER BY id`, postID)
	if err != nil {
		return nil, err
	}
	return scanHistory(rows)
}

func (s *PGPostStore) ListFailedHistory(ctx context.Context, postID uuid.UUID) ([]*model.PostHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, group_id, status, platform_message_id, error, sent_at, failed_at
		 FROM post_history WHERE post_id = $1 AND status = $2 ORDER BY id`,
		postID, model.DeliveryFailed)
	if err != nil {
		return nil, err
	}
	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]*model.PostHistory, error) {
	defer rows.Close()
	var out []*model.PostHistory
	for rows.Next() {
		var h model.PostHistory
		if err := rows.Scan(
			&h.ID, &h.PostID, &h.GroupID, &h.Status,
			&h.PlatformMessageID, &h.Error, &h.SentAt, &h.FailedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
