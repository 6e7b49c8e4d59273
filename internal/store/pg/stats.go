package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/nextlevelbuilder/adrelay/internal/model"
)

// PGStatsStore implements store.StatsStore backed by Postgres.
type PGStatsStore struct {
	db *sql.DB
}

func NewPGStatsStore(db *sql.DB) *PGStatsStore {
	return &PGStatsStore{db: db}
}

// CollectDaily aggregates the counters for the calendar day of t (UTC).
func (s *PGStatsStore) CollectDaily(ctx context.Context, t time.Time) (*model.SystemStatistics, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	row := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT count(*) FROM tenants),
		  (SELECT count(*) FROM sessions WHERE status = 'active' AND is_frozen = false),
		  (SELECT count(*) FROM groups),
		  (SELECT count(*) FROM posts WHERE status = 'completed' AND finished_at >= $1 AND finished_at < $2),
		  (SELECT count(*) FROM post_history WHERE status = 'sent' AND sent_at >= $1 AND sent_at < $2),
		  (SELECT coalesce(sum(amount), 0) FROM payments WHERE status = 'approved' AND created_at >= $1 AND created_at < $2)`,
		day, next)

	st := &model.SystemStatistics{Date: day}
	if err := row.Scan(
		&st.TotalTenants, &st.ActiveSessions, &st.TotalGroups,
		&st.PostsCompleted, &st.MessagesSent, &st.Revenue,
	); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PGStatsStore) UpsertDaily(ctx context.Context, row *model.SystemStatistics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_statistics (date, total_tenants, active_sessions, total_groups,
		   posts_completed, messages_sent, revenue)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (date) DO UPDATE SET
		   total_tenants = EXCLUDED.total_tenants,
		   active_sessions = EXCLUDED.active_sessions,
		   total_groups = EXCLUDED.total_groups,
		   posts_completed = EXCLUDED.posts_completed,
		   messages_sent = EXCLUDED.messages_sent,
		   revenue = EXCLUDED.revenue`,
		row.Date, row.TotalTenants, row.ActiveSessions, row.TotalGroups,
		row.PostsCompleted, row.MessagesSent, row.Revenue)
	return err
}
