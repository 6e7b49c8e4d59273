package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// PGAdStore implements store.AdStore backed by Postgres. The media list
// and the selected-group subset are stored as jsonb; the anti-spam
// intervals as whole seconds.
type PGAdStore struct {
	db *sql.DB
}

func NewPGAdStore(db *sql.DB) *PGAdStore {
	return &PGAdStore{db: db}
}

const adSelectCols = `id, tenant_id, content, media, status,
	is_scheduled, scheduled_for, last_scheduled_at, last_error,
	interval_min_sec, interval_max_sec, group_interval_sec,
	selected_groups, created_at`

func scanAd(row interface{ Scan(...any) error }) (*model.Ad, error) {
	var ad model.Ad
	var media, selected []byte
	var minSec, maxSec, groupSec int64
	err := row.Scan(
		&ad.ID, &ad.TenantID, &ad.Content, &media, &ad.Status,
		&ad.IsScheduled, &ad.ScheduledFor, &ad.LastScheduledAt, &ad.LastError,
		&minSec, &maxSec, &groupSec,
		&selected, &ad.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &ad.Media); err != nil {
			return nil, err
		}
	}
	if len(selected) > 0 {
		if err := json.Unmarshal(selected, &ad.SelectedGroups); err != nil {
			return nil, err
		}
	}
	ad.IntervalMin = time.Duration(minSec) * time.Second
	ad.IntervalMax = time.Duration(maxSec) * time.Second
	ad.GroupInterval = time.Duration(groupSec) * time.Second
	return &ad, nil
}

func (s *PGAdStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Ad, error) {
	ad, err := scanAd(s.db.QueryRowContext(ctx,
		`SELECT `+adSelectCols+` FROM ads WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return ad, err
}

func (s *PGAdStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*model.Ad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adSelectCols+` FROM ads WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	return scanAds(rows)
}

func (s *PGAdStore) ListScheduledDue(ctx context.Context, now time.Time) ([]*model.Ad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adSelectCols+` FROM ads
		 WHERE is_scheduled = true AND scheduled_for <= $1
		   AND status IN ($2, $3)
		 ORDER BY scheduled_for`,
		now, model.AdActive, model.AdPaused)
	if err != nil {
		return nil, err
	}
	return scanAds(rows)
}

func (s *PGAdStore) Update(ctx context.Context, ad *model.Ad) error {
	media, err := json.Marshal(ad.Media)
	if err != nil {
		return err
	}
	selected, err := json.Marshal(ad.SelectedGroups)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ads SET content = $2, media = $3, status = $4,
		   is_scheduled = $5, scheduled_for = $6,
		   interval_min_sec = $7, interval_max_sec = $8, group_interval_sec = $9,
		   selected_groups = $10
		 WHERE id = $1`,
		ad.ID, ad.Content, media, ad.Status,
		ad.IsScheduled, ad.ScheduledFor,
		int64(ad.IntervalMin/time.Second), int64(ad.IntervalMax/time.Second),
		int64(ad.GroupInterval/time.Second), selected)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGAdStore) SetScheduleResult(ctx context.Context, id uuid.UUID, ok bool, at time.Time, errMsg string) error {
	var res sql.Result
	var err error
	if ok {
		res, err = s.db.ExecContext(ctx,
			`UPDATE ads SET status = $2, is_scheduled = false,
			   last_scheduled_at = $3, last_error = ''
			 WHERE id = $1`, id, model.AdActive, at)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE ads SET status = $2, last_scheduled_at = $3, last_error = $4
			 WHERE id = $1`, id, model.AdPaused, at, errMsg)
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanAds(rows *sql.Rows) ([]*model.Ad, error) {
	defer rows.Close()
	var out []*model.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, rows.Err()
}
