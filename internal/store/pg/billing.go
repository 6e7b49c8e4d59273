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

// PGPaymentStore implements store.PaymentStore backed by Postgres.
type PGPaymentStore struct {
	db *sql.DB
}

func NewPGPaymentStore(db *sql.DB) *PGPaymentStore {
	return &PGPaymentStore{db: db}
}

func (s *PGPaymentStore) ListPendingBefore(ctx context.Context, t time.Time) ([]*model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, amount, status, created_at FROM payments
		 WHERE status = $1 AND created_at < $2 ORDER BY created_at`,
		model.PaymentPending, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PGPaymentStore) Expire(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1 AND status = $3`,
		id, model.PaymentExpired, model.PaymentPending)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PGSubscriptionStore implements store.SubscriptionStore backed by Postgres.
type PGSubscriptionStore struct {
	db *sql.DB
}

func NewPGSubscriptionStore(db *sql.DB) *PGSubscriptionStore {
	return &PGSubscriptionStore{db: db}
}

const subscriptionSelectCols = `id, tenant_id, status, max_sessions, max_groups, max_ads,
	group_interval_sec, start_date, end_date`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var groupSec int64
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.Status,
		&sub.MaxSessions, &sub.MaxGroups, &sub.MaxAds,
		&groupSec, &sub.StartDate, &sub.EndDate,
	)
	if err != nil {
		return nil, err
	}
	sub.GroupInterval = time.Duration(groupSec) * time.Second
	return &sub, nil
}

func (s *PGSubscriptionStore) GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionSelectCols+` FROM subscriptions
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY end_date DESC LIMIT 1`,
		tenantID, model.SubscriptionActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sub, err
}

func (s *PGSubscriptionStore) ListActiveEndedBefore(ctx context.Context, t time.Time) ([]*model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionSelectCols+` FROM subscriptions
		 WHERE status = $1 AND end_date < $2 ORDER BY end_date`,
		model.SubscriptionActive, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PGSubscriptionStore) Expire(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2 WHERE id = $1 AND status = $3`,
		id, model.SubscriptionExpired, model.SubscriptionActive)
	if err != nil {
		return err
	}
	return requireRow(res)
}
