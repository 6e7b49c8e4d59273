package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
)

// TenantStore reads tenant records.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
}

// SessionStore manages impersonated account sessions.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, statuses ...model.SessionStatus) ([]*model.Session, error)
	Update(ctx context.Context, s *model.Session) error

	// SetFrozen freezes a session, bumping its freeze counter. A non-nil
	// status also transitions the session (e.g. to Banned on dead auth).
	SetFrozen(ctx context.Context, id uuid.UUID, at time.Time, status *model.SessionStatus) error

	// ClearFreeze lifts a freeze without touching status.
	ClearFreeze(ctx context.Context, id uuid.UUID) error

	// ListFrozenBefore returns frozen sessions whose freeze predates t.
	ListFrozenBefore(ctx context.Context, t time.Time) ([]*model.Session, error)

	// ListActive returns every Active session across all tenants.
	ListActive(ctx context.Context) ([]*model.Session, error)

	// UpdateSyncStats refreshes denormalised group counters after a sync.
	UpdateSyncStats(ctx context.Context, id uuid.UUID, total, active int, syncedAt time.Time) error
}

// GroupStore manages the deliverable-group set of each session.
type GroupStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Group, error)

	// BatchAdd inserts snapshots, skipping duplicates on the unique
	// (sessionID, platformID) pair. Returns the number actually inserted.
	BatchAdd(ctx context.Context, groups []*model.Group) (int, error)

	// UpsertFromSync refreshes title/kind/member count of a known group.
	UpsertFromSync(ctx context.Context, g *model.Group) error

	// MarkRestricted flags a group as restricted. until is nil for
	// restrictions with no known expiry; skip additionally sets isSkipped.
	MarkRestricted(ctx context.Context, id uuid.UUID, reason string, until *time.Time, skip bool) error

	SetLastPost(ctx context.Context, id uuid.UUID, at time.Time) error

	// RecomputePriority marks the top n groups of the session by
	// (activityScore desc, memberCount desc) as priority 1..n and
	// demotes the rest.
	RecomputePriority(ctx context.Context, sessionID uuid.UUID, topN int) error
}

// AdStore manages tenant advertisements.
type AdStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ad, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*model.Ad, error)
	Update(ctx context.Context, ad *model.Ad) error

	// ListScheduledDue returns scheduled ads whose scheduledFor has
	// passed and whose status permits publishing.
	ListScheduledDue(ctx context.Context, now time.Time) ([]*model.Ad, error)

	// SetScheduleResult records a publish attempt: ok flips the ad
	// Active and stamps lastScheduledAt; otherwise Paused with lastError.
	SetScheduleResult(ctx context.Context, id uuid.UUID, ok bool, at time.Time, errMsg string) error
}

// PostStore manages broadcast envelopes and their delivery history.
type PostStore interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Post, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PostStatus) error
	UpdateCounts(ctx context.Context, id uuid.UUID, completed, failed, skipped int) error

	AddHistory(ctx context.Context, h *model.PostHistory) error
	ListHistory(ctx context.Context, postID uuid.UUID) ([]*model.PostHistory, error)
	ListFailedHistory(ctx context.Context, postID uuid.UUID) ([]*model.PostHistory, error)
}

// PaymentStore manages payment receipts.
type PaymentStore interface {
	ListPendingBefore(ctx context.Context, t time.Time) ([]*model.Payment, error)
	Expire(ctx context.Context, id uuid.UUID) error
}

// SubscriptionStore manages tenant subscriptions.
type SubscriptionStore interface {
	GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error)
	ListActiveEndedBefore(ctx context.Context, t time.Time) ([]*model.Subscription, error)
	Expire(ctx context.Context, id uuid.UUID) error
}

// StatsStore persists daily rollups.
type StatsStore interface {
	// CollectDaily aggregates the system counters for the day of t.
	CollectDaily(ctx context.Context, t time.Time) (*model.SystemStatistics, error)

	UpsertDaily(ctx context.Context, row *model.SystemStatistics) error
}
