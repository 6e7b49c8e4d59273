// Package model defines the persisted entities of the broadcast scheduler:
// tenants, impersonated sessions, the groups each session has joined, ads,
// posts (persisted broadcast envelopes) and their per-group delivery history.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an impersonated account session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionInactive SessionStatus = "inactive"
	SessionFrozen   SessionStatus = "frozen"
	SessionBanned   SessionStatus = "banned"
	SessionDeleted  SessionStatus = "deleted"
)

// GroupKind is the platform-native chat flavour.
type GroupKind string

const (
	KindGroup      GroupKind = "group"
	KindSupergroup GroupKind = "supergroup"
	KindChannel    GroupKind = "channel"
)

// AdStatus is the lifecycle state of an advertisement.
type AdStatus string

const (
	AdDraft    AdStatus = "draft"
	AdActive   AdStatus = "active"
	AdPaused   AdStatus = "paused"
	AdClosed   AdStatus = "closed"
	AdSoldOut  AdStatus = "sold_out"
	AdArchived AdStatus = "archived"
)

// PostStatus is the lifecycle state of a persisted broadcast envelope.
type PostStatus string

const (
	PostPending    PostStatus = "pending"
	PostInProgress PostStatus = "in_progress"
	PostPaused     PostStatus = "paused"
	PostCompleted  PostStatus = "completed"
	PostFailed     PostStatus = "failed"
	PostCancelled  PostStatus = "cancelled"
)

// DeliveryStatus is the outcome of one (post, group) delivery attempt.
type DeliveryStatus string

const (
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliverySkipped  DeliveryStatus = "skipped"
	DeliveryRetrying DeliveryStatus = "retrying"
)

// PaymentStatus is the lifecycle state of a payment receipt.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
	PaymentExpired  PaymentStatus = "expired"
)

// SubscriptionStatus is the lifecycle state of a tenant subscription.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Tenant is the engine's customer. It owns sessions, their groups, and ads.
type Tenant struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	BrandAdEnabled bool      `json:"brandAdEnabled,omitempty"`
	BrandAdText    string    `json:"brandAdText,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Subscription caps what a tenant may register and hints posting cadence.
type Subscription struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenantId"`
	Status        SubscriptionStatus `json:"status"`
	MaxSessions   int                `json:"maxSessions"`
	MaxGroups     int                `json:"maxGroups"`
	MaxAds        int                `json:"maxAds"`
	GroupInterval time.Duration      `json:"groupInterval,omitempty"`
	StartDate     time.Time          `json:"startDate"`
	EndDate       time.Time          `json:"endDate"`
}

// Session is one authenticated, impersonated connection to the messaging
// platform on behalf of an end-user account owned by a tenant.
type Session struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenantId"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	SessionString string        `json:"-"` // opaque credential, never serialized
	Status        SessionStatus `json:"status"`

	IsFrozen    bool       `json:"isFrozen"`
	FrozenAt    *time.Time `json:"frozenAt,omitempty"`
	UnfreezeAt  *time.Time `json:"unfreezeAt,omitempty"`
	FreezeCount int        `json:"freezeCount"`

	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	TotalGroups  int        `json:"totalGroups"`
	ActiveGroups int        `json:"activeGroups"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Usable reports whether the session may be used for sending. The caller
// still has to establish (or reuse) a live client connection.
func (s *Session) Usable() bool {
	return s.Status == SessionActive && !s.IsFrozen && s.SessionString != ""
}

// Group is one platform chat a session has joined.
type Group struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"sessionId"`
	PlatformID int64     `json:"platformId"`
	Title      string    `json:"title"`
	Username   string    `json:"username,omitempty"`
	Kind       GroupKind `json:"kind"`

	MemberCount int  `json:"memberCount"`
	IsActive    bool `json:"isActive"`

	IsSkipped  bool   `json:"isSkipped"`
	SkipReason string `json:"skipReason,omitempty"`

	HasRestrictions  bool       `json:"hasRestrictions"`
	RestrictionUntil *time.Time `json:"restrictionUntil,omitempty"`

	IsPriority    bool    `json:"isPriority"`
	PriorityOrder int     `json:"priorityOrder,omitempty"`
	ActivityScore float64 `json:"activityScore"`

	LastPostAt *time.Time `json:"lastPostAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Deliverable reports whether the group may receive a broadcast right now.
// Session usability is checked separately by the caller.
func (g *Group) Deliverable(now time.Time) bool {
	if !g.IsActive || g.IsSkipped {
		return false
	}
	if g.HasRestrictions {
		if g.RestrictionUntil == nil || !g.RestrictionUntil.Before(now) {
			return false
		}
	}
	return true
}

// Ad is a tenant's advertisement.
type Ad struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Content  string    `json:"content"`
	Media    []string  `json:"media,omitempty"`
	Status   AdStatus  `json:"status"`

	IsScheduled     bool       `json:"isScheduled"`
	ScheduledFor    *time.Time `json:"scheduledFor,omitempty"`
	LastScheduledAt *time.Time `json:"lastScheduledAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`

	// Anti-spam knobs. Zero means "use the engine default".
	IntervalMin   time.Duration `json:"intervalMin,omitempty"`
	IntervalMax   time.Duration `json:"intervalMax,omitempty"`
	GroupInterval time.Duration `json:"groupInterval,omitempty"`

	// Optional subset of group IDs this ad targets. Empty means all.
	SelectedGroups []uuid.UUID `json:"selectedGroups,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Post is the persisted envelope of one broadcast run.
type Post struct {
	ID        uuid.UUID  `json:"id"`
	AdID      uuid.UUID  `json:"adId"`
	SessionID uuid.UUID  `json:"sessionId"` // primary session
	Status    PostStatus `json:"status"`

	TotalGroups     int `json:"totalGroups"`
	CompletedGroups int `json:"completedGroups"`
	FailedGroups    int `json:"failedGroups"`
	SkippedGroups   int `json:"skippedGroups"`

	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PostHistory records one (post, group) delivery attempt.
type PostHistory struct {
	ID      uuid.UUID      `json:"id"`
	PostID  uuid.UUID      `json:"postId"`
	GroupID uuid.UUID      `json:"groupId"`
	Status  DeliveryStatus `json:"status"`

	PlatformMessageID int64      `json:"platformMessageId,omitempty"`
	Error             string     `json:"error,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	FailedAt          *time.Time `json:"failedAt,omitempty"`
}

// Payment is a pending or settled payment receipt for a subscription.
type Payment struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  uuid.UUID     `json:"tenantId"`
	Amount    int64         `json:"amount"` // minor currency units
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// SystemStatistics is the daily rollup row, keyed by date.
type SystemStatistics struct {
	Date           time.Time `json:"date"`
	TotalTenants   int       `json:"totalTenants"`
	ActiveSessions int       `json:"activeSessions"`
	TotalGroups    int       `json:"totalGroups"`
	PostsCompleted int       `json:"postsCompleted"`
	MessagesSent   int       `json:"messagesSent"`
	Revenue        int64     `json:"revenue"` // minor currency units
}
