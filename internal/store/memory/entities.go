package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

type tenantStore struct{ b *Backend }

func (s *tenantStore) GetByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	t, ok := s.b.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

type sessionStore struct{ b *Backend }

func (s *sessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	row, ok := s.b.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *row
	return &c, nil
}

func (s *sessionStore) ListByTenant(_ context.Context, tenantID uuid.UUID, statuses ...model.SessionStatus) ([]*model.Session, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Session
	for _, row := range s.b.sessions {
		if row.TenantID != tenantID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, row.Status) {
			continue
		}
		c := *row
		out = append(out, &c)
	}
	sortByCreated(out)
	return out, nil
}

func hasStatus(statuses []model.SessionStatus, st model.SessionStatus) bool {
	for _, v := range statuses {
		if v == st {
			return true
		}
	}
	return false
}

func sortByCreated(rows []*model.Session) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

func (s *sessionStore) Update(_ context.Context, row *model.Session) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.sessions[row.ID]; !ok {
		return store.ErrNotFound
	}
	c := *row
	s.b.sessions[row.ID] = &c
	return nil
}

func (s *sessionStore) SetFrozen(_ context.Context, id uuid.UUID, at time.Time, status *model.SessionStatus) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	row.IsFrozen = true
	t := at
	row.FrozenAt = &t
	row.FreezeCount++
	if status != nil {
		row.Status = *status
	}
	return nil
}

func (s *sessionStore) ClearFreeze(_ context.Context, id uuid.UUID) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	row.IsFrozen = false
	row.FrozenAt = nil
	row.UnfreezeAt = nil
	return nil
}

func (s *sessionStore) ListFrozenBefore(_ context.Context, t time.Time) ([]*model.Session, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Session
	for _, row := range s.b.sessions {
		if row.IsFrozen && row.FrozenAt != nil && row.FrozenAt.Before(t) {
			c := *row
			out = append(out, &c)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *sessionStore) ListActive(_ context.Context) ([]*model.Session, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Session
	for _, row := range s.b.sessions {
		if row.Status == model.SessionActive {
			c := *row
			out = append(out, &c)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *sessionStore) UpdateSyncStats(_ context.Context, id uuid.UUID, total, active int, syncedAt time.Time) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	row.TotalGroups = total
	row.ActiveGroups = active
	t := syncedAt
	row.LastSyncAt = &t
	return nil
}

type groupStore struct{ b *Backend }

func (s *groupStore) GetByID(_ context.Context, id uuid.UUID) (*model.Group, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	row, ok := s.b.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *row
	return &c, nil
}

func (s *groupStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*model.Group, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Group
	for _, row := range s.b.groups {
		if row.SessionID == sessionID {
			c := *row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlatformID < out[j].PlatformID })
	return out, nil
}

func (s *groupStore) BatchAdd(_ context.Context, groups []*model.Group) (int, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	seen := make(map[uuid.UUID]map[int64]bool)
	for _, row := range s.b.groups {
		m, ok := seen[row.SessionID]
		if !ok {
			m = make(map[int64]bool)
			seen[row.SessionID] = m
		}
		m[row.PlatformID] = true
	}

	added := 0
	for _, g := range groups {
		if seen[g.SessionID][g.PlatformID] {
			continue
		}
		c := *g
		if c.ID == uuid.Nil {
			c.ID = uuid.Must(uuid.NewV7())
		}
		s.b.groups[c.ID] = &c
		m, ok := seen[c.SessionID]
		if !ok {
			m = make(map[int64]bool)
			seen[c.SessionID] = m
		}
		m[c.PlatformID] = true
		added++
	}
	return added, nil
}

func (s *groupStore) UpsertFromSync(_ context.Context, g *model.Group) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for _, row := range s.b.groups {
		if row.SessionID == g.SessionID && row.PlatformID == g.PlatformID {
			row.Title = g.Title
			row.Username = g.Username
			row.Kind = g.Kind
			row.MemberCount = g.MemberCount
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *groupStore) MarkRestricted(_ context.Context, id uuid.UUID, reason string, until *time.Time, skip bool) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	row.HasRestrictions = true
	row.SkipReason = reason
	row.RestrictionUntil = until
	if skip {
		row.IsSkipped = true
	}
	return nil
}

func (s *groupStore) SetLastPost(_ context.Context, id uuid.UUID, at time.Time) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	t := at
	row.LastPostAt = &t
	return nil
}

func (s *groupStore) RecomputePriority(_ context.Context, sessionID uuid.UUID, topN int) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var rows []*model.Group
	for _, row := range s.b.groups {
		if row.SessionID == sessionID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ActivityScore != rows[j].ActivityScore {
			return rows[i].ActivityScore > rows[j].ActivityScore
		}
		return rows[i].MemberCount > rows[j].MemberCount
	})
	for i, row := range rows {
		if i < topN {
			row.IsPriority = true
			row.PriorityOrder = i + 1
		} else {
			row.IsPriority = false
			row.PriorityOrder = 0
		}
	}
	return nil
}

type adStore struct{ b *Backend }

func (s *adStore) GetByID(_ context.Context, id uuid.UUID) (*model.Ad, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	row, ok := s.b.ads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *row
	return &c, nil
}

func (s *adStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*model.Ad, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Ad
	for _, row := range s.b.ads {
		if row.TenantID == tenantID {
			c := *row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *adStore) Update(_ context.Context, ad *model.Ad) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.ads[ad.ID]; !ok {
		return store.ErrNotFound
	}
	c := *ad
	s.b.ads[ad.ID] = &c
	return nil
}

func (s *adStore) ListScheduledDue(_ context.Context, now time.Time) ([]*model.Ad, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Ad
	for _, row := range s.b.ads {
		if !row.IsScheduled || row.ScheduledFor == nil || row.ScheduledFor.After(now) {
			continue
		}
		if row.Status != model.AdActive && row.Status != model.AdPaused {
			continue
		}
		c := *row
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(*out[j].ScheduledFor) })
	return out, nil
}

func (s *adStore) SetScheduleResult(_ context.Context, id uuid.UUID, ok bool, at time.Time, errMsg string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, found := s.b.ads[id]
	if !found {
		return store.ErrNotFound
	}
	if ok {
		row.Status = model.AdActive
		row.IsScheduled = false
		t := at
		row.LastScheduledAt = &t
		row.LastError = ""
	} else {
		row.Status = model.AdPaused
		row.LastError = errMsg
	}
	return nil
}

type postStore struct{ b *Backend }

func (s *postStore) Create(_ context.Context, p *model.Post) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	c := *p
	s.b.posts[p.ID] = &c
	return nil
}

func (s *postStore) GetByID(_ context.Context, id uuid.UUID) (*model.Post, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	row, ok := s.b.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *row
	return &c, nil
}

func (s *postStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.PostStatus) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	row.Status = status
	switch status {
	case model.PostCompleted, model.PostFailed, model.PostCancelled:
		if row.FinishedAt == nil {
			t := time.Now()
			row.FinishedAt = &t
		}
	}
	return nil
}

func (s *postStore) UpdateCounts(_ context.Context, id uuid.UUID, completed, failed, skipped int) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	row.CompletedGroups = completed
	row.FailedGroups = failed
	row.SkippedGroups = skipped
	return nil
}

func (s *postStore) AddHistory(_ context.Context, h *model.PostHistory) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	c := *h
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV7())
	}
	s.b.history[h.PostID] = append(s.b.history[h.PostID], &c)
	return nil
}

func (s *postStore) ListHistory(_ context.Context, postID uuid.UUID) ([]*model.PostHistory, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	rows := s.b.history[postID]
	out := make([]*model.PostHistory, 0, len(rows))
	for _, row := range rows {
		c := *row
		out = append(out, &c)
	}
	return out, nil
}

func (s *postStore) ListFailedHistory(_ context.Context, postID uuid.UUID) ([]*model.PostHistory, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.PostHistory
	for _, row := range s.b.history[postID] {
		if row.Status == model.DeliveryFailed {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

type paymentStore struct{ b *Backend }

func (s *paymentStore) ListPendingBefore(_ context.Context, t time.Time) ([]*model.Payment, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Payment
	for _, row := range s.b.payments {
		if row.Status == model.PaymentPending && row.CreatedAt.Before(t) {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *paymentStore) Expire(_ context.Context, id uuid.UUID) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.payments[id]
	if !ok {
		return store.ErrNotFound
	}
	row.Status = model.PaymentExpired
	return nil
}

type subscriptionStore struct{ b *Backend }

func (s *subscriptionStore) GetActiveByTenant(_ context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	for _, row := range s.b.subscriptions {
		if row.TenantID == tenantID && row.Status == model.SubscriptionActive {
			c := *row
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *subscriptionStore) ListActiveEndedBefore(_ context.Context, t time.Time) ([]*model.Subscription, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	var out []*model.Subscription
	for _, row := range s.b.subscriptions {
		if row.Status == model.SubscriptionActive && !row.EndDate.After(t) {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *subscriptionStore) Expire(_ context.Context, id uuid.UUID) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	row, ok := s.b.subscriptions[id]
	if !ok {
		return store.ErrNotFound
	}
	row.Status = model.SubscriptionExpired
	return nil
}

type statsStore struct{ b *Backend }

func (s *statsStore) CollectDaily(_ context.Context, t time.Time) (*model.SystemStatistics, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	day := t.Truncate(24 * time.Hour)
	next := day.Add(24 * time.Hour)
	row := &model.SystemStatistics{Date: day, TotalTenants: len(s.b.tenants)}

	for _, sess := range s.b.sessions {
		if sess.Status == model.SessionActive && !sess.IsFrozen {
			row.ActiveSessions++
		}
	}
	row.TotalGroups = len(s.b.groups)
	for _, p := range s.b.posts {
		if p.Status == model.PostCompleted && p.FinishedAt != nil &&
			!p.FinishedAt.Before(day) && p.FinishedAt.Before(next) {
			row.PostsCompleted++
		}
	}
	for _, attempts := range s.b.history {
		for _, h := range attempts {
			if h.Status == model.DeliverySent && h.SentAt != nil &&
				!h.SentAt.Before(day) && h.SentAt.Before(next) {
				row.MessagesSent++
			}
		}
	}
	for _, pay := range s.b.payments {
		if pay.Status == model.PaymentApproved &&
			!pay.CreatedAt.Before(day) && pay.CreatedAt.Before(next) {
			row.Revenue += pay.Amount
		}
	}
	return row, nil
}

func (s *statsStore) UpsertDaily(_ context.Context, row *model.SystemStatistics) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	c := *row
	s.b.stats[row.Date.Format("2006-01-02")] = &c
	return nil
}
