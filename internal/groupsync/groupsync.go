// Package groupsync populates and refreshes the deliverable-group set of
// each session from the platform's view of its chats. The posting engine
// only mutates groups on delivery outcomes; creation happens here.
package groupsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// Service synchronises session group lists.
type Service struct {
	clock  clock.Clock
	stores *store.Stores
	client platform.SessionClient
}

// New creates the sync service.
func New(clk clock.Clock, stores *store.Stores, client platform.SessionClient) *Service {
	return &Service{clock: clk, stores: stores, client: client}
}

// Result summarises one session sync.
type Result struct {
	SessionID uuid.UUID
	Total     int
	Added     int
	Refreshed int
}

// SyncSession connects the session if needed, pulls the platform's group
// snapshots and reconciles them into the store. New groups are inserted
// active; known groups get their title and member count refreshed.
// Duplicate snapshots are deduplicated on (session, platformID), so the
// operation is idempotent.
func (s *Service) SyncSession(ctx context.Context, sess *model.Session) (Result, error) {
	res := Result{SessionID: sess.ID}
	if !sess.Usable() {
		return res, fmt.Errorf("session %s not usable", sess.ID)
	}

	h, err := s.client.Connect(ctx, sess)
	if err != nil {
		return res, fmt.Errorf("connect: %w", err)
	}
	snaps, err := s.client.SyncGroups(ctx, h)
	if err != nil {
		return res, fmt.Errorf("sync groups: %w", err)
	}

	now := s.clock.Now()
	existing, err := s.stores.Groups.ListBySession(ctx, sess.ID)
	if err != nil {
		return res, err
	}
	known := make(map[int64]bool, len(existing))
	for _, g := range existing {
		known[g.PlatformID] = true
	}

	var fresh []*model.Group
	for _, snap := range snaps {
		g := &model.Group{
			SessionID:   sess.ID,
			PlatformID:  snap.PlatformID,
			Title:       snap.Title,
			Username:    snap.Username,
			Kind:        snap.Kind,
			MemberCount: snap.MemberCount,
			IsActive:    true,
			CreatedAt:   now,
		}
		if known[snap.PlatformID] {
			if err := s.stores.Groups.UpsertFromSync(ctx, g); err != nil {
				slog.Warn("group refresh failed", "session", sess.ID, "platformId", snap.PlatformID, "error", err)
				continue
			}
			res.Refreshed++
		} else {
			fresh = append(fresh, g)
		}
	}

	if len(fresh) > 0 {
		added, err := s.stores.Groups.BatchAdd(ctx, fresh)
		if err != nil {
			return res, fmt.Errorf("batch add: %w", err)
		}
		res.Added = added
	}

	all, err := s.stores.Groups.ListBySession(ctx, sess.ID)
	if err != nil {
		return res, err
	}
	active := 0
	for _, g := range all {
		if g.Deliverable(now) {
			active++
		}
	}
	res.Total = len(all)
	if err := s.stores.Sessions.UpdateSyncStats(ctx, sess.ID, len(all), active, now); err != nil {
		return res, err
	}

	slog.Info("session synced", "session", sess.ID,
		"total", res.Total, "added", res.Added, "refreshed", res.Refreshed)
	return res, nil
}

// Run refreshes every active session's group list once a day. Group
// membership drifts slowly; the nightly pass keeps counters and titles
// honest without hammering the platform.
func (s *Service) Run(ctx context.Context) error {
	return clock.RunCron(ctx, s.clock, clock.DailyAt(2, 0), "group-sync", s.SyncAll)
}

// SyncAll syncs every usable session across all tenants. Per-session
// failures are logged; the last error is returned after all were attempted.
func (s *Service) SyncAll(ctx context.Context) error {
	sessions, err := s.stores.Sessions.ListActive(ctx)
	if err != nil {
		return err
	}
	var lastErr error
	for _, sess := range sessions {
		if !sess.Usable() {
			continue
		}
		if _, err := s.SyncSession(ctx, sess); err != nil {
			slog.Warn("session sync failed", "session", sess.ID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// SyncTenant syncs every usable session of the tenant. Per-session
// failures are logged; the last error is returned after all sessions
// were attempted.
func (s *Service) SyncTenant(ctx context.Context, tenantID uuid.UUID) ([]Result, error) {
	sessions, err := s.stores.Sessions.ListByTenant(ctx, tenantID, model.SessionActive)
	if err != nil {
		return nil, err
	}
	var out []Result
	var lastErr error
	for _, sess := range sessions {
		if !sess.Usable() {
			continue
		}
		res, err := s.SyncSession(ctx, sess)
		if err != nil {
			slog.Warn("session sync failed", "session", sess.ID, "error", err)
			lastErr = err
			continue
		}
		out = append(out, res)
	}
	return out, lastErr
}
