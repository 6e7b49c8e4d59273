package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// MaintenanceOptions tune the periodic sweeps. Zero values fall back to
// the defaults.
type MaintenanceOptions struct {
	// PriorityTopN is the priority group count per session (default 50).
	PriorityTopN int

	// PaymentWindow is how long a payment may sit pending (default 48h).
	PaymentWindow time.Duration

	// ThawAge is the freeze age at which sessions are thawed (default 7d).
	ThawAge time.Duration
}

func (o *MaintenanceOptions) withDefaults() MaintenanceOptions {
	out := *o
	if out.PriorityTopN <= 0 {
		out.PriorityTopN = 50
	}
	if out.PaymentWindow <= 0 {
		out.PaymentWindow = 48 * time.Hour
	}
	if out.ThawAge <= 0 {
		out.ThawAge = 7 * 24 * time.Hour
	}
	return out
}

// Maintenance bundles the periodic sweeps over the repository.
type Maintenance struct {
	clock  clock.Clock
	stores *store.Stores
	opts   MaintenanceOptions
}

// NewMaintenance creates the maintenance sweeps.
func NewMaintenance(clk clock.Clock, stores *store.Stores, opts MaintenanceOptions) *Maintenance {
	return &Maintenance{clock: clk, stores: stores, opts: opts.withDefaults()}
}

// Run starts every sweep on its own schedule and blocks until ctx is
// cancelled. Independent timers: one failing or slow sweep cannot delay
// another.
func (m *Maintenance) Run(ctx context.Context) {
	loops := []struct {
		expr string
		name string
		fn   func(context.Context) error
	}{
		{clock.Hourly, "subscription-expiry", m.ExpireSubscriptions},
		{clock.EveryNHours(6), "payment-expiry", m.ExpirePayments},
		{clock.DailyAt(3, 0), "session-thaw", m.ThawFrozenSessions},
		{clock.DailyAt(0, 0), "stats-rollup", m.RollupDailyStats},
		{clock.DailyAt(4, 0), "priority-recompute", m.RecomputePriorityGroups},
	}
	for _, loop := range loops {
		go func() {
			if err := clock.RunCron(ctx, m.clock, loop.expr, loop.name, loop.fn); err != nil && ctx.Err() == nil {
				slog.Error("maintenance loop exited", "job", loop.name, "error", err)
			}
		}()
	}
	<-ctx.Done()
}

// ExpireSubscriptions flips Active subscriptions whose end date passed.
func (m *Maintenance) ExpireSubscriptions(ctx context.Context) error {
	now := m.clock.Now()
	subs, err := m.stores.Subscriptions.ListActiveEndedBefore(ctx, now)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := m.stores.Subscriptions.Expire(ctx, sub.ID); err != nil {
			slog.Warn("subscription expiry failed", "subscription", sub.ID, "error", err)
			continue
		}
		slog.Info("subscription expired", "subscription", sub.ID, "tenant", sub.TenantID)
	}
	return nil
}

// ExpirePayments expires receipts that sat Pending beyond the window.
func (m *Maintenance) ExpirePayments(ctx context.Context) error {
	cutoff := m.clock.Now().Add(-m.opts.PaymentWindow)
	pending, err := m.stores.Payments.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if err := m.stores.Payments.Expire(ctx, p.ID); err != nil {
			slog.Warn("payment expiry failed", "payment", p.ID, "error", err)
			continue
		}
		slog.Info("payment expired", "payment", p.ID, "tenant", p.TenantID)
	}
	return nil
}

// ThawFrozenSessions lifts week-old freezes. Banned sessions stay
// frozen: their credential is dead and thawing would only resurrect a
// session the platform already rejected.
func (m *Maintenance) ThawFrozenSessions(ctx context.Context) error {
	cutoff := m.clock.Now().Add(-m.opts.ThawAge)
	frozen, err := m.stores.Sessions.ListFrozenBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, sess := range frozen {
		if sess.Status == model.SessionBanned {
			continue
		}
		if err := m.stores.Sessions.ClearFreeze(ctx, sess.ID); err != nil {
			slog.Warn("session thaw failed", "session", sess.ID, "error", err)
			continue
		}
		slog.Info("session thawed", "session", sess.ID, "frozenAt", sess.FrozenAt)
	}
	return nil
}

// RollupDailyStats upserts the statistics row for the previous day.
func (m *Maintenance) RollupDailyStats(ctx context.Context) error {
	day := m.clock.Now().Add(-24 * time.Hour)
	row, err := m.stores.Stats.CollectDaily(ctx, day)
	if err != nil {
		return err
	}
	if err := m.stores.Stats.UpsertDaily(ctx, row); err != nil {
		return err
	}
	slog.Info("daily stats rolled up", "date", row.Date.Format("2006-01-02"),
		"messagesSent", row.MessagesSent, "postsCompleted", row.PostsCompleted)
	return nil
}

// RecomputePriorityGroups re-ranks each active session's groups and
// marks the top-N as priority.
func (m *Maintenance) RecomputePriorityGroups(ctx context.Context) error {
	sessions, err := m.stores.Sessions.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := m.stores.Groups.RecomputePriority(ctx, sess.ID, m.opts.PriorityTopN); err != nil {
			slog.Warn("priority recompute failed", "session", sess.ID, "error", err)
		}
	}
	return nil
}
