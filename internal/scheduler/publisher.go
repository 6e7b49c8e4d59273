// Package scheduler hosts the time-driven control loops: the scheduled-ad
// publisher and the maintenance sweeps. Each loop runs on its own cron
// schedule and logs-and-continues on failure; a slow sweep never blocks
// the others.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/engine"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// Poster starts broadcast jobs. Satisfied by *engine.Engine.
type Poster interface {
	StartPosting(ctx context.Context, tenantID, adID uuid.UUID, opts engine.StartOptions) (*engine.Job, error)
}

// Publisher scans for scheduled ads that are due and hands them to the
// posting engine.
type Publisher struct {
	clock  clock.Clock
	stores *store.Stores
	poster Poster
}

// NewPublisher creates the scheduled-ad publisher.
func NewPublisher(clk clock.Clock, stores *store.Stores, poster Poster) *Publisher {
	return &Publisher{clock: clk, stores: stores, poster: poster}
}

// Run fires PublishDue every minute until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	return clock.RunCron(ctx, p.clock, clock.EveryMinute, "scheduled-publisher", p.PublishDue)
}

// PublishDue starts a job for every scheduled ad whose time has come.
// A publish failure pauses the ad and records the error; it never stops
// the scan.
func (p *Publisher) PublishDue(ctx context.Context) error {
	now := p.clock.Now()
	due, err := p.stores.Ads.ListScheduledDue(ctx, now)
	if err != nil {
		return err
	}
	for _, ad := range due {
		_, err := p.poster.StartPosting(ctx, ad.TenantID, ad.ID, engine.StartOptions{})
		if err != nil {
			slog.Warn("scheduled publish failed", "ad", ad.ID, "error", err)
			if serr := p.stores.Ads.SetScheduleResult(ctx, ad.ID, false, now, err.Error()); serr != nil {
				slog.Error("schedule result update failed", "ad", ad.ID, "error", serr)
			}
			continue
		}
		if serr := p.stores.Ads.SetScheduleResult(ctx, ad.ID, true, now, ""); serr != nil {
			slog.Error("schedule result update failed", "ad", ad.ID, "error", serr)
		}
		slog.Info("scheduled ad published", "ad", ad.ID, "tenant", ad.TenantID)
	}
	return nil
}
