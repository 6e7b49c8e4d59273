package clock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adhocore/gronx"
)

// Cron expression helpers for the schedules the scheduler package uses.
const (
	EveryMinute = "* * * * *"
	Hourly      = "0 * * * *"
)

// EveryNHours builds a cron expression firing at minute 0 of every n-th hour.
func EveryNHours(n int) string {
	return fmt.Sprintf("0 */%d * * *", n)
}

// DailyAt builds a cron expression firing once a day at hh:mm.
func DailyAt(hh, mm int) string {
	return fmt.Sprintf("%d %d * * *", mm, hh)
}

// ValidateExpr reports whether expr is a valid cron expression.
func ValidateExpr(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// RunCron runs fn on the given cron schedule until ctx is cancelled.
// Each invocation failure is logged and the loop continues; one slow or
// failing job never blocks another because every job owns its own RunCron.
func RunCron(ctx context.Context, clk Clock, expr, name string, fn func(ctx context.Context) error) error {
	if err := ValidateExpr(expr); err != nil {
		return err
	}
	slog.Info("cron loop started", "job", name, "schedule", expr)
	for {
		next, err := gronx.NextTickAfter(expr, clk.Now(), false)
		if err != nil {
			return fmt.Errorf("next tick for %q: %w", expr, err)
		}
		if err := clk.Sleep(ctx, next.Sub(clk.Now())); err != nil {
			slog.Info("cron loop stopped", "job", name)
			return err
		}
		if err := fn(ctx); err != nil {
			slog.Error("cron job failed", "job", name, "error", err)
		}
	}
}
