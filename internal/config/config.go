// Package config holds the service configuration: JSON5 file with
// defaults, overlaid by environment variables. Secrets (database DSN,
// bot token) are never read from the file.
package config

import (
	"time"

	"github.com/nextlevelbuilder/adrelay/internal/engine"
)

// Config is the root configuration for the adrelay service.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Telegram  TelegramConfig  `json:"telegram"`
	Engine    EngineConfig    `json:"engine"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Log       LogConfig       `json:"log,omitempty"`
}

// DatabaseConfig selects the store backend.
// PostgresDSN is NEVER read from the file — only from env ADRELAY_POSTGRES_DSN.
type DatabaseConfig struct {
	Backend     string `json:"backend"` // "postgres" or "memory"
	PostgresDSN string `json:"-"`
}

// TelegramConfig configures the platform client.
// BotToken comes from env ADRELAY_BOT_TOKEN only.
type TelegramConfig struct {
	BotToken          string  `json:"-"`
	ConnectTimeoutSec int     `json:"connect_timeout_sec,omitempty"`
	SendTimeoutSec    int     `json:"send_timeout_sec,omitempty"`
	ConnectionRetries int     `json:"connection_retries,omitempty"`
	APICallsPerSecond float64 `json:"api_calls_per_second,omitempty"`
}

// EngineConfig exposes the posting throttle knobs. Zero values mean
// "use default".
type EngineConfig struct {
	GroupDelayMinSec      int `json:"group_delay_min_sec,omitempty"`
	GroupDelayMaxSec      int `json:"group_delay_max_sec,omitempty"`
	RoundPauseMin         int `json:"round_pause_min,omitempty"`        // minutes
	RoundPauseJitterMin   int `json:"round_pause_jitter_min,omitempty"` // minutes
	LongPauseInterval     int `json:"long_pause_interval,omitempty"`
	LongPauseMinSec       int `json:"long_pause_min_sec,omitempty"`
	LongPauseMaxSec       int `json:"long_pause_max_sec,omitempty"`
	SessionMessageLimit   int `json:"session_message_limit,omitempty"`
	SessionCooldownMin    int `json:"session_cooldown_min,omitempty"` // minutes
	MaxFloodPerSession    int `json:"max_flood_per_session,omitempty"`
	FloodFreezeMin        int `json:"flood_freeze_min,omitempty"` // minutes
	MaxConsecutiveErrors  int `json:"max_consecutive_errors,omitempty"`
	GroupCooldownMin      int `json:"group_cooldown_min,omitempty"` // minutes
	PriorityTopN          int `json:"priority_top_n,omitempty"`
	MaxJobLogEntries      int `json:"max_job_log_entries,omitempty"`
}

// SchedulerConfig configures the maintenance sweeps.
type SchedulerConfig struct {
	PaymentWindowHours int `json:"payment_window_hours,omitempty"`
	ThawAgeDays        int `json:"thaw_age_days,omitempty"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"
	Format string `json:"format,omitempty"` // "text" (default) or "json"
}

// EngineOptions converts the file knobs into engine.Options, leaving
// defaults in place for anything unset.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	e := c.Engine
	if e.GroupDelayMinSec > 0 {
		opts.MinGroupDelay = time.Duration(e.GroupDelayMinSec) * time.Second
	}
	if e.GroupDelayMaxSec > 0 {
		opts.MaxGroupDelay = time.Duration(e.GroupDelayMaxSec) * time.Second
	}
	if e.RoundPauseMin > 0 {
		opts.RoundPause = time.Duration(e.RoundPauseMin) * time.Minute
	}
	if e.RoundPauseJitterMin > 0 {
		opts.RoundPauseJitter = time.Duration(e.RoundPauseJitterMin) * time.Minute
	}
	if e.LongPauseInterval > 0 {
		opts.LongPauseInterval = e.LongPauseInterval
	}
	if e.LongPauseMinSec > 0 {
		opts.LongPauseMin = time.Duration(e.LongPauseMinSec) * time.Second
	}
	if e.LongPauseMaxSec > 0 {
		opts.LongPauseMax = time.Duration(e.LongPauseMaxSec) * time.Second
	}
	if e.SessionMessageLimit > 0 {
		opts.SessionMessageLimit = e.SessionMessageLimit
	}
	if e.SessionCooldownMin > 0 {
		opts.SessionCooldown = time.Duration(e.SessionCooldownMin) * time.Minute
	}
	if e.MaxFloodPerSession > 0 {
		opts.MaxFloodPerSession = e.MaxFloodPerSession
	}
	if e.FloodFreezeMin > 0 {
		opts.FloodFreeze = time.Duration(e.FloodFreezeMin) * time.Minute
	}
	if e.MaxConsecutiveErrors > 0 {
		opts.MaxConsecutiveErrors = e.MaxConsecutiveErrors
	}
	if e.GroupCooldownMin > 0 {
		opts.GroupCooldown = time.Duration(e.GroupCooldownMin) * time.Minute
	}
	if e.PriorityTopN > 0 {
		opts.PriorityTopN = e.PriorityTopN
	}
	if e.MaxJobLogEntries > 0 {
		opts.MaxJobLogEntries = e.MaxJobLogEntries
	}
	return opts
}
