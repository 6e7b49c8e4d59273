package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/adrelay/internal/engine"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Database.Backend)
	}
	if cfg.Telegram.ConnectTimeoutSec != 60 || cfg.Telegram.SendTimeoutSec != 30 {
		t.Errorf("telegram timeouts = %d/%d, want 60/30",
			cfg.Telegram.ConnectTimeoutSec, cfg.Telegram.SendTimeoutSec)
	}
	if cfg.Telegram.APICallsPerSecond != 25 {
		t.Errorf("api calls per second = %v, want 25", cfg.Telegram.APICallsPerSecond)
	}
	if cfg.Scheduler.PaymentWindowHours != 48 || cfg.Scheduler.ThawAgeDays != 7 {
		t.Errorf("scheduler = %d/%d, want 48/7",
			cfg.Scheduler.PaymentWindowHours, cfg.Scheduler.ThawAgeDays)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %s/%s, want info/text", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Backend != "memory" {
		t.Errorf("backend = %q, want the default", cfg.Database.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// comments are allowed
		database: { backend: "memory" },
		engine: {
			group_delay_min_sec: 20,
			group_delay_max_sec: 40,
			session_message_limit: 15,
			priority_top_n: 10,
		},
		log: { level: "debug", format: "json" },
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.GroupDelayMinSec != 20 || cfg.Engine.GroupDelayMaxSec != 40 {
		t.Errorf("group delay = %d/%d, want 20/40",
			cfg.Engine.GroupDelayMinSec, cfg.Engine.GroupDelayMaxSec)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %s/%s, want debug/json", cfg.Log.Level, cfg.Log.Format)
	}
	// Values the file omits keep their defaults.
	if cfg.Telegram.ConnectTimeoutSec != 60 {
		t.Errorf("connect timeout = %d, want the default 60", cfg.Telegram.ConnectTimeoutSec)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{ not valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want a parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADRELAY_POSTGRES_DSN", "postgres://adrelay@localhost/adrelay")
	t.Setenv("ADRELAY_BOT_TOKEN", "12345:token")
	t.Setenv("ADRELAY_LOG_LEVEL", "warn")
	t.Setenv("ADRELAY_API_CALLS_PER_SECOND", "10")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.PostgresDSN != "postgres://adrelay@localhost/adrelay" {
		t.Errorf("dsn = %q", cfg.Database.PostgresDSN)
	}
	// Setting a DSN flips the default backend to postgres.
	if cfg.Database.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres", cfg.Database.Backend)
	}
	if cfg.Telegram.BotToken != "12345:token" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Telegram.APICallsPerSecond != 10 {
		t.Errorf("api calls per second = %v, want 10", cfg.Telegram.APICallsPerSecond)
	}
}

func TestSecretsNeverComeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		database: { backend: "memory", PostgresDSN: "postgres://evil" },
		telegram: { BotToken: "stolen" },
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.PostgresDSN != "" {
		t.Errorf("dsn from file = %q, want empty", cfg.Database.PostgresDSN)
	}
	if cfg.Telegram.BotToken != "" {
		t.Errorf("bot token from file = %q, want empty", cfg.Telegram.BotToken)
	}
}

func TestEngineOptionsMapping(t *testing.T) {
	cfg := Default()
	cfg.Engine = EngineConfig{
		GroupDelayMinSec:    20,
		GroupDelayMaxSec:    45,
		SessionMessageLimit: 15,
		SessionCooldownMin:  30,
		GroupCooldownMin:    90,
		PriorityTopN:        25,
	}

	opts := cfg.EngineOptions()
	if opts.MinGroupDelay != 20*time.Second || opts.MaxGroupDelay != 45*time.Second {
		t.Errorf("group delay = [%v, %v], want [20s, 45s]", opts.MinGroupDelay, opts.MaxGroupDelay)
	}
	if opts.SessionMessageLimit != 15 {
		t.Errorf("session message limit = %d, want 15", opts.SessionMessageLimit)
	}
	if opts.SessionCooldown != 30*time.Minute {
		t.Errorf("session cooldown = %v, want 30m", opts.SessionCooldown)
	}
	if opts.GroupCooldown != 90*time.Minute {
		t.Errorf("group cooldown = %v, want 90m", opts.GroupCooldown)
	}
	if opts.PriorityTopN != 25 {
		t.Errorf("priority top n = %d, want 25", opts.PriorityTopN)
	}

	// Unset knobs fall through to the engine defaults.
	d := engine.DefaultOptions()
	if opts.RoundPause != d.RoundPause || opts.MaxFloodPerSession != d.MaxFloodPerSession {
		t.Errorf("defaults leaked: roundPause=%v maxFlood=%d", opts.RoundPause, opts.MaxFloodPerSession)
	}
}
