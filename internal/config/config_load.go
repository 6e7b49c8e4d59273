package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend: "memory",
		},
		Telegram: TelegramConfig{
			ConnectTimeoutSec: 60,
			SendTimeoutSec:    30,
			ConnectionRetries: 3,
			APICallsPerSecond: 25,
		},
		Scheduler: SchedulerConfig{
			PaymentWindowHours: 48,
			ThawAgeDays:        7,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets live in env only.
	envStr("ADRELAY_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("ADRELAY_BOT_TOKEN", &c.Telegram.BotToken)

	envStr("ADRELAY_DB_BACKEND", &c.Database.Backend)
	envStr("ADRELAY_LOG_LEVEL", &c.Log.Level)
	envStr("ADRELAY_LOG_FORMAT", &c.Log.Format)

	// A DSN implies the postgres backend unless the file says otherwise.
	if c.Database.PostgresDSN != "" && c.Database.Backend == "memory" {
		c.Database.Backend = "postgres"
	}

	if v := os.Getenv("ADRELAY_API_CALLS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Telegram.APICallsPerSecond = f
		}
	}
}
