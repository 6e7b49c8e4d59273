package cmd

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/config"
	"github.com/nextlevelbuilder/adrelay/internal/engine"
	"github.com/nextlevelbuilder/adrelay/internal/groupsync"
	"github.com/nextlevelbuilder/adrelay/internal/platform/telegram"
	"github.com/nextlevelbuilder/adrelay/internal/scheduler"
	"github.com/nextlevelbuilder/adrelay/internal/store"
	"github.com/nextlevelbuilder/adrelay/internal/store/memory"
	"github.com/nextlevelbuilder/adrelay/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the broadcast scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Database.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStores()

	client := telegram.New(telegram.Options{
		ConnectTimeout:    time.Duration(cfg.Telegram.ConnectTimeoutSec) * time.Second,
		SendTimeout:       time.Duration(cfg.Telegram.SendTimeoutSec) * time.Second,
		ConnectionRetries: cfg.Telegram.ConnectionRetries,
		APICallsPerSecond: cfg.Telegram.APICallsPerSecond,
	})

	clk := clock.NewSystem()
	eng := engine.New(cfg.EngineOptions(), clk, stores, client)
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	publisher := scheduler.NewPublisher(clk, stores, eng)
	go func() {
		if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("publisher exited", "error", err)
		}
	}()

	maint := scheduler.NewMaintenance(clk, stores, scheduler.MaintenanceOptions{
		PriorityTopN:  cfg.EngineOptions().PriorityTopN,
		PaymentWindow: time.Duration(cfg.Scheduler.PaymentWindowHours) * time.Hour,
		ThawAge:       time.Duration(cfg.Scheduler.ThawAgeDays) * 24 * time.Hour,
	})
	go maint.Run(ctx)

	sync := groupsync.New(clk, stores, client)
	go func() {
		if err := sync.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("group sync loop exited", "error", err)
		}
	}()

	slog.Info("adrelay started", "version", Version, "backend", cfg.Database.Backend)
	<-ctx.Done()
	slog.Info("shutting down")
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if verbose || cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	} else if cfg.Log.Level == "warn" {
		level = slog.LevelWarn
	} else if cfg.Log.Level == "error" {
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openStores(cfg *config.Config) (*store.Stores, func(), error) {
	if cfg.Database.Backend == "postgres" {
		db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg.NewStores(db), func() { db.Close() }, nil
	}
	stores, _ := memory.NewStores()
	return stores, func() {}, nil
}
