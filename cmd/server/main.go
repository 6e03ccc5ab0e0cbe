package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akarpov/bowltab/internal/audit"
	"github.com/akarpov/bowltab/internal/auth"
	"github.com/akarpov/bowltab/internal/calculator"
	"github.com/akarpov/bowltab/internal/config"
	"github.com/akarpov/bowltab/internal/directory"
	"github.com/akarpov/bowltab/internal/ledger"
	"github.com/akarpov/bowltab/internal/notify"
	"github.com/akarpov/bowltab/internal/server"
	"github.com/akarpov/bowltab/internal/storage/sqlite"
	"github.com/akarpov/bowltab/internal/telegram"
	"github.com/akarpov/bowltab/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath, cfg.AuditCapacity)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DBPath)

	verifier := telegram.NewVerifier(cfg.BotToken, cfg.InitDataTTL)
	if !verifier.Enabled() {
		slog.Warn("BOT_TOKEN is empty: initData verification is DISABLED; do not run this in production")
	}
	if cfg.DevAllowAnon {
		slog.Warn("DEV_ALLOW_ANON is set: anonymous guest login is enabled")
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.BotToken != "" {
		notifier = notify.NewTelegram(cfg.BotToken)
	}

	tokens := auth.NewTokenService(cfg.SessionSecret, cfg.TokenTTL)
	auditLog := audit.New(store, cfg.AuditPageMax)
	dir := directory.New(store, auditLog)
	ledgerSvc := ledger.NewService(store, auditLog, notifier, cfg.DefaultBowlCost, cfg.MaxBowlCost)
	calc := calculator.New(cfg.CollationLocale)

	srv := server.New(cfg, verifier, tokens, dir, ledgerSvc, calc, auditLog)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		slog.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.Listen(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
