package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pulse_bot/internal/alert"
	"pulse_bot/internal/bot"
	"pulse_bot/internal/config"
	"pulse_bot/internal/fetcher"
	"pulse_bot/internal/model"
	"pulse_bot/internal/poller"
	"pulse_bot/internal/scheduler"
	"pulse_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	providers := map[model.SourceKind]fetcher.Provider{
		model.KindPage: fetcher.NewPageProvider(http.DefaultClient, cfg.MetricsAPIToken),
		model.KindFeed: fetcher.NewFeedProvider(http.DefaultClient),
	}

	p := poller.New(store, providers, alert.New(store), b, cfg.AlertChatID, log)

	sched, err := scheduler.New(store, p, cfg, log)
	if err != nil {
		log.Error("create scheduler", "error", err)
		os.Exit(1)
	}
	b.SetTrigger(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting monitor")

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("monitor stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
