package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/atrishin/feedline/app/api"
	"github.com/atrishin/feedline/app/bot"
	"github.com/atrishin/feedline/app/cfg"
	"github.com/atrishin/feedline/app/content"
	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/fetch"
	"github.com/atrishin/feedline/app/moderation"
	"github.com/atrishin/feedline/app/publish"
	"github.com/atrishin/feedline/app/security"
	"github.com/atrishin/feedline/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feedline", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)
	queueRepo := database.NewQueueRepository(db)
	pubRepo := database.NewPublicationRepository(db)
	settingRepo := database.NewSettingRepository(db)
	sessionRepo := database.NewSessionRepository(db)

	modStore := newModerationStore(appCfg.RedisURL)

	var vault *security.Vault
	if appCfg.SessionKey != "" {
		vault, err = security.NewVault(appCfg.SessionKey)
		if err != nil {
			slog.Error("Invalid session key", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No session key configured, story publishing disabled")
	}

	botAPI, err := tgbotapi.NewBotAPI(appCfg.TelegramToken)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to Telegram", "bot", botAPI.Self.UserName)

	httpClient := &http.Client{}
	media := publish.NewHTTPMedia(httpClient, appCfg.UserAgent)
	publisher := publish.NewTelegramPublisher(botAPI, media, sessionRepo, vault)

	modGate := moderation.NewGate(entryRepo, feedRepo, queueRepo, pubRepo,
		publisher, publisher, modStore, appCfg.AdminIDs)
	gate := content.NewGate(entryRepo, queueRepo, settingRepo, modGate)
	fetcher := fetch.NewFetcher(httpClient)

	scheduler := tasks.NewScheduler(feedRepo, entryRepo, queueRepo, settingRepo, pubRepo,
		fetcher, gate, publisher)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "poll_interval_min", appCfg.PollInterval)

	botCtx, botCancel := context.WithCancel(context.Background())
	defer botCancel()

	operatorBot := bot.New(botAPI, modGate, feedRepo, entryRepo, queueRepo, settingRepo, pubRepo, appCfg.AdminIDs)
	go operatorBot.Run(botCtx)

	apiHandler := api.NewHandler(feedRepo, entryRepo, queueRepo, settingRepo, pubRepo)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(apiHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down")
	botCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

// newModerationStore prefers Redis so pending decisions survive restarts,
// and falls back to the in-process store when Redis is unreachable.
func newModerationStore(redisURL string) moderation.Store {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("Invalid Redis URL, using in-memory moderation store", "error", err)
		return moderation.NewMemoryStore()
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Redis unreachable, using in-memory moderation store", "error", err)
		return moderation.NewMemoryStore()
	}

	slog.Info("Connected to Redis")
	return moderation.NewRedisStore(client)
}
