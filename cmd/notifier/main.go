// Package main is the entry point of the Clinic Notify service: the Telegram
// operator-notification subsystem of the clinic admin platform. It wires the
// PostgreSQL stores, the optional Redis settings cache, the bot lifecycle
// manager, the operator broadcaster, the reminder scheduler, the background
// job scheduler, and the admin HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinichub/clinic-notify/config"
	"github.com/clinichub/clinic-notify/internal/bot"
	"github.com/clinichub/clinic-notify/internal/domain/messaging"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/internal/infrastructure/external/telegram"
	"github.com/clinichub/clinic-notify/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/clinichub/clinic-notify/internal/infrastructure/persistence/redis"
	"github.com/clinichub/clinic-notify/internal/infrastructure/scheduler"
	"github.com/clinichub/clinic-notify/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/clinichub/clinic-notify/internal/interface/http"
	"github.com/clinichub/clinic-notify/internal/notify"
	"github.com/clinichub/clinic-notify/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────

	// Missing .env is fine in production, where variables come from the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slog.SetDefault(log)
	log.Info("starting clinic-notify",
		"env", string(cfg.App.Environment),
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	db, err := postgres.NewConnection(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		db.Close()
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	pool := db.Pool()
	contacts := postgres.NewContactRepository(pool)
	messages := postgres.NewMessageRepository(pool)
	templates := postgres.NewTemplateRepository(pool)
	reminders := postgres.NewReminderRepository(pool)
	appointments := postgres.NewAppointmentRepository(pool)
	summaries := postgres.NewSummaryRepository(pool)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Settings store, optionally cached in Redis
	// ─────────────────────────────────────────────────────────────────────────
	settingsBackend := settingsLayer(ctx, cfg, postgres.NewSettingsRepository(pool), log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Bot connection lifecycle
	// ─────────────────────────────────────────────────────────────────────────
	responder := bot.NewTemplateResponder(templates, settingsBackend, log)

	factory := func() (*bot.Connection, error) {
		if cfg.Telegram.Token == "" {
			return nil, bot.ErrNoToken
		}
		clientCfg := telegram.DefaultClientConfig(cfg.Telegram.Token)
		if cfg.Telegram.BaseURL != "" {
			clientCfg.BaseURL = cfg.Telegram.BaseURL
		}
		if cfg.Telegram.PollTimeout > 0 {
			clientCfg.PollTimeout = cfg.Telegram.PollTimeout
			clientCfg.Timeout = time.Duration(cfg.Telegram.PollTimeout+30) * time.Second
		}
		clientCfg.Logger = log

		return bot.NewConnection(bot.ConnectionDeps{
			Client:    telegram.NewClient(clientCfg),
			Contacts:  contacts,
			Messages:  messages,
			Settings:  settingsBackend,
			Responder: responder,
			Logger:    log,
		}), nil
	}

	manager := bot.NewLifecycleManager(factory, settingsBackend, log, cfg.Telegram.Quiescence)
	defer manager.Stop()
	manager.StartWithRetry(ctx, cfg.Telegram.StartRetryDelay)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Notifications: broadcaster, reminder scheduler, facade
	// ─────────────────────────────────────────────────────────────────────────
	recipients := operatorRecipients(cfg)
	if len(recipients) == 0 {
		log.Warn("no operator recipients configured, broadcasts will be empty")
	}

	broadcaster := notify.NewBroadcaster(manager, recipients, log)

	reminderScheduler := notify.NewReminderScheduler(appointments, broadcaster, reminders, log)
	defer reminderScheduler.Stop()
	if err := reminderScheduler.RecoverPending(ctx); err != nil {
		log.Error("reminder recovery failed", "error", err)
	}

	notifier := notify.NewService(appointments, broadcaster, reminderScheduler, manager, log)
	defer notifier.Wait()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	jobScheduler := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: timeutil.ClinicTZ,
	})
	if err := jobScheduler.Register(
		jobs.NewDailySummaryJob(summaries, broadcaster, log),
		scheduler.NewDailySchedule(9, 0, timeutil.ClinicTZ),
	); err != nil {
		return fmt.Errorf("failed to register daily summary job: %w", err)
	}
	if err := jobScheduler.Register(
		jobs.NewReminderSweepJob(reminderScheduler, log),
		scheduler.NewIntervalSchedule(15*time.Minute),
	); err != nil {
		return fmt.Errorf("failed to register reminder sweep job: %w", err)
	}
	if err := jobScheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job scheduler: %w", err)
	}
	defer func() { _ = jobScheduler.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(httpserver.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		AdminTokenHash: cfg.HTTP.AdminTokenHash,
	}, httpserver.Dependencies{
		Contacts:     contacts,
		Messages:     messages,
		Templates:    templates,
		Settings:     settingsBackend,
		Appointments: appointments,
		Bot:          manager,
		Notifier:     notifier,
		Jobs:         jobScheduler,
		Logger:       log,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case s := <-sig:
		log.Info("shutdown signal received", "signal", s.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("clinic-notify stopped")
	return nil
}

// settingsLayer wires the Redis read-through cache in front of the PostgreSQL
// settings row when Redis is enabled and reachable; otherwise the plain store
// is used. A Redis outage at boot degrades to uncached reads instead of
// failing the service.
func settingsLayer(ctx context.Context, cfg *config.Config, inner messaging.SettingsStore, log *slog.Logger) messaging.SettingsStore {
	if !cfg.Redis.Enabled {
		return inner
	}
	client, err := redisinfra.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		log.Warn("redis unavailable, settings cache disabled", "error", err)
		return inner
	}
	return redisinfra.NewSettingsCache(inner, client, cfg.Redis.SettingsTTL, log)
}

// operatorRecipients builds the broadcast recipient set from configuration.
func operatorRecipients(cfg *config.Config) []notification.Recipient {
	recipients := make([]notification.Recipient, 0, len(cfg.Operators.ChatIDs)+len(cfg.Operators.Handles))
	for _, id := range cfg.Operators.ChatIDs {
		recipients = append(recipients, notification.ByChatID(id))
	}
	for _, h := range cfg.Operators.Handles {
		recipients = append(recipients, notification.ByHandle(h))
	}
	return recipients
}

// setupLogger builds the process logger from configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
