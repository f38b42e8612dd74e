package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"contest_lifecycle/internal/app"
	"contest_lifecycle/internal/infra/config"
	idb "contest_lifecycle/internal/infra/database"
	"contest_lifecycle/internal/infra/httpapi"
	"contest_lifecycle/internal/infra/logger"
	"contest_lifecycle/internal/infra/scheduler"
	"contest_lifecycle/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	appLogger := logger.New(cfg)
	mainLogger := appLogger.WithField("component", "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":      cfg.LogLevel,
		"environment":    cfg.Environment,
		"enabled_sweeps": cfg.EnabledSweeps,
		"cron_spec":      cfg.CronSpecBatch,
	}).Info("Configuration loaded")
	if cfg.BatchSecret == "" {
		mainLogger.Warn("BATCH_SECRET is empty; the HTTP batch trigger will answer 500 until it is set")
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	repo := idb.NewPostgresLifecycleRepository(db)

	fanout := app.NewFanoutService(appLogger.WithField("component", "fanout"))
	transitions := app.NewTransitionService(repo, fanout, appLogger.WithField("component", "transitions"), cfg.SystemAuthorID, cfg.TxTimeout)

	opts := []app.OrchestratorOption{}
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := appLogger.WithField("component", "telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID, "text": c.Text()})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		alerter := app.NewOperatorAlerter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, appLogger.WithField("component", "alerts"))
		opts = append(opts, app.WithReporter(alerter))
	}

	orchestrator := app.NewOrchestrator(transitions, cfg.EnabledSweeps, appLogger.WithField("component", "orchestrator"), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if bot != nil {
		telegram.RegisterOperatorCommands(ctx, bot, orchestrator, cfg.AdminTelegramID, appLogger.WithField("component", "telegram"))
		go bot.Start()
		mainLogger.Info("Operator bot started.")
	}

	var cronHandle *scheduler.Handle
	if cfg.CronEnabled() {
		cronHandle, err = scheduler.NewBatchScheduler(orchestrator, appLogger.WithField("component", "scheduler")).Start(cfg.CronSpecBatch)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not start batch scheduler")
		}
	} else {
		mainLogger.Info("In-process batch timer disabled.")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(orchestrator, repo, cfg.BatchSecret, appLogger.WithField("component", "http")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done() // Block until a signal is received
	mainLogger.Info("Shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if cronHandle != nil {
		cronHandle.Stop()
	}
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully.")
}
