package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cooperative_billing/internal/app"
	"cooperative_billing/internal/domain/billing"
	domaintelegram "cooperative_billing/internal/domain/telegram"
	"cooperative_billing/internal/infra/config"
	idb "cooperative_billing/internal/infra/database"
	"cooperative_billing/internal/infra/email"
	"cooperative_billing/internal/infra/logger"
	"cooperative_billing/internal/infra/metrics"
	"cooperative_billing/internal/infra/scheduler"
	"cooperative_billing/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/telebot.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dunning: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("dunning", pflag.ContinueOnError)
	once := flagSet.Bool("once", false, "run a single dunning pass and exit")
	envFile := flagSet.String("env-file", "", "load configuration from this .env file before the environment")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.BillingLocation.String(),
		"once":        *once,
	}).Info("Configuration loaded")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established")

	memberRepo := idb.NewPostgresMemberRepository(db)
	billingRepo := idb.NewPostgresBillingRepository(db)

	cadence, err := billing.NewThresholdCadence(cfg.CadenceThresholds)
	if err != nil {
		return fmt.Errorf("invalid CADENCE_THRESHOLDS: %w", err)
	}

	emailNotifier := email.NewNotifier(email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom), logrus.NewEntry(logger.Log))
	if !emailNotifier.IsEnabled() {
		mainLogger.Warn("RESEND_API_KEY is not set, reminders will not be sent")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dunningMetrics := metrics.New(registry)

	clock := billing.SystemClock{Location: cfg.BillingLocation}
	engine := app.NewBillingEngine(
		memberRepo,
		billingRepo,
		emailNotifier,
		cadence,
		clock,
		app.EngineConfig{
			SuspensionThresholdDays: cfg.SuspensionThresholdDays,
			ReminderInterval:        cfg.ReminderInterval,
			NotifierTimeout:         cfg.NotifierTimeout,
		},
		dunningMetrics,
		logrus.NewEntry(logger.Log),
	)

	var bot *telebot.Bot
	var adminClient domaintelegram.Client
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken, mainLogger)
		if err != nil {
			return fmt.Errorf("could not create Telegram bot: %w", err)
		}
		adminClient = telegram.NewTelebotAdapter(bot)
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, admin bot disabled")
	}

	dunningScheduler := scheduler.NewDunningScheduler(
		engine,
		adminClient,
		cfg.AdminTelegramID,
		cfg.CronSpecDunning,
		cfg.BillingLocation,
		scheduler.DefaultRunTimeout,
		logrus.NewEntry(logger.Log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		summary, err := dunningScheduler.RunOnce(ctx)
		if summary != nil {
			fmt.Print(summary.String())
		}
		return err
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, registry, mainLogger)

	if bot != nil {
		adminService := app.NewAdminService(memberRepo, billingRepo, engine, emailNotifier, clock, cfg.AdminTelegramID, logrus.NewEntry(logger.Log))
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, botLogger)
		go bot.Start()
		mainLogger.Info("Admin bot started")
	}

	if err := dunningScheduler.Start(ctx); err != nil {
		return err
	}
	mainLogger.Info("Application setup complete")

	<-ctx.Done()
	mainLogger.Info("Shutting down application")

	if bot != nil {
		bot.Stop()
	}
	dunningScheduler.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	mainLogger.Info("Application shut down gracefully")
	return nil
}

func newBot(token string, log *logrus.Entry) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
}

func startMetricsServer(addr string, registry *prometheus.Registry, log *logrus.Entry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("Metrics endpoint listening")
	return srv
}
