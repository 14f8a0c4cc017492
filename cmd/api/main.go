// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/bot"
	"github.com/dhowcruise/booking-platform/internal/config"
	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/handler"
	"github.com/dhowcruise/booking-platform/internal/llm"
	"github.com/dhowcruise/booking-platform/internal/middleware"
	"github.com/dhowcruise/booking-platform/internal/notify"
	"github.com/dhowcruise/booking-platform/internal/og"
	"github.com/dhowcruise/booking-platform/internal/presence"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/internal/store"
	"github.com/dhowcruise/booking-platform/internal/ws"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.Env == "development" {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, "booking-platform", cfg.Tracing.Endpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Connect to Postgres
	db, err := store.Connect(ctx, store.Config{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	checks := map[string]handler.Check{"database": db.Ping}

	// Row-change feed: NATS when configured, in-process otherwise
	var changes feed.Feed
	if cfg.NATS.URL != "" {
		nc, err := feed.Connect(ctx, feed.NATSConfig{
			URL:      cfg.NATS.URL,
			CAFile:   cfg.NATS.CAFile,
			CertFile: cfg.NATS.CertFile,
			KeyFile:  cfg.NATS.KeyFile,
			Token:    cfg.NATS.Token,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		if err := nc.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
		changes = nc
	} else {
		log.Warn("NATS_URL not set, row changes stay in this process")
		changes = feed.NewMemory()
	}

	// Agent presence: Redis when configured, in-process otherwise
	var tracker presence.Tracker
	if cfg.Redis.Addr != "" {
		rp, err := presence.NewRedis(ctx, presence.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.PresenceTTL)
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rp.Close()
		checks["redis"] = rp.Ping
		tracker = rp
	} else {
		tracker = presence.NewMemory(cfg.PresenceTTL)
	}

	// Initialize LLM client
	llmClient, err := llm.FromKeys(cfg.Bot.AnthropicAPIKey, cfg.Bot.OpenAIAPIKey)
	if err != nil {
		log.Warn("failed to create LLM client, bot uses rules only", zap.Error(err))
		llmClient = nil
	}
	replier := bot.New(bot.Config{
		SiteName:     cfg.Site.Name,
		Currency:     cfg.Site.Currency,
		Model:        cfg.Bot.Model,
		Timeout:      cfg.Bot.Timeout,
		HistoryLimit: cfg.Bot.HistoryLimit,
	}, db, llmClient, log)

	// Admin alert channels
	var channels []notify.Notifier
	if email := notify.NewEmail(notify.EmailConfig{
		Host:     cfg.Notify.SMTPHost,
		Port:     cfg.Notify.SMTPPort,
		User:     cfg.Notify.SMTPUser,
		Password: cfg.Notify.SMTPPassword,
		From:     cfg.Notify.From,
		To:       cfg.Notify.AdminEmails,
		AdminURL: cfg.Site.AdminURL,
	}); email != nil {
		channels = append(channels, email)
	}
	telegram, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChats, cfg.Site.AdminURL)
	if err != nil {
		log.Warn("failed to create Telegram notifier", zap.Error(err))
	} else if telegram != nil {
		channels = append(channels, telegram)
	}
	notifier := notify.NewMulti(log, channels...)
	log.Info("admin notifications configured", zap.Int("channels", notifier.Channels()))

	loc := cfg.Location()

	// Initialize services
	chatSvc := service.NewChatService(db, changes, replier, tracker, notifier, cfg.Bot.HistoryLimit, log)
	agentSvc := service.NewAgentService(db, changes, log)
	presenceSvc := service.NewPresenceService(tracker, log)
	bookingSvc := service.NewBookingService(db, db, db, changes, loc, cfg.Site.Currency, log)
	discountSvc := service.NewDiscountService(db, log)
	tourSvc := service.NewTourService(db, log)
	reviewSvc := service.NewReviewService(db, log)
	inquirySvc := service.NewInquiryService(db, log)
	settingsSvc := service.NewSettingsService(db, log)
	analyticsSvc := service.NewAnalyticsService(db, loc, log)

	previewer := og.New(og.Config{
		SiteName:     cfg.Site.Name,
		BaseURL:      cfg.Site.BaseURL,
		DefaultImage: cfg.Site.DefaultImage,
	}, db, log)

	// Admin realtime hub
	hub := ws.NewHub(log)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(ctx, changes); err != nil {
			log.Error("websocket hub stopped", zap.Error(err))
		}
	}()

	router := handler.NewRouter(handler.RouterConfig{
		Health:    handler.NewHealthHandler(checks),
		Chat:      handler.NewChatHandler(chatSvc, log),
		Agents:    handler.NewAgentHandler(agentSvc, presenceSvc, log),
		Bookings:  handler.NewBookingHandler(bookingSvc, loc, log),
		Catalog:   handler.NewCatalogHandler(tourSvc, reviewSvc, log),
		Content:   handler.NewContentHandler(discountSvc, inquirySvc, settingsSvc, analyticsSvc, log),
		Functions: handler.NewFunctionHandler(agentSvc, notifier, previewer, log),

		Hub:    hub,
		Tokens: middleware.NewTokenValidator(cfg.JWT.Secret, cfg.JWT.AdminRole),

		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateRequests:   cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimit.Window,
		Logger:         log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		// Streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	<-hubDone
	chatSvc.Wait()

	log.Info("server stopped")
}
