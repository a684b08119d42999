package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/abelmekonnen/portfolio-livechat/internal/api"
	"github.com/abelmekonnen/portfolio-livechat/internal/chat"
	"github.com/abelmekonnen/portfolio-livechat/internal/config"
	"github.com/abelmekonnen/portfolio-livechat/internal/events"
	"github.com/abelmekonnen/portfolio-livechat/internal/handlers"
	"github.com/abelmekonnen/portfolio-livechat/internal/jobs"
	"github.com/abelmekonnen/portfolio-livechat/internal/livechat"
	"github.com/abelmekonnen/portfolio-livechat/internal/llm"
	"github.com/abelmekonnen/portfolio-livechat/internal/metrics"
	"github.com/abelmekonnen/portfolio-livechat/internal/session"
	"github.com/abelmekonnen/portfolio-livechat/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Println("Warning: no .env file loaded, relying on the process environment")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	m := metrics.NewMetrics()
	broker := events.NewBroker(logger)

	// Session store: Redis when configured, in-process memory otherwise.
	var store session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL, broker, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to in-memory sessions")
		} else {
			store = redisStore
			defer redisStore.Close()
		}
	}
	if store == nil {
		memStore := session.NewMemoryStore(cfg.SessionTTL, broker, logger)
		store = memStore
		defer memStore.Close()
	}

	// Telegram side is optional; without it the chatbot still answers, it
	// just cannot escalate to a human.
	var bot *telegram.BotClient
	var notifier *telegram.Notifier
	var botHandler *handlers.BotHandler
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBotClient(cfg.TelegramToken, cfg.AppEnv == "dev", logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize Telegram bot, live chat disabled")
			bot = nil
		}
	}
	if bot != nil {
		notifier = telegram.NewNotifier(bot, cfg.AdminChatID, store, logger)
		botHandler = handlers.NewBotHandler(handlers.HandlerDependencies{
			Store:    store,
			Notifier: notifier,
			Logger:   logger,
		})
	}

	jobClient := jobs.NewClient(cfg.QStashToken, cfg.QStashURL, cfg.PublicBaseURL, cfg.ReminderDelay, logger)

	orchestrator := chat.NewOrchestrator(chat.Config{
		Store:         store,
		Notifier:      notifier,
		Detector:      livechat.NewDetector(cfg.EscalationPhrases),
		Provider:      llm.NewGroqClient(cfg.GroqAPIKey),
		PrimaryModel:  cfg.GroqModel,
		FallbackModel: cfg.GroqFallbackModel,
		Jobs:          jobClient,
		Metrics:       m,
		Logger:        logger,
	})

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.SetupRoutes(router, api.ApiDependencies{
		Config:       cfg,
		Orchestrator: orchestrator,
		Store:        store,
		Notifier:     notifier,
		Bot:          bot,
		BotHandler:   botHandler,
		Broker:       broker,
		Metrics:      m,
		Logger:       logger,
	})

	// Static widget assets.
	router.Get("/", http.RedirectHandler("/webapp/", http.StatusMovedPermanently).ServeHTTP)
	router.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	workDir, _ := os.Getwd()
	fileServer(router, "/webapp", http.Dir(filepath.Join(workDir, "webapp")))

	// Operator updates: webhook when publicly reachable, long-poll otherwise.
	if bot != nil {
		if cfg.PublicBaseURL != "" {
			if err := bot.RegisterWebhook(cfg.PublicBaseURL); err != nil {
				logger.WithError(err).Error("Failed to register webhook, operator events will not arrive")
			}
		} else {
			bot.DeleteWebhook()
			go pollUpdates(bot, botHandler, logger)
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE responses stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Forced shutdown")
	}
}

// pollUpdates runs the long-poll loop used in development, dispatching
// operator updates to the same handler the webhook uses.
func pollUpdates(bot *telegram.BotClient, botHandler *handlers.BotHandler, logger *logrus.Logger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	logger.Info("Long-polling Telegram for operator updates")
	for update := range bot.GetUpdatesChan(u) {
		go botHandler.HandleUpdate(context.Background(), update)
	}
}

// fileServer serves static files under path from root.
func fileServer(r chi.Router, path string, root http.FileSystem) {
	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
