package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/database"
	"recipe-swiper/internal/httpapi"
	"recipe-swiper/internal/llm"
	"recipe-swiper/internal/logger"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/spoonacular"
	"recipe-swiper/internal/storage"
	"recipe-swiper/internal/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer logg.Sync()

	ctx := context.Background()

	// 2. Storage
	db, err := database.NewDB(cfg.DatabasePath, logg)
	if err != nil {
		logg.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	var store cache.Store = cache.NewSQLStore(db.SQL)
	if cfg.RedisURL != "" {
		rdb, err := cache.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			logg.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb, "recipe-swiper:")
		logg.Info("using redis response cache")
	}

	// 3. Recipe query layer with its observers
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tracker := metrics.NewTracker(metrics.DefaultCapacity)
	calls := metrics.NewStore(db.SQL, logg)
	ttl := query.TTLs{Detail: cfg.CacheDetailTTL, Search: cfg.CacheSearchTTL, Random: cfg.CacheRandomTTL}
	svc := query.NewService(spoonacular.NewClient(cfg), store, ttl, logg, tracker, metrics.NewCollector(reg), calls)

	// 4. Workflow
	state := storage.NewStateStore(db.SQL)
	writer := storage.NewWriter(state, cfg.PersistDebounce, logg)
	application := app.NewApp(cfg, svc, state, writer, logg)

	// 5. Telegram bot, optional
	var webhook http.Handler
	if cfg.TelegramBotToken != "" {
		var extractor llm.IngredientExtractor = llm.SplitExtractor{}
		if cfg.GeminiAPIKey != "" {
			gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
			if err != nil {
				logg.Fatal("failed to create Gemini client", zap.Error(err))
			}
			defer gemini.Close()
			extractor = llm.Fallback{Primary: gemini, Log: logg}
		}

		bot, err := telegram.NewBot(cfg, application, extractor, tracker, calls, logg)
		if err != nil {
			logg.Fatal("failed to initialize Telegram bot", zap.Error(err))
		}
		webhook = bot
	}

	// 6. HTTP server with graceful shutdown
	api := httpapi.NewServer(httpapi.Deps{
		App:         application,
		Tracker:     tracker,
		Cache:       svc,
		Gatherer:    reg,
		Webhook:     webhook,
		JWTSecret:   cfg.APIJWTSecret,
		CORSOrigins: cfg.APICORSOrigins,
		Log:         logg,
	})
	if cfg.APIJWTSecret == "" {
		logg.Warn("API_JWT_SECRET not set, /api requests will be rejected")
	}

	srv := httpapi.NewHTTPServer(cfg.Port, api.Handler())

	go func() {
		logg.Info("server listening", zap.String("port", cfg.Port), zap.Bool("telegram", webhook != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logg.Error("server forced to shutdown", zap.Error(err))
	}
	// Pending state writes go out before the database closes.
	writer.Close(ctxShutdown)

	logg.Info("server exiting")
}
