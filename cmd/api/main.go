package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/confidohealth/voice-receptionist/internal/api/router"
	"github.com/confidohealth/voice-receptionist/internal/clinic"
	appconfig "github.com/confidohealth/voice-receptionist/internal/config"
	"github.com/confidohealth/voice-receptionist/internal/conversation"
	"github.com/confidohealth/voice-receptionist/internal/http/handlers"
	"github.com/confidohealth/voice-receptionist/internal/observability/metrics"
	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice-receptionist API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis transcript mirror, optional.
	var transcripts *conversation.TranscriptStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, transcript mirror disabled", "error", err)
		} else {
			transcripts = conversation.NewTranscriptStore(redisClient, cfg.SessionTTL, int64(cfg.TranscriptMaxEntries))
			logger.Info("transcript mirror enabled", "addr", cfg.RedisAddr)
		}
	}

	// Postgres clinic records, optional.
	schedulerOpts := []clinic.MemorySchedulerOption{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		schedulerOpts = append(schedulerOpts, clinic.WithRepository(clinic.NewRepository(pool)))
		logger.Info("clinic repository enabled")
	}
	scheduler := clinic.NewMemoryScheduler(logger, schedulerOpts...)

	llm := conversation.NewRetryLLMClient(
		conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, float32(cfg.OpenAITemperature), logger),
		cfg.LLMMaxRetries,
		cfg.LLMRetryBaseDelay,
		logger,
	)

	store := conversation.NewSessionStore(cfg.SessionTTL, logger)
	store.StartJanitor(ctx, cfg.SessionSweepInterval)

	convMetrics := metrics.NewConversationMetrics(nil)

	engine := conversation.NewEngine(store, llm, scheduler,
		conversation.WithVerifier(scheduler),
		conversation.WithTranscriptStore(transcripts),
		conversation.WithMetrics(convMetrics),
		conversation.WithLogger(logger),
	)

	conversationHandler := handlers.NewConversationHandler(engine, transcripts, logger)
	voiceSocket := handlers.NewVoiceSocketHandler(engine, logger)
	clinicHandler := clinic.NewHandler(scheduler, scheduler, clinic.NewDirectory(), logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		VoiceSocketHandler:  voiceSocket,
		ClinicHandler:       clinicHandler,
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		TurnRateLimit:       5,
		TurnRateBurst:       10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // model calls can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
