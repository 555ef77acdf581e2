package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studiobook/internal/client"
	"studiobook/internal/config"
	"studiobook/internal/domain"
	"studiobook/internal/events"
	"studiobook/internal/logging"
	"studiobook/internal/metrics"
	"studiobook/internal/repository"
	"studiobook/internal/service"
	"studiobook/internal/store"
	"studiobook/internal/web"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	bookingStore := initStore(cfg, redisClient, &logger)

	eventBus := events.NewEventBus()
	logEvents := events.LogHandler(&logger)
	for _, t := range []string{events.EventBookingCreated, events.EventBookingStatusChanged, events.EventSlotConflict} {
		eventBus.Subscribe(t, logEvents)
	}

	bookings := service.NewBookingService(bookingStore, eventBus, service.BookingOptions{
		Rules: service.BookingRules{
			Slots:          cfg.Slots,
			Packages:       cfg.Packages,
			MaxAdvanceDays: cfg.Site.MaxAdvanceDays,
			AllowPast:      cfg.Site.AllowPastBookings,
		},
		UpcomingDays: cfg.Site.UpcomingDays,
	}, &logger)

	limiter := service.NewSubmissionLimiter(
		initRateLimiter(redisClient, &logger),
		cfg.Site.SubmitLimit,
		time.Duration(cfg.Site.SubmitWindow)*time.Second,
		&logger,
	)

	router, err := web.SetupRouter(web.NewHandler(bookings, limiter, &logger), cfg.Site, &logger)
	if err != nil {
		return err
	}

	startMetrics(ctx, cfg, &logger)

	server := web.NewServer(cfg.Site.Port, router, &logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("site server stopped")
			stop()
		}
	}()

	logger.Info().
		Int("port", cfg.Site.Port).
		Str("remote_mode", cfg.Remote.Mode).
		Msg("booking site started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info().Int("session_bookings", bookingStore.Cache().Len()).Msg("booking site stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "site-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStore builds the remote-first booking store. Offline mode never
// builds a client and keeps every booking in the session cache.
func initStore(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *store.BookingStore {
	opts := store.Options{
		Mode:       cfg.Remote.Mode,
		Slots:      cfg.Slots,
		Timeout:    cfg.RemoteTimeout(),
		RetryAfter: time.Duration(cfg.Remote.RetryAfter) * time.Second,
	}

	var remote domain.BookingRemote
	if cfg.Remote.Mode == config.RemoteModeLive {
		bookingClient := client.NewBookingClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.APIExtra, cfg.RemoteTimeout())
		if redisClient != nil && cfg.Remote.CacheTTL > 0 {
			bookingClient.UseRedisCache(redisClient, time.Duration(cfg.Remote.CacheTTL)*time.Second)
		}
		remote = bookingClient
	} else {
		logger.Warn().Msg("remote booking service disabled, bookings live only in this process")
	}

	return store.New(remote, store.NewSessionCache(), opts, logger)
}

func initRateLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	fallback := repository.NewMemoryRateLimitRepository()
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisRateLimitRepository(redisClient)
	return repository.NewFailoverRateLimitRepository(primary, fallback, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctxShutdown)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}
