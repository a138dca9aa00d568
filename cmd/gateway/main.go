package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lawconnect/booking-gateway/internal/api"
	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/config"
	"github.com/lawconnect/booking-gateway/internal/logging"
	"github.com/lawconnect/booking-gateway/internal/metrics"
	redisclient "github.com/lawconnect/booking-gateway/internal/redis"
	"github.com/lawconnect/booking-gateway/internal/session"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("gateway starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("upstream", cfg.UpstreamBaseURL))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	up := upstream.NewClient(cfg.UpstreamBaseURL,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithLogger(logger))

	sessions := session.NewStore(rdb, cfg.SessionTTL)
	flows := booking.NewManager()
	m := metrics.New(nil)

	router := api.NewRouter(api.RouterConfig{
		Upstream: up,
		Sessions: sessions,
		Flows:    flows,
		Redis:    rdb,
		Metrics:  m,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go sweepIdleFlows(rootCtx, flows, m, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("gateway stopped")
}

// sweepIdleFlows periodically drops booking flows nobody has touched and
// keeps the active-flow gauge current.
func sweepIdleFlows(ctx context.Context, flows *booking.Manager, m *metrics.Metrics, cfg config.Config, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := flows.EvictIdle(cfg.FlowIdleTTL); n > 0 {
				logger.Debug("evicted idle booking flows", zap.Int("count", n))
			}
			m.SetActiveFlows(flows.Len())
		}
	}
}
