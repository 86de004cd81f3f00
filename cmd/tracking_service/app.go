package trackingservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"bustrack/internal/config"
	"bustrack/internal/contextx"
	"bustrack/internal/jwt"
	"bustrack/internal/logger"
	"bustrack/internal/server/api"
	"bustrack/internal/server/metrics"
	"bustrack/internal/server/postgres"
	"bustrack/internal/server/rabbitmq"
	"bustrack/internal/server/redisstore"
	"bustrack/internal/server/tracking"
	"bustrack/internal/server/ws"
)

// Run wires and starts the tracking service: REST API, websocket hub,
// postgres, redis, and the RabbitMQ fanout bridge.
func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	log := logger.New("tracking-service")
	ctx = contextx.WithRequestID(ctx, "startup-001")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		logger.Error(ctx, log, "db_connection_failed", "Failed to initialize Postgres pool", err)
		return err
	}
	defer pool.Close()

	redisClient, err := redisstore.NewClient(ctx, cfg)
	if err != nil {
		logger.Error(ctx, log, "redis_connection_failed", "Failed to connect to Redis", err)
		return err
	}
	defer redisClient.Close()

	rmq, err := rabbitmq.Connect(cfg, log)
	if err != nil {
		logger.Error(ctx, log, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err)
		return err
	}
	defer rmq.Close()

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.AccessTTL())
	collector := metrics.NewCollector()
	hub := ws.NewHub(log)

	svc := tracking.NewService(tracking.ServiceDeps{
		Logger:    log,
		Trips:     postgres.NewTripRepo(pool),
		Locations: postgres.NewLocationRepo(pool),
		Latest:    redisstore.NewLatestStore(redisClient),
		Locker:    redisstore.NewBusLock(redisClient),
		Fanout:    rabbitmq.NewPublisher(rmq),
		Hub:       hub,
		Metrics:   collector,
		IdleAfter: cfg.IdleTimeout(),
	})
	defer svc.Close()

	// rebroadcast sibling-instance fanout into the local hub
	rabbitmq.RunRebroadcast(ctx, rmq, svc, log)

	wsHandler := ws.NewHandler(log, hub, jwtManager, svc, collector)
	httpHandler := api.NewHandler(log, svc, postgres.NewBusRepo(pool), wsHandler, jwtManager)

	var metricsSrv *http.Server
	if cfg.Server.MetricsPort > 0 {
		metricsSrv = collector.Serve(fmt.Sprintf(":%d", cfg.Server.MetricsPort), log)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           withConcurrencyLimit(maxConcurrent, httpHandler.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, log, "service_started",
		fmt.Sprintf("Tracking service started on port %d", cfg.Server.Port),
		"port", cfg.Server.Port, "max_concurrent", maxConcurrent,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, log, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shCtx)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, log, "http_server_error", "HTTP server terminated with error", err, "port", cfg.Server.Port)
			return err
		}
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
// Websocket upgrades hold a slot for the life of the connection, so size it
// above the expected connection count.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
