package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventlisting/config"
	_ "eventlisting/docs"
	"eventlisting/internal/adapters/auth"
	"eventlisting/internal/adapters/broker"
	"eventlisting/internal/adapters/stats"
	deliveryhttp "eventlisting/internal/delivery/http"
	"eventlisting/internal/delivery/http/controllers"
	"eventlisting/internal/delivery/http/middleware"
	"eventlisting/internal/domain"
	"eventlisting/internal/metrics"
	"eventlisting/internal/repository/postgres"
	"eventlisting/internal/services"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// @title Event Listing API
// @version 1.0
// @description Event lifecycle and participation admission service.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		log.Fatalf("database ping: %v", err)
	}
	logger.Info("connected to postgres")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	statsClient, closeRedis := buildStatsClient(cfg, logger)
	defer closeRedis()

	var publisher domain.EventPublisher
	if cfg.RabbitMQURL != "" {
		p, err := broker.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			log.Fatalf("broker: %v", err)
		}
		defer p.Close()
		publisher = p
		logger.Info("publishing lifecycle messages", "exchange", broker.ExchangeName)
	}

	eventRepo := postgres.NewEventRepository(db)
	requestRepo := postgres.NewRequestRepository(db)
	userRepo := postgres.NewUserRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	locationRepo := postgres.NewLocationRepository(db)
	tx := postgres.NewTransactor(db)

	eventSvc := services.NewEventService(eventRepo, requestRepo, userRepo, categoryRepo, locationRepo, tx,
		statsClient, cfg.StatsAppName, publisher, recorder, logger, cfg.ServiceTimeout)
	requestSvc := services.NewRequestService(eventRepo, requestRepo, userRepo, tx,
		publisher, recorder, logger, cfg.ServiceTimeout)

	router := deliveryhttp.NewRouter(deliveryhttp.RouterDeps{
		Events:    controllers.NewEventController(logger, eventSvc, requestSvc),
		Requests:  controllers.NewRequestController(logger, requestSvc),
		Admin:     controllers.NewAdminController(logger, eventSvc),
		Public:    controllers.NewPublicController(logger, eventSvc),
		Verifier:  auth.NewJWTVerifier(cfg.JWTSecret),
		AdminRole: cfg.AdminRole,
		Logger:    logger,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ping:      db.PingContext,
	})

	var handler http.Handler = router
	handler = middleware.LoggingMiddleware(logger, recorder, handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return
	}
	logger.Info("server stopped")
}

// buildStatsClient returns nil when no stats server is configured. A Redis
// URL puts a view-count cache in front of the HTTP client.
func buildStatsClient(cfg *config.Config, logger *slog.Logger) (domain.StatsClient, func()) {
	noop := func() {}
	if cfg.StatsServerURL == "" {
		logger.Warn("STATS_SERVER_URL is empty; views are reported as zero")
		return nil, noop
	}
	client := stats.NewHTTPClient(cfg.StatsServerURL, &http.Client{Timeout: 5 * time.Second})
	if cfg.RedisURL == "" {
		return client, noop
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, view counts go straight to the stats server", "err", err)
	}
	return stats.NewCachedClient(client, rdb, cfg.StatsCacheTTL, logger), func() { rdb.Close() }
}
