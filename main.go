package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-eventsync/internal/api"
	"ms-eventsync/internal/classify"
	"ms-eventsync/internal/config"
	"ms-eventsync/internal/gateway"
	"ms-eventsync/internal/kafka"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/manual"
	"ms-eventsync/internal/store"
	"ms-eventsync/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("failed to open database: %v", err))
	}
	defer bunDB.Close()

	if err := store.Migrate(context.Background(), bunDB); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("failed to migrate schema: %v", err))
	}
	cache := store.New(bunDB)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, PoolSize: 10})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Warn("STARTUP", fmt.Sprintf("redis unavailable at %s, classification cache degraded: %v", cfg.Redis.Addr, err))
			rdb = nil
		}
		cancel()
	}

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	eventsGW := gateway.NewEventsGateway(cfg.Ticketing, httpClient, log)
	attendeesGW := gateway.NewAttendeesGateway(cfg.Ticketing, httpClient, log)
	ordersGW := gateway.NewOrdersGateway(cfg.Commerce, httpClient, log)

	reconciler := syncer.NewReconciler(cache, ordersGW, log)
	orchestrator := syncer.NewOrchestrator(cache, eventsGW, attendeesGW, reconciler, producer, log)

	classifier := classify.NewService(cfg.Oracle, cache, rdb, httpClient, log)
	manualSvc := manual.NewService(cache, manual.NewQRGenerator(cfg.Sync.QRSecret), log)

	handler := &api.Handler{
		Store:           cache,
		Orchestrator:    orchestrator,
		Manual:          manualSvc,
		Classify:        classifier,
		DefaultCapacity: cfg.Sync.DefaultCapacity,
		Logger:          log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Recurring auto-sync: an explicit timer, stopped cleanly on shutdown.
	syncCtx, stopSync := context.WithCancel(context.Background())
	go autoSyncLoop(syncCtx, orchestrator, cfg.Sync.AutoInterval, log)

	go func() {
		log.Info("STARTUP", fmt.Sprintf("listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("STARTUP", fmt.Sprintf("server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("SHUTDOWN", "stopping auto-sync and server")
	stopSync()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("SHUTDOWN", fmt.Sprintf("server shutdown error: %v", err))
	}
}

func autoSyncLoop(ctx context.Context, orchestrator *syncer.Orchestrator, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := orchestrator.RunSync(ctx)
			if !result.Success {
				log.Warn("SYNC", fmt.Sprintf("auto-sync: %s", result.Message))
			}
		}
	}
}

func openDatabase(cfg config.DatabaseConfig) (*bun.DB, error) {
	if os.Getenv("DB_DRIVER") == "sqlite" {
		sqldb, err := sql.Open("sqlite", os.Getenv("DB_SQLITE_PATH"))
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := sqldb.Ping(); err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}
