package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-admission/internal/config"
	"ms-admission/internal/database/migrations"
	"ms-admission/internal/kafka"
	"ms-admission/internal/logger"
	"ms-admission/internal/scan/ledger"
	"ms-admission/internal/scan/scan_api"
	scan "ms-admission/internal/scan/service"
	"ms-admission/internal/scan/session"
	"ms-admission/internal/scan/stats"
	"ms-admission/internal/scan/store"
)

func openDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			log.LogAPI(req.Method, req.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := openDatabase(cfg, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.LogDatabase("migrate", "schema", "migrations applied")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	log.Info("REDIS", "Redis connection successful")

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.CreateTopicIfNotExists(cfg.Kafka.Brokers, cfg.Kafka.Topics.ScanEvents); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed, scan events may be dropped: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ScanEvents)
		defer producer.Close()
		log.LogKafka("producer", cfg.Kafka.Topics.ScanEvents, "scan event streaming enabled")
	} else {
		log.Warn("KAFKA", "Kafka disabled, scan events will not be streamed")
	}

	ticketStore := store.NewDB(bunDB)
	scanLedger := ledger.NewDB(bunDB)
	sessionStats := stats.NewRedis(rdb)

	var publisher scan.OutcomePublisher
	if producer != nil {
		publisher = producer
	}
	validator := scan.NewValidator(ticketStore, scanLedger, sessionStats, publisher, log)

	registry := session.NewRegistry(validator, session.Config{
		DebounceWindow: cfg.Gate.DebounceWindow,
		DisplayTimeout: cfg.Gate.DisplayTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := session.NewMonitor(bunDB, registry, cfg.Gate.MonitorInterval, cfg.Gate.StoreTimeout, log)
	go monitor.Run(ctx)

	handler := scan_api.NewHandler(registry, sessionStats, scanLedger, ticketStore, log, cfg.Gate.StoreTimeout)

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	handler.Routes(r)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := bunDB.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(req.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Scan service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "Scan service shutdown complete")
}
