package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/api/middleware"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/catalog"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/config"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/database"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/kafka"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/observability/metrics"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/pipeline"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/tables"
)

func main() {
	logger.Init()
	cfg := config.Load()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load test catalog")
	}
	logger.Log.WithField("tests", cat.Len()).Info("Test catalog loaded")

	var store tables.Store = tables.NewMemoryStore()
	if cfg.RedisEnabled {
		store = tables.NewRedisStore(database.GetRedis(), cfg.TableTTL)
		defer database.CloseRedis()
	}

	var repo *pipeline.Repository
	if cfg.PostgresEnabled {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres()

		repo = pipeline.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate pipeline tables")
		}
	}

	var producer pipeline.EventPublisher
	if cfg.KafkaEnabled {
		kafkaProducer := kafka.NewProducer(cfg.KafkaTopic)
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}

	service := pipeline.NewService(cat, store, repo, producer, cfg.SimilarityThreshold, cfg.SigmaMultiplier)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS, middleware.BodyLimit(cfg.MaxRequestBody))
	if cfg.RateLimitEnabled {
		router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	tables.NewHandler(store).Register(api)
	pipeline.NewHandler(service).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Lab test service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start lab test service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down lab test service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Lab test service forced to shutdown")
	}
	logger.Log.Info("Lab test service stopped")
}
