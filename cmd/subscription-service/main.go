package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/premsagar/subscription-service/internal/api/rest"
	"github.com/premsagar/subscription-service/internal/config"
	"github.com/premsagar/subscription-service/internal/domain"
	"github.com/premsagar/subscription-service/internal/gateway/razorpay"
	"github.com/premsagar/subscription-service/internal/kafka"
	"github.com/premsagar/subscription-service/internal/metrics"
	"github.com/premsagar/subscription-service/internal/repository"
	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/internal/store"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// таймаут одного обращения к платежному шлюзу
const gatewayTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()

	log.Infow("Subscription service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Выбираем хранилище записей: PostgreSQL либо память
	var recordStore store.RecordStore
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.Database.DSN, log)
		if err != nil {
			log.Fatalw("Failed to connect to database", "error", err)
		}
		defer pgStore.Close()
		recordStore = pgStore
		log.Infow("Using Postgres record store")
	} else {
		recordStore = store.NewMemoryStore(log)
		log.Warnw("DATABASE_DSN is not set, using in-memory record store (data is not durable)")
	}

	// Базовые репозитории
	baseSubsRepo := repository.NewStoreSubscriptionRepository(recordStore, log)
	ledger := repository.NewStoreTransactionRepository(recordStore, log)

	// Кеширующая обертка, если Redis доступен
	var subsRepo repository.SubscriptionRepository = baseSubsRepo
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			subsRepo = repository.NewCachedSubscriptionRepository(baseSubsRepo, redisCache, log)
			log.Infow("Using cached subscription repository")
		}
	}

	// Клиент платежного шлюза
	gatewayClient := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, gatewayTimeout, log)

	// Kafka producer; без брокеров события просто не публикуются
	var producer kafka.Producer = kafka.NoOpProducer{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			producer = kafkaProducer
			defer func() {
				if err := kafkaProducer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	// Метрики
	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	// Шина результатов для long-poll клиентов
	bus := service.NewResultBus()

	// Service layer
	orderService := service.NewOrderService(
		subsRepo, ledger, gatewayClient, paymentMetrics, log,
		service.Mode(cfg.Product.Mode),
		cfg.Product.Currency,
		domain.DefaultPriceTable(),
		domain.PlanType(cfg.Product.DefaultPlan),
	)
	paymentService := service.NewPaymentService(
		subsRepo, ledger, producer, paymentMetrics, bus, log,
		[]byte(cfg.Razorpay.KeySecret),
		[]byte(cfg.Razorpay.WebhookSecret),
	)

	router := rest.SetupRouter(orderService, paymentService, bus, registry, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second, // long-poll результата платежа живет до 60с
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Infow("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

// initLogger инициализирует логгер с уровнем из окружения
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
