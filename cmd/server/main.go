package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-service/config"
	"cart-service/internal/api"
	"cart-service/internal/broker"
	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/clientconfig"
	"cart-service/internal/redisclient"
	"cart-service/internal/service"
	"cart-service/internal/session"
	"cart-service/internal/store"
	"cart-service/internal/util"
	"cart-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting cart service", zap.String("storage", cfg.Storage.Backend))

	tp, err := util.InitTracer("cart-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	pricing, err := parsePricing(cfg.Cart)
	if err != nil {
		logger.Fatal("Invalid cart pricing", zap.Error(err))
	}

	clients, err := clientconfig.Load(cfg.Clients.File)
	if err != nil {
		logger.Fatal("Failed to load client configuration", zap.Error(err))
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory, config.StorageRedis, config.StoragePostgres:
	default:
		logger.Warn("Unknown cart storage, using memory", zap.String("storage", cfg.Storage.Backend))
		cfg.Storage.Backend = config.StorageMemory
	}

	ctx := context.Background()
	memory := store.NewMemory()

	var (
		storage     cart.Storage             = memory
		idempotency service.IdempotencyStore = memory
		products    catalog.Catalog          = catalog.NewMock()
		db          *store.Store
		redisClient *redisclient.Client
	)
	readiness := map[string]api.ReadinessCheck{}

	if cfg.Storage.Backend == config.StoragePostgres || cfg.Database.Catalog {
		db, err = store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected")

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		readiness["postgres"] = db.Ping

		if cfg.Database.Catalog {
			if err := db.SeedProducts(ctx, catalog.MockProducts()); err != nil {
				logger.Error("Failed to seed products", zap.Error(err))
			}
			products = catalog.NewDatabase(db)
		}
		if cfg.Storage.Backend == config.StoragePostgres {
			storage = db
		}
	}

	if cfg.Storage.Backend == config.StorageRedis {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Storage.TTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		storage = redisClient
		idempotency = redisClient
		readiness["redis"] = redisClient.Ping
	}

	var (
		cartEvents     cart.EventPublisher
		checkoutEvents service.CheckoutPublisher
		producer       *broker.Producer
	)
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCart)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		eventPublisher := broker.NewEventPublisher(producer)
		cartEvents = eventPublisher
		checkoutEvents = eventPublisher
	}

	var backend cart.Backend = cart.NewSimulatedBackend(cart.Latency{
		Add:      cfg.Cart.AddDelay,
		Update:   cfg.Cart.UpdateDelay,
		Remove:   cfg.Cart.RemoveDelay,
		Discount: cfg.Cart.DiscountDelay,
	}, cfg.Cart.FailureRate)
	if cfg.Cart.BreakerFailures > 0 {
		backend = cart.NewBreakerBackend(backend, cfg.Cart.BreakerFailures, cfg.Cart.BreakerTimeout)
	}

	engineOpts := []cart.Option{
		cart.WithPricing(pricing),
		cart.WithHistoryCapacity(cfg.Cart.HistoryCapacity),
		cart.WithQueueSize(cfg.Cart.QueueSize),
	}
	if cartEvents != nil {
		engineOpts = append(engineOpts, cart.WithPublisher(cartEvents))
	}

	sessions := session.NewManager(func(ctx context.Context, sessionID string) (*cart.Engine, error) {
		return cart.NewEngine(ctx, sessionID, backend, storage, engineOpts...)
	}, cfg.Session.IdleTTL)

	cartService := service.NewCartService(sessions, products, idempotency, checkoutEvents)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go sessions.Run(workerCtx, cfg.Session.SweepInterval)

	var eventWorker *worker.CartEventWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCart, cfg.Kafka.ConsumerGroup)
		eventWorker = worker.NewCartEventWorker(consumer, idempotency)
		go func() {
			if err := eventWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Cart event worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Storage.Backend == config.StoragePostgres {
		janitor := worker.NewSnapshotJanitor(db, cfg.Storage.TTL, time.Hour)
		go janitor.Start(workerCtx)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cartService, clients)
	handler.SetRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	for name, check := range readiness {
		handler.AddReadinessCheck(name, check)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	sessions.Shutdown()
	if eventWorker != nil {
		if err := eventWorker.Stop(); err != nil {
			logger.Error("Error stopping cart event worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func parsePricing(cfg config.CartConfig) (cart.Pricing, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return cart.Pricing{}, fmt.Errorf("tax rate %q: %w", cfg.TaxRate, err)
	}
	shipping, err := decimal.NewFromString(cfg.ShippingFee)
	if err != nil {
		return cart.Pricing{}, fmt.Errorf("shipping fee %q: %w", cfg.ShippingFee, err)
	}
	return cart.Pricing{TaxRate: taxRate, ShippingFee: shipping}, nil
}
