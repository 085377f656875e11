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

	"partyshop/config"
	"partyshop/internal/api"
	"partyshop/internal/broker"
	"partyshop/internal/cache"
	"partyshop/internal/cart"
	"partyshop/internal/pricing"
	"partyshop/internal/redisclient"
	"partyshop/internal/service"
	"partyshop/internal/store"
	"partyshop/internal/util"
	"partyshop/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting partyshop")

	tp, err := util.InitTracer("partyshop", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	if cfg.Database.Migrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrated")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	catalogProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog)
	defer catalogProducer.Close()
	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	logger.Info("Kafka producers initialized",
		zap.String("catalog_topic", cfg.Kafka.TopicCatalog),
		zap.String("order_topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(catalogProducer, orderProducer)

	productCache := cache.NewProductCache(redisClient, cfg.Redis.LocalCacheSize, cfg.Redis.LocalCacheTTL)
	catalogService := service.NewCatalogService(db, db, productCache, eventPublisher, cfg.Redis.ProductCacheTTL)
	categoryService := service.NewCategoryService(db, db, productCache, eventPublisher)
	coupons := pricing.NewCouponBook(cfg.Business.CouponCode, cfg.Business.CouponPercent)
	orderService := service.NewOrderService(db, catalogService, redisClient, eventPublisher,
		coupons, cfg.Business.ShippingPrice, cfg.Business.OrderLockTTL)

	cartManager := cart.NewManager(redisclient.NewCartStore(redisClient, cfg.Redis.CartTTL))
	assembler := &cart.Assembler{Coupons: coupons, ShippingPrice: cfg.Business.ShippingPrice}
	cartService := service.NewCartService(cartManager, assembler, catalogService, orderService, db)
	defer cartService.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// each instance has its own local cache tier, so each one consumes every catalog event under its own group
	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "partyshop-cache-" + uuid.New().String()
	}
	catalogConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog, group)
	cacheWorker := worker.NewCatalogCacheWorker(catalogConsumer, catalogService)
	go func() {
		if err := cacheWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Catalog cache worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalogService, categoryService, orderService, cartService)
	handler.AddReadinessCheck("postgres", db.Ping)
	handler.AddReadinessCheck("redis", redisClient.Ping)
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

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := cacheWorker.Stop(); err != nil {
		logger.Warn("Error stopping catalog cache worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
