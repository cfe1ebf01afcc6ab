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

	"shop-assistant/config"
	"shop-assistant/internal/api"
	"shop-assistant/internal/bootstrap"
	"shop-assistant/internal/broker"
	"shop-assistant/internal/cart"
	"shop-assistant/internal/redisclient"
	"shop-assistant/internal/service"
	"shop-assistant/internal/util"
	"shop-assistant/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop assistant service")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("shop-assistant", cfg.Observ.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	ctx := context.Background()

	cat, closeCatalog, err := bootstrap.LoadCatalog(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	defer closeCatalog()
	logger.Info("Catalog ready", zap.Int("products", cat.Len()), zap.String("source", cfg.Database.CatalogSource))

	var repo cart.Repository = cart.NewMemoryRepository()
	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		repo = redisClient.CartRepository(cfg.Redis.CartTTL)
		log.Println("Redis connected")
	}

	var writer broker.Writer = broker.DiscardWriter{}
	var auditWorker *worker.AuditWorker

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
		writer = producer
		log.Println("Kafka producer initialized")

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ConsumerGroup)
		auditWorker = worker.NewAuditWorker(consumer)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil {
				log.Printf("Audit worker error: %v", err)
			}
		}()
	}

	eventPublisher := broker.NewEventPublisher(writer)
	defer eventPublisher.Close()

	identifier := bootstrap.Identifier(cfg.Vision)
	assistantCfg := bootstrap.AssistantConfig(cfg, cat, repo, identifier, eventPublisher)
	sessions := service.NewSessionManager(assistantCfg)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cat, identifier, assistantCfg.Interpreter, sessions)
	handler.AllowOrigins(cfg.Server.CORSOrigins)
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient.Ping)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if auditWorker != nil {
		auditWorker.Stop()
	}

	log.Println("Server exited")
}
