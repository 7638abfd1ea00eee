package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"qr-ordering/internal/config"
	"qr-ordering/internal/handlers"
	"qr-ordering/internal/kafka"
	"qr-ordering/internal/logger"
	rediswrap "qr-ordering/internal/redis"
	"qr-ordering/internal/push"
	"qr-ordering/internal/qr"
	"qr-ordering/internal/services"
	"qr-ordering/internal/storage"
)

var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "QR ordering service starting up...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", "Invalid configuration: "+err.Error())
	}
	log.Info("CONFIG", "Configuration loaded successfully")

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	defer store.Close()
	log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")

	// The guard is optional: without Redis the atomic store claim still
	// makes redemption single-use.
	var guard services.RedemptionGuard
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer redisClient.Close()
	linkGuard := rediswrap.NewLinkGuard(redisClient)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := linkGuard.Ping(pingCtx); err != nil {
		log.Warn("REDIS", "Redis unavailable, magic links guarded by the store only: "+err.Error())
	} else {
		guard = linkGuard
		log.LogProcess("REDIS", "Redis connection successful")
	}
	cancelPing()

	sender := push.NewWebPushSender(cfg.Push, log)
	dispatcher := services.NewDispatcher(store, sender, log)

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer producer.Close()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.Kafka.MockMode {
		producer.SetLocalHandler(dispatcher.HandleOrderEvent)
	} else {
		consumer, err := kafka.NewOrderEventConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
		}
		defer consumer.Close()

		go func() {
			log.LogKafka("START", cfg.Kafka.Topic, "Starting notification consumer")
			if err := consumer.ConsumeOrderEvents(consumerCtx, dispatcher.HandleOrderEvent); err != nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	verifier := services.NewWebhookVerifier(cfg.Payments.WebhookSecret)
	if !verifier.Enabled() {
		log.Warn("SECURITY", "PAYMENT_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	orders := services.NewOrderService(store, producer, qr.NewClient(cfg.App.QRFunctionURL, cfg.App.QRPublicFallback), cfg.Payments.PayeeName, log)
	payments := services.NewPaymentService(store, producer, log)
	links := services.NewMagicLinkService(store, guard, cfg.App.PublicBaseURL, cfg.App.MagicLinkTTL, log)
	log.LogProcess("SERVICE", "Services initialized")

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Handlers{
		Orders:   handlers.NewOrderHandler(orders, log),
		Links:    handlers.NewMagicLinkHandler(links, log),
		Payments: handlers.NewPaymentHandler(payments, verifier, log),
		Push:     handlers.NewPushHandler(dispatcher, log),
		Health:   store,
	}, handlers.RouterConfig{
		JWTSecret:       cfg.App.JWTSecret,
		InternalToken:   cfg.App.InternalToken,
		RateLimitPerSec: cfg.App.RateLimitPerSec,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "Health check available at: http://localhost"+cfg.Server.Port+"/health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "QR ordering service shutdown completed")
}
