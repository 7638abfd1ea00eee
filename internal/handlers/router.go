package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/middleware"
)

// HealthChecker is satisfied by the order store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handlers struct {
	Orders   *OrderHandler
	Links    *MagicLinkHandler
	Payments *PaymentHandler
	Push     *PushHandler
	Health   HealthChecker
}

type RouterConfig struct {
	JWTSecret       string
	InternalToken   string
	RateLimitPerSec int
}

func NewRouter(h Handlers, cfg RouterConfig, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))
	if cfg.RateLimitPerSec > 0 {
		router.Use(middleware.RateLimit(cfg.RateLimitPerSec, log))
	}

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if h.Health != nil {
			if err := h.Health.HealthCheck(ctx); err != nil {
				log.Error("HEALTH", "Store health check failed: "+err.Error())
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "qr-ordering",
		})
	})

	v1 := router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", h.Orders.CreateOrder)
			orders.GET("/track/:code/status", h.Orders.TrackStatus)
			orders.POST("/:id/payment-link", h.Links.Issue)
		}

		v1.GET("/pay/:token", h.Links.Redeem)
		v1.POST("/payments/webhook", h.Payments.Webhook)
		v1.POST("/push/subscribe", h.Push.Subscribe)

		staff := v1.Group("/staff", middleware.StaffAuth(cfg.JWTSecret, log))
		{
			staff.GET("/orders", h.Orders.ListOrders)
			staff.GET("/orders/:id", h.Orders.GetOrder)
			staff.PATCH("/orders/:id/status", h.Orders.UpdateStatus)
		}
	}

	internal := router.Group("/internal", middleware.InternalToken(cfg.InternalToken, log))
	{
		internal.POST("/push/notify", h.Push.Notify)
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
