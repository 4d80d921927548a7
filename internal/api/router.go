package api

import (
	"net/http"

	"github.com/billforge/billforge/internal/api/cron"
	v1 "github.com/billforge/billforge/internal/api/v1"
	"github.com/billforge/billforge/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Subscription *v1.SubscriptionHandler
	Usage        *v1.UsageHandler
	Maintenance  *cron.MaintenanceHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.UserContextMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.GetSubscriptionByUser)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/activate", handlers.Subscription.ActivateSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/suspend", handlers.Subscription.SuspendSubscription)
		subscriptions.POST("/:id/terminate", handlers.Subscription.TerminateSubscription)
		subscriptions.POST("/:id/tier", handlers.Subscription.ChangeTier)
		subscriptions.POST("/:id/billing-cycle", handlers.Subscription.ChangeBillingCycle)
	}

	usage := router.Group("/usage")
	{
		usage.POST("/check", handlers.Usage.CheckUsage)
		usage.GET("", handlers.Usage.GetCurrentUsage)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/process-billing", handlers.Maintenance.ProcessDueBilling)
		subscriptions.POST("/expire-trials", handlers.Maintenance.ProcessExpiredTrials)
	}

	usage := router.Group("/usage")
	{
		usage.POST("/reset-periods", handlers.Maintenance.ProcessUsageResets)
	}
}
