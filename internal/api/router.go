package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/billforge/billforge/internal/api/cron"
	v1 "github.com/billforge/billforge/internal/api/v1"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
)

// Handlers bundles every HTTP handler wired into the router
type Handlers struct {
	fx.In

	Plan         *v1.PlanHandler
	Subscription *v1.SubscriptionHandler
	Payment      *v1.PaymentHandler
	CronBilling  *cron.BillingHandler
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode == types.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware,
		ErrorHandlerMiddleware(logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1Group := router.Group("/v1")
	{
		plans := v1Group.Group("/plans")
		{
			plans.POST("", handlers.Plan.CreatePlan)
			plans.GET("", handlers.Plan.ListPlans)
			plans.GET("/:id", handlers.Plan.GetPlan)
			plans.DELETE("/:id", handlers.Plan.DeactivatePlan)
		}

		subscriptions := v1Group.Group("/subscriptions")
		{
			subscriptions.POST("", handlers.Subscription.CreateSubscription)
			subscriptions.GET("", handlers.Subscription.ListSubscriptions)
			subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
			subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		}

		payments := v1Group.Group("/payments")
		{
			payments.GET("", handlers.Payment.ListPayments)
			payments.GET("/:id", handlers.Payment.GetPayment)
			payments.POST("/:id/refund", handlers.Payment.RefundPayment)
		}

		paymentMethods := v1Group.Group("/payment-methods")
		{
			paymentMethods.POST("", handlers.Payment.SavePaymentMethod)
			paymentMethods.GET("", handlers.Payment.ListPaymentMethods)
		}

		v1Group.GET("/transactions", handlers.Payment.ListTransactions)
	}

	// Cron endpoints are triggered by an external scheduler
	cronGroup := router.Group("/cron")
	{
		billing := cronGroup.Group("/billing")
		{
			billing.POST("/cycle", handlers.CronBilling.ProcessBillingCycle)
			billing.POST("/retry", handlers.CronBilling.RetryFailedPayments)
			billing.POST("/reconcile", handlers.CronBilling.ReconcilePendingPayments)
			billing.POST("/cleanup", handlers.CronBilling.PurgeExpiredPayloads)
		}
	}

	return router
}
