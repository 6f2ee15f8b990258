package cron

import (
	"context"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"

	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/service"
)

// BillingHandler exposes the scheduled billing jobs over HTTP so an
// external scheduler can trigger them. Each run is retried with a
// bounded fixed backoff before the trigger is reported as failed.
type BillingHandler struct {
	billingService service.BillingService
	config         *config.Configuration
	logger         *logger.Logger
}

// NewBillingHandler creates a new billing cron handler
func NewBillingHandler(
	billingService service.BillingService,
	cfg *config.Configuration,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		config:         cfg,
		logger:         logger,
	}
}

// ProcessBillingCycle godoc
//
//	@Summary	Run the recurring billing cycle
//	@Tags		Cron
//	@Produce	json
//	@Success	200	{object}	dto.BillingCycleResponse
//	@Router		/cron/billing/cycle [post]
func (h *BillingHandler) ProcessBillingCycle(c *gin.Context) {
	h.runJob(c, "billing_cycle", func(ctx context.Context) (any, error) {
		return h.billingService.ProcessBillingCycle(ctx)
	})
}

// RetryFailedPayments godoc
//
//	@Summary	Retry failed payments
//	@Tags		Cron
//	@Produce	json
//	@Success	200	{object}	dto.RetryResponse
//	@Router		/cron/billing/retry [post]
func (h *BillingHandler) RetryFailedPayments(c *gin.Context) {
	h.runJob(c, "payment_retry", func(ctx context.Context) (any, error) {
		return h.billingService.RetryFailedPayments(ctx)
	})
}

// ReconcilePendingPayments godoc
//
//	@Summary	Reconcile stale pending payments
//	@Tags		Cron
//	@Produce	json
//	@Success	200	{object}	dto.ReconcileResponse
//	@Router		/cron/billing/reconcile [post]
func (h *BillingHandler) ReconcilePendingPayments(c *gin.Context) {
	h.runJob(c, "payment_reconcile", func(ctx context.Context) (any, error) {
		return h.billingService.ReconcilePendingPayments(ctx)
	})
}

// PurgeExpiredPayloads godoc
//
//	@Summary	Purge expired raw gateway payloads
//	@Tags		Cron
//	@Produce	json
//	@Success	200	{object}	dto.CleanupResponse
//	@Router		/cron/billing/cleanup [post]
func (h *BillingHandler) PurgeExpiredPayloads(c *gin.Context) {
	h.runJob(c, "payload_cleanup", func(ctx context.Context) (any, error) {
		return h.billingService.PurgeExpiredPayloads(ctx)
	})
}

// runJob executes one job with bounded retries. Validation and invalid
// operation errors are terminal and never retried.
func (h *BillingHandler) runJob(c *gin.Context, name string, fn func(ctx context.Context) (any, error)) {
	ctx := c.Request.Context()

	var result any
	operation := func() error {
		var err error
		result, err = fn(ctx)
		if err != nil {
			if ierr.IsValidation(err) || ierr.IsInvalidOperation(err) {
				return backoff.Permanent(err)
			}
			h.logger.Warnw("cron job attempt failed",
				"job", name,
				"error", err,
			)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(h.config.Billing.JobRetryBackoff),
			h.config.Billing.JobMaxRetries,
		),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		h.logger.Errorw("cron job failed",
			"job", name,
			"error", err,
		)
		c.Error(err)
		c.JSON(ierr.HTTPStatusFromErr(err), ierr.NewErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, result)
}
