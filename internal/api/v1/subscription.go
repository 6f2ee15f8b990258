package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/billforge/billforge/internal/api/dto"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/service"
	"github.com/billforge/billforge/internal/types"
)

// SubscriptionHandler exposes the subscription lifecycle API
type SubscriptionHandler struct {
	service service.SubscriptionService
	logger  *logger.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(service service.SubscriptionService, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, logger: logger}
}

// CreateSubscription godoc
//
//	@Summary	Create a subscription
//	@Tags		Subscriptions
//	@Accept		json
//	@Produce	json
//	@Param		request	body		dto.CreateSubscriptionRequest	true	"Subscription"
//	@Success	201		{object}	dto.SubscriptionResponse
//	@Failure	400		{object}	ierr.ErrorResponse
//	@Router		/subscriptions [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetSubscription godoc
//
//	@Summary	Get a subscription
//	@Tags		Subscriptions
//	@Produce	json
//	@Param		id	path		string	true	"Subscription ID"
//	@Success	200	{object}	dto.SubscriptionResponse
//	@Failure	404	{object}	ierr.ErrorResponse
//	@Router		/subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListSubscriptions godoc
//
//	@Summary	List subscriptions
//	@Tags		Subscriptions
//	@Produce	json
//	@Success	200	{object}	dto.ListSubscriptionsResponse
//	@Router		/subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filter types.SubscriptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListSubscriptions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelSubscription godoc
//
//	@Summary	Cancel a subscription
//	@Tags		Subscriptions
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string							true	"Subscription ID"
//	@Param		request	body		dto.CancelSubscriptionRequest	false	"Cancellation options"
//	@Success	200		{object}	dto.SubscriptionResponse
//	@Failure	400		{object}	ierr.ErrorResponse
//	@Router		/subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request payload").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.service.CancelSubscription(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
