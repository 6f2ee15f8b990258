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

// PaymentHandler exposes payment reads, refunds and payment method
// registration
type PaymentHandler struct {
	service service.PaymentService
	logger  *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service service.PaymentService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// GetPayment godoc
//
//	@Summary	Get a payment
//	@Tags		Payments
//	@Produce	json
//	@Param		id	path		string	true	"Payment ID"
//	@Success	200	{object}	dto.PaymentResponse
//	@Failure	404	{object}	ierr.ErrorResponse
//	@Router		/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	resp, err := h.service.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPayments godoc
//
//	@Summary	List payments
//	@Tags		Payments
//	@Produce	json
//	@Success	200	{object}	dto.ListPaymentsResponse
//	@Router		/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var filter types.PaymentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListPayments(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RefundPayment godoc
//
//	@Summary	Refund a payment
//	@Tags		Payments
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Payment ID"
//	@Param		request	body		dto.RefundPaymentRequest	false	"Refund options"
//	@Success	200		{object}	dto.RefundResponse
//	@Failure	400		{object}	ierr.ErrorResponse
//	@Router		/payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	var req dto.RefundPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request payload").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.service.RefundPayment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SavePaymentMethod godoc
//
//	@Summary	Register a payment method
//	@Tags		Payments
//	@Accept		json
//	@Produce	json
//	@Param		request	body		dto.SavePaymentMethodRequest	true	"Payment method"
//	@Success	201		{object}	dto.PaymentMethodResponse
//	@Failure	400		{object}	ierr.ErrorResponse
//	@Router		/payment-methods [post]
func (h *PaymentHandler) SavePaymentMethod(c *gin.Context) {
	var req dto.SavePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SavePaymentMethod(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListPaymentMethods godoc
//
//	@Summary	List a user's payment methods
//	@Tags		Payments
//	@Produce	json
//	@Param		user_id	query		string	true	"User ID"
//	@Success	200		{array}		dto.PaymentMethodResponse
//	@Router		/payment-methods [get]
func (h *PaymentHandler) ListPaymentMethods(c *gin.Context) {
	resp, err := h.service.ListPaymentMethods(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions godoc
//
//	@Summary	List transaction history
//	@Tags		Transactions
//	@Produce	json
//	@Success	200	{object}	dto.ListTransactionsResponse
//	@Router		/transactions [get]
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	var filter types.TransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListTransactions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
