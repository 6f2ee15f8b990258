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

// PlanHandler exposes the plan management API
type PlanHandler struct {
	service service.PlanService
	logger  *logger.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(service service.PlanService, logger *logger.Logger) *PlanHandler {
	return &PlanHandler{service: service, logger: logger}
}

// CreatePlan godoc
//
//	@Summary	Create a plan
//	@Tags		Plans
//	@Accept		json
//	@Produce	json
//	@Param		request	body		dto.CreatePlanRequest	true	"Plan"
//	@Success	201		{object}	dto.PlanResponse
//	@Failure	400		{object}	ierr.ErrorResponse
//	@Router		/plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetPlan godoc
//
//	@Summary	Get a plan
//	@Tags		Plans
//	@Produce	json
//	@Param		id	path		string	true	"Plan ID"
//	@Success	200	{object}	dto.PlanResponse
//	@Failure	404	{object}	ierr.ErrorResponse
//	@Router		/plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	resp, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPlans godoc
//
//	@Summary	List plans
//	@Tags		Plans
//	@Produce	json
//	@Success	200	{object}	dto.ListPlansResponse
//	@Router		/plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var filter types.PlanFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListPlans(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeactivatePlan godoc
//
//	@Summary	Deactivate a plan
//	@Tags		Plans
//	@Produce	json
//	@Param		id	path		string	true	"Plan ID"
//	@Success	200	{object}	dto.PlanResponse
//	@Failure	404	{object}	ierr.ErrorResponse
//	@Router		/plans/{id} [delete]
func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	resp, err := h.service.DeactivatePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
