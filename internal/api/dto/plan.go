package dto

import (
	"github.com/billforge/billforge/internal/domain/plan"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// CreatePlanRequest is the payload for creating a plan
type CreatePlanRequest struct {
	Name          string              `json:"name" binding:"required"`
	PriceAmount   decimal.Decimal     `json:"price_amount"`
	Currency      string              `json:"currency" binding:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period" binding:"required"`
	TrialDays     int                 `json:"trial_days"`
}

// Validate validates the request
func (r *CreatePlanRequest) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	if r.PriceAmount.IsNegative() {
		return ierr.NewError("invalid price amount").
			WithHint("Price amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if r.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if r.TrialDays < 0 {
		return ierr.NewError("invalid trial days").
			WithHint("Trial days must not be negative").
			Mark(ierr.ErrValidation)
	}
	return r.BillingPeriod.Validate()
}

// ToPlan converts the request into a domain plan
func (r *CreatePlanRequest) ToPlan(id string, base types.BaseModel) *plan.Plan {
	return &plan.Plan{
		ID:            id,
		Name:          r.Name,
		PriceAmount:   r.PriceAmount,
		Currency:      r.Currency,
		BillingPeriod: r.BillingPeriod,
		TrialDays:     r.TrialDays,
		IsActive:      true,
		BaseModel:     base,
	}
}

// PlanResponse is the read projection of a plan
type PlanResponse struct {
	*plan.Plan
}

// NewPlanResponse builds a response from a domain plan
func NewPlanResponse(p *plan.Plan) *PlanResponse {
	return &PlanResponse{Plan: p}
}

// ListPlansResponse is the paginated projection of plans
type ListPlansResponse struct {
	Items []*PlanResponse `json:"items"`
	Total int             `json:"total"`
}
