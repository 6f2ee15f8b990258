package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the billing cadence of a plan
type BillingPeriod string

const (
	BillingPeriodMonth BillingPeriod = "MONTH"
	BillingPeriodYear  BillingPeriod = "YEAR"
)

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BillingPeriodMonth,
		BillingPeriodYear,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Invalid billing period").
			WithReportableDetails(map[string]any{
				"billing_period": p,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Days returns the length of one billing period in days.
// Calendar months are deliberately approximated to 30 days to match the
// period-advance rule used by the billing cycle.
func (p BillingPeriod) Days() int {
	if p == BillingPeriodYear {
		return 365
	}
	return 30
}

// PlanFilter represents the filter for listing plans
type PlanFilter struct {
	*QueryFilter

	PlanIDs    []string `form:"plan_ids"`
	ActiveOnly bool     `form:"active_only"`
}

// NewNoLimitPlanFilter creates a new plan filter with no limit
func NewNoLimitPlanFilter() *PlanFilter {
	return &PlanFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the plan filter
func (f *PlanFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.QueryFilter.Validate()
}

// GetLimit implements BaseFilter interface
func (f *PlanFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *PlanFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// IsUnlimited returns true if the filter has no limit
func (f *PlanFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
