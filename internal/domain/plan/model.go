package plan

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Plan represents a billable offering. Plans referenced by live
// subscriptions are only ever deactivated, never deleted.
type Plan struct {
	// Unique identifier for this plan
	ID string `db:"id" json:"id"`
	// Display name of the plan
	Name string `db:"name" json:"name"`
	// Price charged once per billing period
	PriceAmount decimal.Decimal `db:"price_amount" json:"price_amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// Billing cadence (MONTH or YEAR)
	BillingPeriod types.BillingPeriod `db:"billing_period" json:"billing_period"`
	// Trial length in days; zero means no trial
	TrialDays int `db:"trial_days" json:"trial_days"`
	// Whether the plan can be subscribed to
	IsActive bool `db:"is_active" json:"is_active"`

	types.BaseModel
}

// Validate validates the plan
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ierr.NewError("plan name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	if p.PriceAmount.IsNegative() {
		return ierr.NewError("invalid price amount").
			WithHint("Price amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := p.BillingPeriod.Validate(); err != nil {
		return err
	}
	if p.TrialDays < 0 {
		return ierr.NewError("invalid trial days").
			WithHint("Trial days must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the plan
func (p *Plan) TableName() string {
	return "plans"
}
