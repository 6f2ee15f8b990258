package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// Subscription represents a user's enrollment in a plan
type Subscription struct {
	// Unique identifier for this subscription
	ID string `db:"id" json:"id"`
	// Owning user
	UserID string `db:"user_id" json:"user_id"`
	// Plan this subscription is enrolled in
	PlanID string `db:"plan_id" json:"plan_id"`
	// Current state of the subscription lifecycle
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	// Bounds of the period the user is currently entitled to;
	// CurrentPeriodStart is always strictly before CurrentPeriodEnd
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`
	// When the next billing attempt is expected (optional)
	NextBillingAt *time.Time `db:"next_billing_at" json:"next_billing_at,omitempty"`
	// When set, the subscription is canceled at the end of the current
	// period instead of immediately
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	// When the subscription was canceled (optional)
	CanceledAt *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`

	types.BaseModel
}

// Validate validates the subscription
func (s *Subscription) Validate() error {
	if s.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("Plan id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if !s.CurrentPeriodStart.Before(s.CurrentPeriodEnd) {
		return ierr.NewError("invalid period bounds").
			WithHint("Current period start must be before current period end").
			WithReportableDetails(map[string]any{
				"current_period_start": s.CurrentPeriodStart,
				"current_period_end":   s.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsDue returns true when the subscription's current period has ended
func (s *Subscription) IsDue(now time.Time) bool {
	return !s.CurrentPeriodEnd.After(now)
}

// AdvancePeriod moves the subscription into its next billing period:
// the new period starts where the old one ended.
func (s *Subscription) AdvancePeriod(period types.BillingPeriod) {
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 0, period.Days())
	nextBilling := s.CurrentPeriodEnd
	s.NextBillingAt = &nextBilling
}

// TableName returns the table name for the subscription
func (s *Subscription) TableName() string {
	return "subscriptions"
}
