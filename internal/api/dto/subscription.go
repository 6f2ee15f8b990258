package dto

import (
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// CreateSubscriptionRequest is the payload for creating a subscription
type CreateSubscriptionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	PlanID string `json:"plan_id" binding:"required"`
	// Optional stored payment method; when present and the first invoice
	// is nonzero, payment is attempted immediately
	PaymentMethodID *string `json:"payment_method_id,omitempty"`
}

// Validate validates the request
func (r *CreateSubscriptionRequest) Validate() error {
	if r.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if r.PlanID == "" {
		return ierr.NewError("plan_id is required").
			WithHint("Plan id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CancelSubscriptionRequest is the payload for canceling a subscription
type CancelSubscriptionRequest struct {
	// Immediate cancels now; otherwise the subscription is flagged to
	// cancel at the end of the current period
	Immediate bool `json:"immediate"`
}

// SubscriptionResponse is the read projection of a subscription
type SubscriptionResponse struct {
	*subscription.Subscription
}

// NewSubscriptionResponse builds a response from a domain subscription
func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{Subscription: sub}
}

// ListSubscriptionsResponse is the paginated projection of subscriptions
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}

// SubscriptionPeriod is a convenience projection of the current
// entitlement window
type SubscriptionPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CurrentPeriod returns the subscription's current entitlement window
func (r *SubscriptionResponse) CurrentPeriod() SubscriptionPeriod {
	return SubscriptionPeriod{
		Start: r.CurrentPeriodStart,
		End:   r.CurrentPeriodEnd,
	}
}

// IsActive reports whether the subscription currently grants access
func (r *SubscriptionResponse) IsActive() bool {
	return r.SubscriptionStatus == types.SubscriptionStatusActive ||
		r.SubscriptionStatus == types.SubscriptionStatusTrialing
}
