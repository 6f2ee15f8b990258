package paymentmethod

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// PaymentMethodRef is an opaque reference to a user's stored payment
// credential at the gateway. The engine never sees raw card data; only
// this reference is ever passed to the gateway.
type PaymentMethodRef struct {
	// Unique identifier for this reference
	ID string `db:"id" json:"id"`
	// Owning user
	UserID string `db:"user_id" json:"user_id"`
	// Gateway provider that stores the credential
	Provider string `db:"provider" json:"provider"`
	// Provider-side customer id (optional)
	ProviderCustomerID *string `db:"provider_customer_id" json:"provider_customer_id,omitempty"`
	// Provider-side payment method id
	ProviderPaymentMethodID string `db:"provider_payment_method_id" json:"provider_payment_method_id"`
	// Whether this is the user's default method
	IsDefault bool `db:"is_default" json:"is_default"`

	types.BaseModel
}

// Validate validates the payment method reference
func (m *PaymentMethodRef) Validate() error {
	if m.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if m.Provider == "" {
		return ierr.NewError("provider is required").
			WithHint("Provider is required").
			Mark(ierr.ErrValidation)
	}
	if m.ProviderPaymentMethodID == "" {
		return ierr.NewError("provider payment method id is required").
			WithHint("Provider payment method id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the payment method reference
func (m *PaymentMethodRef) TableName() string {
	return "payment_methods"
}
