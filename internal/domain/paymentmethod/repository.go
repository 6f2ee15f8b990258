package paymentmethod

import "context"

// Repository defines the interface for payment method reference persistence
type Repository interface {
	Create(ctx context.Context, ref *PaymentMethodRef) error
	Get(ctx context.Context, id string) (*PaymentMethodRef, error)
	Update(ctx context.Context, ref *PaymentMethodRef) error
	ListByUser(ctx context.Context, userID string) ([]*PaymentMethodRef, error)
	// GetDefaultForUser returns the user's default payment method reference
	GetDefaultForUser(ctx context.Context, userID string) (*PaymentMethodRef, error)
}
