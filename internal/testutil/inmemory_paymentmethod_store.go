package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/domain/paymentmethod"
	ierr "github.com/billforge/billforge/internal/errors"
)

// InMemoryPaymentMethodStore implements paymentmethod.Repository
type InMemoryPaymentMethodStore struct {
	*InMemoryStore[*paymentmethod.PaymentMethodRef]
}

// NewInMemoryPaymentMethodStore creates a new in-memory payment method store
func NewInMemoryPaymentMethodStore() *InMemoryPaymentMethodStore {
	return &InMemoryPaymentMethodStore{
		InMemoryStore: NewInMemoryStore[*paymentmethod.PaymentMethodRef](),
	}
}

func (s *InMemoryPaymentMethodStore) Create(ctx context.Context, ref *paymentmethod.PaymentMethodRef) error {
	if ref == nil {
		return ierr.NewError("payment method cannot be nil").
			WithHint("Payment method cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, ref.ID, ref)
}

func (s *InMemoryPaymentMethodStore) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethodRef, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentMethodStore) Update(ctx context.Context, ref *paymentmethod.PaymentMethodRef) error {
	if ref == nil {
		return ierr.NewError("payment method cannot be nil").
			WithHint("Payment method cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, ref.ID, ref)
}

func (s *InMemoryPaymentMethodStore) ListByUser(ctx context.Context, userID string) ([]*paymentmethod.PaymentMethodRef, error) {
	return s.InMemoryStore.List(ctx, nil,
		func(_ context.Context, ref *paymentmethod.PaymentMethodRef, _ interface{}) bool {
			return ref != nil && ref.UserID == userID
		},
		func(i, j *paymentmethod.PaymentMethodRef) bool {
			return i.CreatedAt.After(j.CreatedAt)
		},
	)
}

// GetDefaultForUser returns the user's default payment method reference
func (s *InMemoryPaymentMethodStore) GetDefaultForUser(ctx context.Context, userID string) (*paymentmethod.PaymentMethodRef, error) {
	refs, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if ref.IsDefault {
			return ref, nil
		}
	}
	return nil, ierr.NewError("no default payment method").
		WithHint("The user has no default payment method").
		Mark(ierr.ErrNotFound)
}
