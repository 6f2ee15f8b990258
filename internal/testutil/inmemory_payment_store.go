package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/payment"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	// keyMu guards the idempotency-key index so concurrent creates with
	// the same key resolve to one row, mirroring the unique constraint
	keyMu sync.Mutex
	byKey map[string]string
}

// NewInMemoryPaymentStore creates a new in-memory payment store
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
		byKey:         make(map[string]string),
	}
}

// paymentFilterFn implements filtering logic for payments
func paymentFilterFn(_ context.Context, p *payment.Payment, filter interface{}) bool {
	if p == nil {
		return false
	}
	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.PaymentIDs) > 0 && !lo.Contains(f.PaymentIDs, p.ID) {
		return false
	}
	if f.InvoiceID != nil && p.InvoiceID != *f.InvoiceID {
		return false
	}
	if f.UserID != nil && p.UserID != *f.UserID {
		return false
	}
	if f.PaymentStatus != nil && p.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.Provider != nil && p.Provider != *f.Provider {
		return false
	}
	if f.PendingSince != nil && p.UpdatedAt.After(*f.PendingSince) {
		return false
	}
	if f.CreatedBefore != nil && !p.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// paymentSortFn sorts payments newest first
func paymentSortFn(i, j *payment.Payment) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if _, exists := s.byKey[p.IdempotencyKey]; exists {
		return ierr.NewError("duplicate idempotency key").
			WithHint("A payment with this idempotency key already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	if err := s.InMemoryStore.Create(ctx, p.ID, p); err != nil {
		return err
	}
	s.byKey[p.IdempotencyKey] = p.ID
	return nil
}

// CreateOrGetByIdempotencyKey inserts the payment, or returns the
// existing payment holding the same idempotency key
func (s *InMemoryPaymentStore) CreateOrGetByIdempotencyKey(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	if p == nil {
		return nil, ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if id, exists := s.byKey[p.IdempotencyKey]; exists {
		return s.InMemoryStore.Get(ctx, id)
	}
	if err := s.InMemoryStore.Create(ctx, p.ID, p); err != nil {
		return nil, err
	}
	s.byKey[p.IdempotencyKey] = p.ID
	return p, nil
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	s.keyMu.Lock()
	id, exists := s.byKey[key]
	s.keyMu.Unlock()
	if !exists {
		return nil, ierr.NewError("payment not found").
			WithHint("No payment holds this idempotency key").
			Mark(ierr.ErrNotFound)
	}
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn)
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

// PurgeRawPayloads nulls raw request/response payloads on payments
// matching the filter
func (s *InMemoryPaymentStore) PurgeRawPayloads(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	payments, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	purged := 0
	now := time.Now().UTC()
	for _, p := range payments {
		if p.RawRequest == nil && p.RawResponse == nil {
			continue
		}
		p.RawRequest = nil
		p.RawResponse = nil
		p.UpdatedAt = now
		if err := s.InMemoryStore.Update(ctx, p.ID, p); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// Clear removes all payments and the idempotency key index
func (s *InMemoryPaymentStore) Clear() {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	s.InMemoryStore.Clear()
	s.byKey = make(map[string]string)
}
