package payment

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create inserts a new payment. On an idempotency key collision it
	// returns the existing row via CreateOrGetByIdempotencyKey semantics
	// marked with ErrAlreadyExists; callers preferring reuse should call
	// CreateOrGetByIdempotencyKey instead.
	Create(ctx context.Context, p *Payment) error
	// CreateOrGetByIdempotencyKey inserts the payment, or returns the
	// existing payment holding the same idempotency key. Never surfaces a
	// duplicate-key fault.
	CreateOrGetByIdempotencyKey(ctx context.Context, p *Payment) (*Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)
	// PurgeRawPayloads nulls raw request/response payloads on payments
	// matching the filter and returns how many rows were touched.
	PurgeRawPayloads(ctx context.Context, filter *types.PaymentFilter) (int, error)
}
