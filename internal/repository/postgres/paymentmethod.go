package postgres

import (
	"context"
	"database/sql"

	"github.com/billforge/billforge/internal/domain/paymentmethod"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type paymentMethodRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewPaymentMethodRepository creates a new postgres-backed payment method repository
func NewPaymentMethodRepository(client postgres.IClient, logger *logger.Logger) paymentmethod.Repository {
	return &paymentMethodRepository{client: client, logger: logger}
}

func (r *paymentMethodRepository) Create(ctx context.Context, ref *paymentmethod.PaymentMethodRef) error {
	const q = `
		INSERT INTO payment_methods (
			id, user_id, provider, provider_customer_id,
			provider_payment_method_id, is_default,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :user_id, :provider, :provider_customer_id,
			:provider_payment_method_id, :is_default,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, ref); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create payment method").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentMethodRepository) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethodRef, error) {
	const q = `SELECT * FROM payment_methods WHERE id = $1 AND status != $2`

	var ref paymentmethod.PaymentMethodRef
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &ref, q, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment method not found").
				WithHintf("Payment method %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment method").
			Mark(ierr.ErrDatabase)
	}
	return &ref, nil
}

func (r *paymentMethodRepository) Update(ctx context.Context, ref *paymentmethod.PaymentMethodRef) error {
	const q = `
		UPDATE payment_methods SET
			provider = :provider,
			provider_customer_id = :provider_customer_id,
			provider_payment_method_id = :provider_payment_method_id,
			is_default = :is_default,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, ref)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment method").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("payment method not found").
			WithHintf("Payment method %s was not found", ref.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentMethodRepository) ListByUser(ctx context.Context, userID string) ([]*paymentmethod.PaymentMethodRef, error) {
	const q = `
		SELECT * FROM payment_methods
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC`

	refs := make([]*paymentmethod.PaymentMethodRef, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &refs, q, userID, types.StatusPublished); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payment methods").
			Mark(ierr.ErrDatabase)
	}
	return refs, nil
}

func (r *paymentMethodRepository) GetDefaultForUser(ctx context.Context, userID string) (*paymentmethod.PaymentMethodRef, error) {
	const q = `
		SELECT * FROM payment_methods
		WHERE user_id = $1 AND is_default = TRUE AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var ref paymentmethod.PaymentMethodRef
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &ref, q, userID, types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("default payment method not found").
				WithHintf("User %s has no default payment method", userID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get default payment method").
			Mark(ierr.ErrDatabase)
	}
	return &ref, nil
}
