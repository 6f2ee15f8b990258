package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/billforge/billforge/internal/domain/payment"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type paymentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewPaymentRepository creates a new postgres-backed payment repository
func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{client: client, logger: logger}
}

const paymentInsert = `
	INSERT INTO payments (
		id, invoice_id, user_id, provider, provider_payment_id,
		payment_status, amount, currency, idempotency_key, error_code,
		raw_request, raw_response, retry_count, next_retry_at,
		succeeded_at, failed_at,
		status, created_at, updated_at, created_by, updated_by
	) VALUES (
		:id, :invoice_id, :user_id, :provider, :provider_payment_id,
		:payment_status, :amount, :currency, :idempotency_key, :error_code,
		:raw_request, :raw_response, :retry_count, :next_retry_at,
		:succeeded_at, :failed_at,
		:status, :created_at, :updated_at, :created_by, :updated_by
	)`

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), paymentInsert, p); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A payment with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// CreateOrGetByIdempotencyKey inserts the payment, or returns the existing
// payment holding the same idempotency key. The unique constraint on
// idempotency_key is what collapses two concurrent attempts onto one row.
func (r *paymentRepository) CreateOrGetByIdempotencyKey(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	err := r.Create(ctx, p)
	if err == nil {
		return p, nil
	}
	if !ierr.IsAlreadyExists(err) {
		return nil, err
	}
	return r.GetByIdempotencyKey(ctx, p.IdempotencyKey)
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	const q = `SELECT * FROM payments WHERE id = $1 AND status != $2`

	var p payment.Payment
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, q, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	const q = `SELECT * FROM payments WHERE idempotency_key = $1 AND status != $2`

	var p payment.Payment
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, q, key, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment not found for idempotency key %s", key).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment by idempotency key").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	const q = `
		UPDATE payments SET
			provider = :provider,
			provider_payment_id = :provider_payment_id,
			payment_status = :payment_status,
			error_code = :error_code,
			raw_request = :raw_request,
			raw_response = :raw_response,
			retry_count = :retry_count,
			next_retry_at = :next_retry_at,
			succeeded_at = :succeeded_at,
			failed_at = :failed_at,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("payment not found").
			WithHintf("Payment %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	q := `SELECT * FROM payments WHERE status = $1`
	args := []interface{}{types.StatusPublished}
	idx := 2

	if filter != nil {
		if filter.InvoiceID != nil {
			q += fmt.Sprintf(` AND invoice_id = $%d`, idx)
			args = append(args, *filter.InvoiceID)
			idx++
		}
		if filter.UserID != nil {
			q += fmt.Sprintf(` AND user_id = $%d`, idx)
			args = append(args, *filter.UserID)
			idx++
		}
		if filter.PaymentStatus != nil {
			q += fmt.Sprintf(` AND payment_status = $%d`, idx)
			args = append(args, filter.PaymentStatus.String())
			idx++
		}
		if filter.Provider != nil {
			q += fmt.Sprintf(` AND provider = $%d`, idx)
			args = append(args, *filter.Provider)
			idx++
		}
		if filter.PendingSince != nil {
			q += fmt.Sprintf(` AND payment_status = '%s' AND updated_at <= $%d`,
				types.PaymentStatusPending, idx)
			args = append(args, *filter.PendingSince)
			idx++
		}
		if filter.CreatedBefore != nil {
			q += fmt.Sprintf(` AND created_at < $%d`, idx)
			args = append(args, *filter.CreatedBefore)
			idx++
		}
	}

	q += ` ORDER BY created_at DESC`
	if filter != nil && !filter.IsUnlimited() {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	payments := make([]*payment.Payment, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &payments, q, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	// Count ignores pagination so the total reflects every matching row
	all := types.NewNoLimitPaymentFilter()
	if filter != nil {
		f := *filter
		f.QueryFilter = types.NewNoLimitQueryFilter()
		all = &f
	}
	payments, err := r.List(ctx, all)
	if err != nil {
		return 0, err
	}
	return len(payments), nil
}

func (r *paymentRepository) PurgeRawPayloads(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	if filter == nil || filter.CreatedBefore == nil {
		return 0, ierr.NewError("created_before filter is required").
			WithHint("Payload purge requires a cutoff time").
			Mark(ierr.ErrValidation)
	}

	const q = `
		UPDATE payments SET raw_request = NULL, raw_response = NULL
		WHERE created_at < $1
		  AND (raw_request IS NOT NULL OR raw_response IS NOT NULL)`

	res, err := r.client.Querier(ctx).ExecContext(ctx, q, *filter.CreatedBefore)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to purge payment payloads").
			Mark(ierr.ErrDatabase)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// isUniqueViolation reports whether the error is a postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
