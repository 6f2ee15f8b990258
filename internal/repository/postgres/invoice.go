package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/billforge/billforge/internal/domain/invoice"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewInvoiceRepository creates a new postgres-backed invoice repository
func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	const q = `
		INSERT INTO invoices (
			id, subscription_id, user_id, amount, currency, invoice_status,
			billing_period_start, billing_period_end, paid_at,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :subscription_id, :user_id, :amount, :currency, :invoice_status,
			:billing_period_start, :billing_period_end, :paid_at,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	const q = `SELECT * FROM invoices WHERE id = $1 AND status != $2`

	var inv invoice.Invoice
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &inv, q, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("invoice not found").
				WithHintf("Invoice %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	const q = `
		UPDATE invoices SET
			amount = :amount,
			currency = :currency,
			invoice_status = :invoice_status,
			billing_period_start = :billing_period_start,
			billing_period_end = :billing_period_end,
			paid_at = :paid_at,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	q := `SELECT * FROM invoices WHERE status = $1`
	args := []interface{}{types.StatusPublished}
	idx := 2

	if filter != nil {
		if filter.SubscriptionID != nil {
			q += fmt.Sprintf(` AND subscription_id = $%d`, idx)
			args = append(args, *filter.SubscriptionID)
			idx++
		}
		if filter.UserID != nil {
			q += fmt.Sprintf(` AND user_id = $%d`, idx)
			args = append(args, *filter.UserID)
			idx++
		}
		if filter.InvoiceStatus != nil {
			q += fmt.Sprintf(` AND invoice_status = $%d`, idx)
			args = append(args, filter.InvoiceStatus.String())
			idx++
		}
	}

	q += ` ORDER BY created_at DESC`
	if filter != nil && !filter.IsUnlimited() {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	invoices := make([]*invoice.Invoice, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &invoices, q, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	// Count ignores pagination so the total reflects every matching row
	all := types.NewNoLimitInvoiceFilter()
	if filter != nil {
		f := *filter
		f.QueryFilter = types.NewNoLimitQueryFilter()
		all = &f
	}
	invoices, err := r.List(ctx, all)
	if err != nil {
		return 0, err
	}
	return len(invoices), nil
}
