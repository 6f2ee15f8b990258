package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/billforge/billforge/internal/domain/ledger"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// ledgerRepository is append-only by construction: it exposes no UPDATE or
// DELETE statements for transaction_history.
type ledgerRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewLedgerRepository creates a new postgres-backed ledger repository
func NewLedgerRepository(client postgres.IClient, logger *logger.Logger) ledger.Repository {
	return &ledgerRepository{client: client, logger: logger}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *ledger.TransactionHistoryEntry) error {
	const q = `
		INSERT INTO transaction_history (
			id, user_id, subscription_id, payment_id, type, amount,
			currency, description, created_at
		) VALUES (
			:id, :user_id, :subscription_id, :payment_id, :type, :amount,
			:currency, :description, :created_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, entry); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create transaction history entry").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ledgerRepository) Get(ctx context.Context, id string) (*ledger.TransactionHistoryEntry, error) {
	const q = `SELECT * FROM transaction_history WHERE id = $1`

	var entry ledger.TransactionHistoryEntry
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &entry, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("transaction history entry not found").
				WithHintf("Transaction history entry %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get transaction history entry").
			Mark(ierr.ErrDatabase)
	}
	return &entry, nil
}

func (r *ledgerRepository) List(ctx context.Context, filter *types.TransactionFilter) ([]*ledger.TransactionHistoryEntry, error) {
	q := `SELECT * FROM transaction_history WHERE TRUE`
	args := []interface{}{}
	idx := 1

	if filter != nil {
		if filter.UserID != nil {
			q += fmt.Sprintf(` AND user_id = $%d`, idx)
			args = append(args, *filter.UserID)
			idx++
		}
		if filter.SubscriptionID != nil {
			q += fmt.Sprintf(` AND subscription_id = $%d`, idx)
			args = append(args, *filter.SubscriptionID)
			idx++
		}
		if filter.PaymentID != nil {
			q += fmt.Sprintf(` AND payment_id = $%d`, idx)
			args = append(args, *filter.PaymentID)
			idx++
		}
		if filter.TransactionType != nil {
			q += fmt.Sprintf(` AND type = $%d`, idx)
			args = append(args, filter.TransactionType.String())
			idx++
		}
	}

	q += ` ORDER BY created_at DESC`
	if filter != nil && !filter.IsUnlimited() {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	entries := make([]*ledger.TransactionHistoryEntry, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &entries, q, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list transaction history").
			Mark(ierr.ErrDatabase)
	}
	return entries, nil
}

func (r *ledgerRepository) Count(ctx context.Context, filter *types.TransactionFilter) (int, error) {
	// Count ignores pagination so the total reflects every matching row
	all := types.NewNoLimitTransactionFilter()
	if filter != nil {
		f := *filter
		f.QueryFilter = types.NewNoLimitQueryFilter()
		all = &f
	}
	entries, err := r.List(ctx, all)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
