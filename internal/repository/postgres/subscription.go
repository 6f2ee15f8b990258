package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewSubscriptionRepository creates a new postgres-backed subscription repository
func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	const q = `
		INSERT INTO subscriptions (
			id, user_id, plan_id, subscription_status, current_period_start,
			current_period_end, next_billing_at, cancel_at_period_end,
			canceled_at, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :user_id, :plan_id, :subscription_status, :current_period_start,
			:current_period_end, :next_billing_at, :cancel_at_period_end,
			:canceled_at, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, id, false)
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, id, true)
}

func (r *subscriptionRepository) get(ctx context.Context, id string, forUpdate bool) (*subscription.Subscription, error) {
	q := `SELECT * FROM subscriptions WHERE id = $1 AND status != $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var sub subscription.Subscription
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &sub, q, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	const q = `
		UPDATE subscriptions SET
			subscription_status = :subscription_status,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			next_billing_at = :next_billing_at,
			cancel_at_period_end = :cancel_at_period_end,
			canceled_at = :canceled_at,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	q := `SELECT * FROM subscriptions WHERE status = $1`
	args := []interface{}{types.StatusPublished}
	idx := 2

	if filter != nil {
		if filter.UserID != nil {
			q += fmt.Sprintf(` AND user_id = $%d`, idx)
			args = append(args, *filter.UserID)
			idx++
		}
		if filter.PlanID != nil {
			q += fmt.Sprintf(` AND plan_id = $%d`, idx)
			args = append(args, *filter.PlanID)
			idx++
		}
		if len(filter.SubscriptionStatus) > 0 {
			q += fmt.Sprintf(` AND subscription_status = ANY($%d)`, idx)
			statuses := make([]string, len(filter.SubscriptionStatus))
			for i, s := range filter.SubscriptionStatus {
				statuses[i] = s.String()
			}
			args = append(args, pq.Array(statuses))
			idx++
		}
		if filter.PeriodEndBefore != nil {
			q += fmt.Sprintf(` AND current_period_end <= $%d`, idx)
			args = append(args, *filter.PeriodEndBefore)
			idx++
		}
	}

	q += ` ORDER BY created_at ASC`
	if filter != nil && !filter.IsUnlimited() {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	subs := make([]*subscription.Subscription, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &subs, q, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	// Count ignores pagination so the total reflects every matching row
	all := types.NewNoLimitSubscriptionFilter()
	if filter != nil {
		f := *filter
		f.QueryFilter = types.NewNoLimitQueryFilter()
		all = &f
	}
	subs, err := r.List(ctx, all)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

func (r *subscriptionRepository) ListDue(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return r.List(ctx, &types.SubscriptionFilter{
		QueryFilter:        types.NewNoLimitQueryFilter(),
		SubscriptionStatus: []types.SubscriptionStatus{types.SubscriptionStatusActive},
		PeriodEndBefore:    &now,
	})
}
