package postgres

import (
	"context"
	"database/sql"

	"github.com/billforge/billforge/internal/domain/plan"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/postgres"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type planRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewPlanRepository creates a new postgres-backed plan repository
func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return &planRepository{client: client, logger: logger}
}

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	const q = `
		INSERT INTO plans (
			id, name, price_amount, currency, billing_period, trial_days,
			is_active, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :price_amount, :currency, :billing_period, :trial_days,
			:is_active, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, p); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create plan").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	const q = `SELECT * FROM plans WHERE id = $1 AND status != $2`

	var p plan.Plan
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, q, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("plan not found").
				WithHintf("Plan %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *planRepository) Update(ctx context.Context, p *plan.Plan) error {
	const q = `
		UPDATE plans SET
			name = :name,
			price_amount = :price_amount,
			currency = :currency,
			billing_period = :billing_period,
			trial_days = :trial_days,
			is_active = :is_active,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), q, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update plan").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("plan not found").
			WithHintf("Plan %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *planRepository) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	q := `SELECT * FROM plans WHERE status = $1`
	args := []interface{}{types.StatusPublished}

	if filter != nil && filter.ActiveOnly {
		q += ` AND is_active = TRUE`
	}
	q += ` ORDER BY created_at DESC`
	if filter != nil && !filter.IsUnlimited() {
		q += ` LIMIT $2 OFFSET $3`
		args = append(args, filter.GetLimit(), filter.GetOffset())
	}

	plans := make([]*plan.Plan, 0)
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &plans, q, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plans").
			Mark(ierr.ErrDatabase)
	}
	return plans, nil
}

func (r *planRepository) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	q := `SELECT COUNT(*) FROM plans WHERE status = $1`
	args := []interface{}{types.StatusPublished}

	if filter != nil && filter.ActiveOnly {
		q += ` AND is_active = TRUE`
	}

	var count int
	if err := sqlx.GetContext(ctx, r.client.Querier(ctx), &count, q, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count plans").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}
