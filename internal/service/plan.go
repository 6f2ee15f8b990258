package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/cache"
	"github.com/billforge/billforge/internal/domain/plan"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

const planCacheExpiry = 5 * time.Minute

// PlanService manages billable plans. Reads are served through the
// cache; plans referenced by subscriptions are deactivated, not deleted.
type PlanService interface {
	CreatePlan(ctx context.Context, req *dto.CreatePlanRequest) (*dto.PlanResponse, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
	DeactivatePlan(ctx context.Context, id string) (*dto.PlanResponse, error)
}

type planService struct {
	ServiceParams
}

// NewPlanService creates a new plan service
func NewPlanService(params ServiceParams) PlanService {
	return &planService{ServiceParams: params}
}

func (s *planService) CreatePlan(ctx context.Context, req *dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pl := req.ToPlan(
		types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		types.GetDefaultBaseModel(ctx),
	)
	if err := pl.Validate(); err != nil {
		return nil, err
	}

	if err := s.PlanRepo.Create(ctx, pl); err != nil {
		return nil, err
	}
	return dto.NewPlanResponse(pl), nil
}

func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	if id == "" {
		return nil, ierr.NewError("plan id is required").
			WithHint("Plan id is required").
			Mark(ierr.ErrValidation)
	}

	cacheKey := cache.Key(cache.PrefixPlan, id)
	if cached, found := s.Cache.Get(ctx, cacheKey); found {
		if pl, ok := cached.(*plan.Plan); ok {
			return dto.NewPlanResponse(pl), nil
		}
	}

	pl, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, cacheKey, pl, planCacheExpiry)
	return dto.NewPlanResponse(pl), nil
}

func (s *planService) ListPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if filter == nil {
		filter = &types.PlanFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PlanRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListPlansResponse{
		Items: make([]*dto.PlanResponse, 0, len(plans)),
		Total: total,
	}
	for _, pl := range plans {
		resp.Items = append(resp.Items, dto.NewPlanResponse(pl))
	}
	return resp, nil
}

func (s *planService) DeactivatePlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	pl, err := s.PlanRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pl.IsActive {
		return dto.NewPlanResponse(pl), nil
	}

	pl.IsActive = false
	pl.UpdatedAt = time.Now().UTC()
	if err := s.PlanRepo.Update(ctx, pl); err != nil {
		return nil, err
	}

	s.Cache.Delete(ctx, cache.Key(cache.PrefixPlan, id))
	return dto.NewPlanResponse(pl), nil
}
