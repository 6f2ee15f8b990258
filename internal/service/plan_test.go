package service

import (
	"testing"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/cache"
	"github.com/billforge/billforge/internal/domain/plan"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PlanService
	params  ServiceParams
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		DB:                s.GetDB(),
		Cache:             s.GetCache(),
		PlanRepo:          s.GetStores().PlanRepo,
		SubRepo:           s.GetStores().SubscriptionRepo,
		InvoiceRepo:       s.GetStores().InvoiceRepo,
		PaymentRepo:       s.GetStores().PaymentRepo,
		LedgerRepo:        s.GetStores().LedgerRepo,
		PaymentMethodRepo: s.GetStores().PaymentMethodRepo,
		Gateway:           s.GetGateway(),
		WebhookPublisher:  s.GetWebhookPublisher(),
	}
	s.service = NewPlanService(s.params)
}

func (s *PlanServiceSuite) createPlan(name string) *dto.PlanResponse {
	resp, err := s.service.CreatePlan(s.GetContext(), &dto.CreatePlanRequest{
		Name:          name,
		PriceAmount:   decimal.NewFromInt(10),
		Currency:      "USD",
		BillingPeriod: types.BillingPeriodMonth,
	})
	s.NoError(err)
	return resp
}

func (s *PlanServiceSuite) TestCreatePlan() {
	resp, err := s.service.CreatePlan(s.GetContext(), &dto.CreatePlanRequest{
		Name:          "Pro",
		PriceAmount:   decimal.NewFromInt(25),
		Currency:      "USD",
		BillingPeriod: types.BillingPeriodYear,
		TrialDays:     14,
	})
	s.NoError(err)
	s.NotEmpty(resp.ID)
	s.Equal("Pro", resp.Name)
	s.True(resp.PriceAmount.Equal(decimal.NewFromInt(25)))
	s.Equal(types.BillingPeriodYear, resp.BillingPeriod)
	s.Equal(14, resp.TrialDays)
	s.True(resp.IsActive)
}

func (s *PlanServiceSuite) TestCreatePlanInvalid() {
	cases := []*dto.CreatePlanRequest{
		{PriceAmount: decimal.NewFromInt(10), Currency: "USD", BillingPeriod: types.BillingPeriodMonth},
		{Name: "Pro", PriceAmount: decimal.NewFromInt(-1), Currency: "USD", BillingPeriod: types.BillingPeriodMonth},
		{Name: "Pro", PriceAmount: decimal.NewFromInt(10), BillingPeriod: types.BillingPeriodMonth},
		{Name: "Pro", PriceAmount: decimal.NewFromInt(10), Currency: "USD", BillingPeriod: "WEEK"},
		{Name: "Pro", PriceAmount: decimal.NewFromInt(10), Currency: "USD", BillingPeriod: types.BillingPeriodMonth, TrialDays: -1},
	}
	for _, req := range cases {
		_, err := s.service.CreatePlan(s.GetContext(), req)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	}
}

func (s *PlanServiceSuite) TestGetPlanReadThroughCache() {
	created := s.createPlan("Basic")
	cacheKey := cache.Key(cache.PrefixPlan, created.ID)

	_, found := s.GetCache().Get(s.GetContext(), cacheKey)
	s.False(found)

	// First read populates the cache
	resp, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(created.ID, resp.ID)

	cached, found := s.GetCache().Get(s.GetContext(), cacheKey)
	s.True(found)
	s.Equal(created.ID, cached.(*plan.Plan).ID)

	// Subsequent reads serve the cached row
	again, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal("Basic", again.Name)
}

func (s *PlanServiceSuite) TestGetPlanNotFound() {
	_, err := s.service.GetPlan(s.GetContext(), "plan_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PlanServiceSuite) TestListPlansActiveOnly() {
	s.createPlan("Basic")
	pro := s.createPlan("Pro")

	_, err := s.service.DeactivatePlan(s.GetContext(), pro.ID)
	s.NoError(err)

	filter := types.NewNoLimitPlanFilter()
	filter.ActiveOnly = true
	resp, err := s.service.ListPlans(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal("Basic", resp.Items[0].Name)

	all, err := s.service.ListPlans(s.GetContext(), types.NewNoLimitPlanFilter())
	s.NoError(err)
	s.Len(all.Items, 2)
	s.Equal(2, all.Total)
}

func (s *PlanServiceSuite) TestDeactivatePlan() {
	created := s.createPlan("Basic")

	// Warm the cache so deactivation has something to invalidate
	_, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)

	resp, err := s.service.DeactivatePlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.False(resp.IsActive)

	// Deactivation invalidates the cached row
	_, found := s.GetCache().Get(s.GetContext(), cache.Key(cache.PrefixPlan, created.ID))
	s.False(found)

	fresh, err := s.service.GetPlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.False(fresh.IsActive)
}

func (s *PlanServiceSuite) TestDeactivatePlanIdempotent() {
	created := s.createPlan("Basic")

	_, err := s.service.DeactivatePlan(s.GetContext(), created.ID)
	s.NoError(err)

	resp, err := s.service.DeactivatePlan(s.GetContext(), created.ID)
	s.NoError(err)
	s.False(resp.IsActive)
}
