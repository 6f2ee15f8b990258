package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/plan"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
	params  ServiceParams
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
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
	s.service = NewSubscriptionService(s.params)
}

func (s *SubscriptionServiceSuite) createPlan(amount int64, trialDays int) *plan.Plan {
	pl := &plan.Plan{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:          "Test Plan",
		PriceAmount:   decimal.NewFromInt(amount),
		Currency:      "USD",
		BillingPeriod: types.BillingPeriodMonth,
		TrialDays:     trialDays,
		IsActive:      true,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), pl))
	return pl
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithImmediateCharge() {
	pl := s.createPlan(25, 0)

	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Equal(resp.CurrentPeriodStart.AddDate(0, 0, 30), resp.CurrentPeriodEnd)

	// The first invoice is charged and settled immediately
	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(25)))

	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), types.NewNoLimitPaymentFilter())
	s.NoError(err)
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].PaymentStatus)

	entries, err := s.GetStores().LedgerRepo.List(s.GetContext(), types.NewNoLimitTransactionFilter())
	s.NoError(err)
	s.Len(entries, 1)
	s.Equal(types.TransactionTypeCharge, entries[0].Type)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithTrial() {
	pl := s.createPlan(25, 14)

	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, resp.SubscriptionStatus)
	// The trial runs inside a full billing period
	s.Equal(resp.CurrentPeriodStart.AddDate(0, 0, 30), resp.CurrentPeriodEnd)

	// Trials open with a zero-amount invoice, settled without a charge
	s.Empty(s.GetGateway().ChargeCalls())
	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.True(invoices[0].Amount.IsZero())
	s.NotNil(invoices[0].PaidAt)

	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), types.NewNoLimitPaymentFilter())
	s.NoError(err)
	s.Empty(payments)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionFreePlan() {
	pl := s.createPlan(0, 0)

	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Empty(s.GetGateway().ChargeCalls())

	// A free plan still gets its settled zero-amount invoice
	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.True(invoices[0].Amount.IsZero())
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionDeclined() {
	pl := s.createPlan(25, 0)
	s.GetGateway().SetVerdict(gateway.ChargeStatusFailed)

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.Error(err)
	s.True(ierr.IsGateway(err))

	// The decline is still recorded: the subscription exists PAST_DUE
	// with its failed invoice and payment
	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), types.NewNoLimitSubscriptionFilter())
	s.NoError(err)
	s.Len(subs, 1)
	s.Equal(types.SubscriptionStatusPastDue, subs[0].SubscriptionStatus)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusFailed, invoices[0].InvoiceStatus)

	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), types.NewNoLimitPaymentFilter())
	s.NoError(err)
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusFailed, payments[0].PaymentStatus)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionInactivePlan() {
	pl := s.createPlan(25, 0)
	pl.IsActive = false
	s.NoError(s.GetStores().PlanRepo.Update(s.GetContext(), pl))

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionUnknownPlan() {
	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: "plan_missing",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCancelSubscriptionImmediate() {
	pl := s.createPlan(0, 0)
	created, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{Immediate: true})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, resp.SubscriptionStatus)
	s.NotNil(resp.CanceledAt)
	s.Nil(resp.NextBillingAt)
}

func (s *SubscriptionServiceSuite) TestCancelSubscriptionAtPeriodEnd() {
	pl := s.createPlan(0, 0)
	created, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{Immediate: false})
	s.NoError(err)

	// Deferred cancellation: still active, flagged for the billing cycle
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.True(resp.CancelAtPeriodEnd)
	s.Nil(resp.CanceledAt)
}

func (s *SubscriptionServiceSuite) TestCancelSubscriptionAlreadyCanceled() {
	pl := s.createPlan(0, 0)
	created, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		UserID: "user_1",
		PlanID: pl.ID,
	})
	s.NoError(err)

	_, err = s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{Immediate: true})
	s.NoError(err)

	_, err = s.service.CancelSubscription(s.GetContext(), created.ID, &dto.CancelSubscriptionRequest{Immediate: true})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestListSubscriptionsByUser() {
	pl := s.createPlan(0, 0)
	for _, userID := range []string{"user_1", "user_1", "user_2"} {
		_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
			UserID: userID,
			PlanID: pl.ID,
		})
		s.NoError(err)
		time.Sleep(time.Millisecond)
	}

	filter := types.NewNoLimitSubscriptionFilter()
	userID := "user_1"
	filter.UserID = &userID

	resp, err := s.service.ListSubscriptions(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 2)
	s.Equal(2, resp.Total)
}
