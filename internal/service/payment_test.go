package service

import (
	"testing"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/payment"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PaymentService
	params  ServiceParams
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
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
	s.service = NewPaymentService(s.params)
}

func (s *PaymentServiceSuite) createSucceededPayment(amount int64) *payment.Payment {
	now := s.GetNow()
	p := &payment.Payment{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		UserID:            "user_1",
		Provider:          "mock",
		ProviderPaymentID: lo.ToPtr("mock_ch_1"),
		PaymentStatus:     types.PaymentStatusSucceeded,
		Amount:            decimal.NewFromInt(amount),
		Currency:          "USD",
		IdempotencyKey:    types.GenerateUUID(),
		SucceededAt:       &now,
		BaseModel:         types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), p))
	return p
}

func (s *PaymentServiceSuite) TestRefundPaymentFull() {
	p := s.createSucceededPayment(50)

	resp, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{})
	s.NoError(err)
	s.Equal(p.ID, resp.PaymentID)
	s.True(resp.Amount.Equal(decimal.NewFromInt(50)))

	// A negative REFUND entry lands in the ledger
	filter := types.NewNoLimitTransactionFilter()
	filter.PaymentID = &p.ID
	entries, err := s.GetStores().LedgerRepo.List(s.GetContext(), filter)
	s.NoError(err)
	s.Len(entries, 1)
	s.Equal(types.TransactionTypeRefund, entries[0].Type)
	s.True(entries[0].Amount.Equal(decimal.NewFromInt(-50)))
}

func (s *PaymentServiceSuite) TestRefundPaymentPartial() {
	p := s.createSucceededPayment(50)

	resp, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{
		Amount: lo.ToPtr(decimal.NewFromInt(20)),
		Reason: "customer request",
	})
	s.NoError(err)
	s.True(resp.Amount.Equal(decimal.NewFromInt(20)))

	s.Len(s.GetGateway().RefundCalls(), 1)
	s.True(s.GetGateway().RefundCalls()[0].Equal(decimal.NewFromInt(20)))
}

func (s *PaymentServiceSuite) TestRefundPaymentExceedsOriginal() {
	p := s.createSucceededPayment(50)

	_, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{
		Amount: lo.ToPtr(decimal.NewFromInt(60)),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetGateway().RefundCalls())
}

func (s *PaymentServiceSuite) TestRefundPaymentCumulativeBound() {
	p := s.createSucceededPayment(50)

	_, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{
		Amount: lo.ToPtr(decimal.NewFromInt(30)),
	})
	s.NoError(err)

	// A second partial refund may not push the total over the charge
	_, err = s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{
		Amount: lo.ToPtr(decimal.NewFromInt(30)),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// The remainder is still refundable
	_, err = s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{
		Amount: lo.ToPtr(decimal.NewFromInt(20)),
	})
	s.NoError(err)
}

func (s *PaymentServiceSuite) TestRefundPaymentNotSucceeded() {
	p := s.createSucceededPayment(50)
	p.PaymentStatus = types.PaymentStatusFailed
	s.NoError(s.GetStores().PaymentRepo.Update(s.GetContext(), p))

	_, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestRefundPaymentNotFound() {
	_, err := s.service.RefundPayment(s.GetContext(), "pay_missing", &dto.RefundPaymentRequest{})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestSavePaymentMethod() {
	resp, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
		UserID:       "user_1",
		PaymentToken: "tok_visa",
		SetDefault:   true,
	})
	s.NoError(err)
	s.Equal("user_1", resp.UserID)
	s.Equal("mock", resp.Provider)
	s.NotEmpty(resp.ProviderPaymentMethodID)
	s.True(resp.IsDefault)
}

func (s *PaymentServiceSuite) TestSavePaymentMethodReplacesDefault() {
	first, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
		UserID:       "user_1",
		PaymentToken: "tok_visa",
		SetDefault:   true,
	})
	s.NoError(err)

	second, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
		UserID:       "user_1",
		PaymentToken: "tok_mastercard",
		SetDefault:   true,
	})
	s.NoError(err)

	// Only the newest method remains the default
	defaultRef, err := s.GetStores().PaymentMethodRepo.GetDefaultForUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(second.ID, defaultRef.ID)

	oldRef, err := s.GetStores().PaymentMethodRepo.Get(s.GetContext(), first.ID)
	s.NoError(err)
	s.False(oldRef.IsDefault)
}

func (s *PaymentServiceSuite) TestListPaymentMethods() {
	for _, token := range []string{"tok_1", "tok_2"} {
		_, err := s.service.SavePaymentMethod(s.GetContext(), &dto.SavePaymentMethodRequest{
			UserID:       "user_1",
			PaymentToken: token,
		})
		s.NoError(err)
	}

	resp, err := s.service.ListPaymentMethods(s.GetContext(), "user_1")
	s.NoError(err)
	s.Len(resp, 2)

	empty, err := s.service.ListPaymentMethods(s.GetContext(), "user_2")
	s.NoError(err)
	s.Empty(empty)
}

func (s *PaymentServiceSuite) TestListPaymentsByStatus() {
	s.createSucceededPayment(10)
	p := s.createSucceededPayment(20)
	p.PaymentStatus = types.PaymentStatusFailed
	s.NoError(s.GetStores().PaymentRepo.Update(s.GetContext(), p))

	filter := types.NewNoLimitPaymentFilter()
	filter.PaymentStatus = lo.ToPtr(types.PaymentStatusSucceeded)

	resp, err := s.service.ListPayments(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal(1, resp.Total)
}

func (s *PaymentServiceSuite) TestListTransactions() {
	p := s.createSucceededPayment(50)
	_, err := s.service.RefundPayment(s.GetContext(), p.ID, &dto.RefundPaymentRequest{})
	s.NoError(err)

	resp, err := s.service.ListTransactions(s.GetContext(), types.NewNoLimitTransactionFilter())
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal(types.TransactionTypeRefund, resp.Items[0].Type)
}
