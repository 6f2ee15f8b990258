package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/plan"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/idempotency"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingService
	params  ServiceParams
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
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
	s.service = NewBillingService(s.params)
}

func (s *BillingServiceSuite) createPlan(amount int64, period types.BillingPeriod) *plan.Plan {
	pl := &plan.Plan{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:          "Test Plan",
		PriceAmount:   decimal.NewFromInt(amount),
		Currency:      "USD",
		BillingPeriod: period,
		IsActive:      true,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.Create(s.GetContext(), pl))
	return pl
}

// createDueSubscription stages an ACTIVE subscription whose period ended
// an hour ago
func (s *BillingServiceSuite) createDueSubscription(pl *plan.Plan) *subscription.Subscription {
	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER),
		PlanID:             pl.ID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, 0, -pl.BillingPeriod.Days()),
		CurrentPeriodEnd:   now.Add(-time.Hour),
		NextBillingAt:      lo.ToPtr(now.Add(-time.Hour)),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *BillingServiceSuite) subscriptionInvoices(subID string) []*invoice.Invoice {
	filter := types.NewNoLimitInvoiceFilter()
	filter.SubscriptionID = &subID
	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), filter)
	s.NoError(err)
	return invoices
}

func (s *BillingServiceSuite) allPayments() []*payment.Payment {
	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), types.NewNoLimitPaymentFilter())
	s.NoError(err)
	return payments
}

func (s *BillingServiceSuite) webhookEventNames() []string {
	msgs := s.GetPubSub().Messages(s.GetConfig().Webhook.Topic)
	names := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		names = append(names, msg.Metadata.Get("event_name"))
	}
	return names
}

func (s *BillingServiceSuite) TestProcessBillingCycleSuccess() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	oldPeriodEnd := sub.CurrentPeriodEnd

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Processed)
	s.Equal(0, resp.Failed)
	s.Equal(0, resp.Canceled)
	s.Equal(1, resp.Total)

	// Subscription rolled into the next month
	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Equal(oldPeriodEnd, updated.CurrentPeriodStart)
	s.Equal(oldPeriodEnd.AddDate(0, 0, 30), updated.CurrentPeriodEnd)
	s.Equal(updated.CurrentPeriodEnd, *updated.NextBillingAt)

	// One PAID invoice for the closed period
	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.True(invoices[0].Amount.Equal(decimal.NewFromInt(10)))
	s.NotNil(invoices[0].PaidAt)

	// One succeeded payment carrying the derived key
	payments := s.allPayments()
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].PaymentStatus)
	s.NotNil(payments[0].ProviderPaymentID)
	s.Len(payments[0].IdempotencyKey, 64)

	// One CHARGE ledger entry
	entries, err := s.GetStores().LedgerRepo.List(s.GetContext(), types.NewNoLimitTransactionFilter())
	s.NoError(err)
	s.Len(entries, 1)
	s.Equal(types.TransactionTypeCharge, entries[0].Type)
	s.True(entries[0].Amount.Equal(decimal.NewFromInt(10)))

	s.Contains(s.webhookEventNames(), types.WebhookEventPaymentSucceeded)
}

func (s *BillingServiceSuite) TestProcessBillingCycleDecline() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	oldPeriodEnd := sub.CurrentPeriodEnd
	s.GetGateway().SetVerdict(gateway.ChargeStatusFailed)

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Processed)
	s.Equal(1, resp.Failed)

	// Subscription drops to PAST_DUE without advancing
	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
	s.Equal(oldPeriodEnd, updated.CurrentPeriodEnd)

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusFailed, invoices[0].InvoiceStatus)

	payments := s.allPayments()
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusFailed, payments[0].PaymentStatus)
	s.NotNil(payments[0].ErrorCode)
	s.Equal("card_declined", *payments[0].ErrorCode)

	// No ledger entry is written for a declined charge
	entries, err := s.GetStores().LedgerRepo.List(s.GetContext(), types.NewNoLimitTransactionFilter())
	s.NoError(err)
	s.Empty(entries)

	s.Contains(s.webhookEventNames(), types.WebhookEventPaymentFailed)
}

func (s *BillingServiceSuite) TestProcessBillingCycleCancelAtPeriodEnd() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	sub.CancelAtPeriodEnd = true
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Processed)
	s.Equal(0, resp.Failed)
	s.Equal(1, resp.Canceled)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, updated.SubscriptionStatus)
	s.NotNil(updated.CanceledAt)
	s.Nil(updated.NextBillingAt)

	// No invoice and no charge for the closing period
	s.Empty(s.subscriptionInvoices(sub.ID))
	s.Empty(s.GetGateway().ChargeCalls())

	s.Contains(s.webhookEventNames(), types.WebhookEventSubscriptionCanceled)
}

func (s *BillingServiceSuite) TestProcessBillingCycleNotDue() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER),
		PlanID:             pl.ID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, 30),
		BaseModel:          types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Total)
	s.Empty(s.GetGateway().ChargeCalls())
}

func (s *BillingServiceSuite) TestProcessBillingCycleAmbiguous() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	s.GetGateway().SetVerdict(gateway.ChargeStatusPending)

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Failed)

	// No verdict: payment stays PENDING for the reconciler and the
	// subscription is untouched
	payments := s.allPayments()
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusPending, payments[0].PaymentStatus)
	s.NotNil(payments[0].ProviderPaymentID)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPending, invoices[0].InvoiceStatus)
}

func (s *BillingServiceSuite) TestProcessBillingCycleZeroAmountPlan() {
	pl := s.createPlan(0, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	oldPeriodEnd := sub.CurrentPeriodEnd

	resp, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Processed)

	// The invoice settles without a gateway round trip
	s.Empty(s.GetGateway().ChargeCalls())
	s.Empty(s.allPayments())

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(oldPeriodEnd.AddDate(0, 0, 30), updated.CurrentPeriodEnd)
}

func (s *BillingServiceSuite) TestProcessBillingCycleYearlyAdvance() {
	pl := s.createPlan(100, types.BillingPeriodYear)
	sub := s.createDueSubscription(pl)
	oldPeriodEnd := sub.CurrentPeriodEnd

	_, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(oldPeriodEnd.AddDate(0, 0, 365), updated.CurrentPeriodEnd)
}

func (s *BillingServiceSuite) TestBillSubscriptionSecondPassSkips() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	now := time.Now().UTC()

	svc := s.service.(*billingService)
	outcome, err := svc.billSubscription(s.GetContext(), sub.ID, now)
	s.NoError(err)
	s.Equal(billOutcomeBilled, outcome)

	// A second pass over the same subscription re-checks due-ness under
	// the lock and does nothing
	outcome, err = svc.billSubscription(s.GetContext(), sub.ID, now)
	s.NoError(err)
	s.Equal(billOutcomeSkipped, outcome)
	s.Len(s.allPayments(), 1)
	s.Len(s.subscriptionInvoices(sub.ID), 1)
}

func (s *BillingServiceSuite) TestChargeInvoiceReusesExistingPayment() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	now := time.Now().UTC()
	oldPeriodEnd := sub.CurrentPeriodEnd

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Amount:         decimal.NewFromInt(10),
		Currency:       "USD",
		InvoiceStatus:  types.InvoiceStatusPending,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), inv))

	// A prior attempt already charged this invoice under the derived key
	key := idempotency.NewGenerator().GenerateBillingKey(idempotency.ScopeBillingCycle, sub.ID, inv.ID, now)
	existing := &payment.Payment{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:         inv.ID,
		UserID:            sub.UserID,
		Provider:          "mock",
		ProviderPaymentID: lo.ToPtr("mock_ch_prior"),
		PaymentStatus:     types.PaymentStatusSucceeded,
		Amount:            decimal.NewFromInt(10),
		Currency:          "USD",
		IdempotencyKey:    key,
		BaseModel:         types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), existing))

	svc := s.service.(*billingService)
	var events []*types.WebhookEvent
	outcome, err := svc.chargeInvoice(s.GetContext(), sub, pl, inv, now, &events)
	s.NoError(err)
	s.Equal(billOutcomeBilled, outcome)

	// The colliding key hands back the recorded payment; the gateway is
	// never asked for a second charge
	s.Empty(s.GetGateway().ChargeCalls())
	payments := s.allPayments()
	s.Len(payments, 1)
	s.Equal(existing.ID, payments[0].ID)

	// The replay still settles the invoice and rolls the period
	updatedInv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, updatedInv.InvoiceStatus)

	updatedSub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(oldPeriodEnd.AddDate(0, 0, 30), updatedSub.CurrentPeriodEnd)
}

// stageFailedBilling stages the aftermath of a declined billing run
func (s *BillingServiceSuite) stageFailedBilling() (*plan.Plan, *subscription.Subscription, *payment.Payment) {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	s.GetGateway().SetVerdict(gateway.ChargeStatusFailed)

	_, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)

	payments := s.allPayments()
	s.Require().Len(payments, 1)
	s.GetGateway().SetVerdict(gateway.ChargeStatusSucceeded)
	return pl, sub, payments[0]
}

func (s *BillingServiceSuite) TestRetryFailedPaymentsSuccess() {
	_, sub, p := s.stageFailedBilling()

	resp, err := s.service.RetryFailedPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Retried)
	s.Equal(1, resp.Total)

	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, updated.PaymentStatus)
	s.Equal(1, updated.RetryCount)

	// The retry reuses the original idempotency key
	calls := s.GetGateway().ChargeCalls()
	s.Len(calls, 2)
	s.Equal(calls[0], calls[1])

	// The subscription recovers and rolls forward
	updatedSub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updatedSub.SubscriptionStatus)

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
}

func (s *BillingServiceSuite) TestRetryFailedPaymentsDeclinedAgain() {
	_, _, p := s.stageFailedBilling()
	s.GetGateway().SetVerdict(gateway.ChargeStatusFailed)

	resp, err := s.service.RetryFailedPayments(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Retried)
	s.Equal(1, resp.Total)

	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, updated.PaymentStatus)
	s.Equal(1, updated.RetryCount)
	s.NotNil(updated.NextRetryAt)
}

func (s *BillingServiceSuite) TestRetryFailedPaymentsSkipsCanceled() {
	_, sub, p := s.stageFailedBilling()

	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	chargesBefore := len(s.GetGateway().ChargeCalls())

	resp, err := s.service.RetryFailedPayments(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Retried)
	s.Equal(1, resp.Total)

	// A canceled subscription is never charged
	s.Len(s.GetGateway().ChargeCalls(), chargesBefore)
	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, updated.PaymentStatus)
}

// stageStalePending stages a payment stuck in PENDING past the grace
// period, as left behind by an ambiguous gateway outcome
func (s *BillingServiceSuite) stageStalePending(withProviderID bool) (*subscription.Subscription, *payment.Payment) {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	sub := s.createDueSubscription(pl)
	s.GetGateway().SetVerdict(gateway.ChargeStatusPending)

	_, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)

	payments := s.allPayments()
	s.Require().Len(payments, 1)
	p := payments[0]

	// Age the payment past the grace period
	p.UpdatedAt = time.Now().UTC().Add(-2 * s.GetConfig().Billing.PendingGracePeriod)
	if !withProviderID {
		p.ProviderPaymentID = nil
	}
	s.NoError(s.GetStores().PaymentRepo.Update(s.GetContext(), p))
	return sub, p
}

func (s *BillingServiceSuite) TestReconcileResolvesSucceeded() {
	sub, p := s.stageStalePending(true)
	s.GetGateway().NextStatus = gateway.ChargeStatusSucceeded

	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Examined)
	s.Equal(1, resp.Resolved)

	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, updated.PaymentStatus)

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)

	// The reconciler never issues a second charge
	s.Len(s.GetGateway().ChargeCalls(), 1)
	s.Len(s.GetGateway().StatusCalls(), 1)
}

func (s *BillingServiceSuite) TestReconcileResolvesFailed() {
	sub, p := s.stageStalePending(true)
	s.GetGateway().NextStatus = gateway.ChargeStatusFailed

	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Resolved)

	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, updated.PaymentStatus)

	updatedSub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, updatedSub.SubscriptionStatus)
}

func (s *BillingServiceSuite) TestReconcileKeepsCanceledSubscriptionCanceled() {
	sub, p := s.stageStalePending(true)

	// The user canceled while the payment was still in flight
	canceledAt := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	sub.CanceledAt = &canceledAt
	sub.NextBillingAt = nil
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	oldPeriodEnd := sub.CurrentPeriodEnd

	s.GetGateway().NextStatus = gateway.ChargeStatusSucceeded
	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Resolved)

	// The late success still settles the payment and invoice
	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, updated.PaymentStatus)

	invoices := s.subscriptionInvoices(sub.ID)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)

	// CANCELED is terminal: the subscription is neither revived nor
	// rolled forward
	updatedSub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, updatedSub.SubscriptionStatus)
	s.Equal(oldPeriodEnd, updatedSub.CurrentPeriodEnd)
	s.Nil(updatedSub.NextBillingAt)
}

func (s *BillingServiceSuite) TestReconcileNoProviderReference() {
	_, p := s.stageStalePending(false)

	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Resolved)

	// Without a provider reference the charge never happened; fail it so
	// the retrier picks it up
	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, updated.PaymentStatus)
	s.NotNil(updated.ErrorCode)
	s.Empty(s.GetGateway().StatusCalls())
}

func (s *BillingServiceSuite) TestReconcileStillPending() {
	_, p := s.stageStalePending(true)
	s.GetGateway().NextStatus = gateway.ChargeStatusPending

	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Examined)
	s.Equal(0, resp.Resolved)

	updated, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPending, updated.PaymentStatus)
}

func (s *BillingServiceSuite) TestReconcileSkipsRecentPending() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	s.createDueSubscription(pl)
	s.GetGateway().SetVerdict(gateway.ChargeStatusPending)

	_, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)

	// The payment is fresh, still within the grace period
	resp, err := s.service.ReconcilePendingPayments(s.GetContext())
	s.NoError(err)
	s.Equal(0, resp.Examined)
}

func (s *BillingServiceSuite) TestPurgeExpiredPayloads() {
	pl := s.createPlan(10, types.BillingPeriodMonth)
	s.createDueSubscription(pl)

	_, err := s.service.ProcessBillingCycle(s.GetContext())
	s.NoError(err)

	payments := s.allPayments()
	s.Require().Len(payments, 1)
	recent := payments[0]
	s.NotNil(recent.RawRequest)

	// Stage an old payment beyond the retention window
	old := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      "inv_old",
		UserID:         "user_old",
		Provider:       "mock",
		PaymentStatus:  types.PaymentStatusSucceeded,
		Amount:         decimal.NewFromInt(10),
		Currency:       "USD",
		IdempotencyKey: "old_key",
		RawRequest:     lo.ToPtr(`{"amount":"10"}`),
		RawResponse:    lo.ToPtr(`{"status":"SUCCEEDED"}`),
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -(s.GetConfig().Billing.PayloadRetentionDays + 1))
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), old))

	resp, err := s.service.PurgeExpiredPayloads(s.GetContext())
	s.NoError(err)
	s.Equal(1, resp.Purged)

	purged, err := s.GetStores().PaymentRepo.Get(s.GetContext(), old.ID)
	s.NoError(err)
	s.Nil(purged.RawRequest)
	s.Nil(purged.RawResponse)

	// Recent payloads are untouched
	kept, err := s.GetStores().PaymentRepo.Get(s.GetContext(), recent.ID)
	s.NoError(err)
	s.NotNil(kept.RawRequest)
}
