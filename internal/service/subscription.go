package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/idempotency"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SubscriptionService manages the subscription lifecycle: creation with
// an immediate first charge, cancellation, and reads.
type SubscriptionService interface {
	// CreateSubscription enrolls a user in a plan. Every subscription
	// opens with an invoice for its first period: zero-amount and
	// settled for trials and free plans, charged immediately otherwise.
	// A declined first charge surfaces as an error after the decline
	// has been recorded.
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	// CancelSubscription cancels immediately or flags the subscription to
	// cancel at the end of the current period.
	CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
}

type subscriptionService struct {
	ServiceParams
	idempotency *idempotency.Generator
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		idempotency:   idempotency.NewGenerator(),
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pl, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !pl.IsActive {
		return nil, ierr.NewError("plan is not active").
			WithHint("The selected plan can no longer be subscribed to").
			WithReportableDetails(map[string]any{"plan_id": pl.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             req.UserID,
		PlanID:             pl.ID,
		CurrentPeriodStart: now,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	if pl.TrialDays > 0 {
		sub.SubscriptionStatus = types.SubscriptionStatusTrialing
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusActive
	}
	// The period always spans one full billing period; a trial runs
	// inside it, it does not shorten it.
	sub.CurrentPeriodEnd = now.AddDate(0, 0, pl.BillingPeriod.Days())
	sub.NextBillingAt = lo.ToPtr(sub.CurrentPeriodEnd)

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var events []*types.WebhookEvent
	var chargeErr error

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return err
		}
		events = append(events, newWebhookEvent(types.WebhookEventSubscriptionCreated, sub.UserID, sub))

		// Every subscription starts with an invoice. Trials invoice zero
		// for the trial period; a zero amount settles without a charge.
		amount := pl.PriceAmount
		if pl.TrialDays > 0 {
			amount = decimal.Zero
		}
		inv := &invoice.Invoice{
			ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			SubscriptionID:     sub.ID,
			UserID:             sub.UserID,
			Amount:             amount,
			Currency:           pl.Currency,
			InvoiceStatus:      types.InvoiceStatusPending,
			BillingPeriodStart: lo.ToPtr(sub.CurrentPeriodStart),
			BillingPeriodEnd:   lo.ToPtr(sub.CurrentPeriodEnd),
			BaseModel:          types.GetDefaultBaseModel(ctx),
		}
		if amount.IsZero() {
			inv.MarkPaid(now)
		}
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		if amount.IsZero() {
			return nil
		}

		chargeErr = s.chargeSignup(ctx, sub, inv, req.PaymentMethodID, now, &events)
		// A decline is committed as recorded state; the caller still gets
		// the error after the transaction ends.
		if chargeErr != nil && !ierr.IsGateway(chargeErr) {
			return chargeErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishSignupEvents(ctx, events)

	if chargeErr != nil {
		return nil, chargeErr
	}
	return dto.NewSubscriptionResponse(sub), nil
}

// chargeSignup attempts the first charge of a new subscription. The
// subscription, invoice and payment rows are recorded whatever the
// verdict; a decline leaves the subscription PAST_DUE and surfaces as an
// ErrGateway-marked error once the recording transaction committed.
func (s *subscriptionService) chargeSignup(
	ctx context.Context,
	sub *subscription.Subscription,
	inv *invoice.Invoice,
	paymentMethodID *string,
	now time.Time,
	events *[]*types.WebhookEvent,
) error {
	key := s.idempotency.GenerateBillingKey(idempotency.ScopeSignupCharge, sub.ID, inv.ID, now)
	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      inv.ID,
		UserID:         sub.UserID,
		Provider:       s.Gateway.Name(),
		PaymentStatus:  types.PaymentStatusPending,
		Amount:         inv.Amount,
		Currency:       inv.Currency,
		IdempotencyKey: key,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	p, err := s.PaymentRepo.CreateOrGetByIdempotencyKey(ctx, p)
	if err != nil {
		return err
	}

	method := s.resolvePaymentMethod(ctx, sub.UserID, paymentMethodID)

	gwCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	result, gwErr := s.Gateway.CreatePayment(gwCtx, p, method)

	switch {
	case gwErr == nil && result.Status == gateway.ChargeStatusSucceeded:
		p.MarkSucceeded(result.ProviderPaymentID, now)
		p.RawResponse = marshalRawPayload(result)
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return err
		}
		inv.MarkPaid(now)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		entry := &ledger.TransactionHistoryEntry{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			UserID:         sub.UserID,
			SubscriptionID: lo.ToPtr(sub.ID),
			PaymentID:      lo.ToPtr(p.ID),
			Type:           types.TransactionTypeCharge,
			Amount:         p.Amount,
			Currency:       p.Currency,
			CreatedAt:      now,
		}
		if err := s.LedgerRepo.Create(ctx, entry); err != nil {
			return err
		}
		*events = append(*events, newWebhookEvent(types.WebhookEventPaymentSucceeded, sub.UserID, p))
		return nil

	case gwErr == nil && result.Status == gateway.ChargeStatusFailed:
		errorCode := derefOrEmpty(result.ErrorCode)
		p.MarkFailed(errorCode, now)
		p.RawResponse = marshalRawPayload(result)
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return err
		}
		inv.InvoiceStatus = types.InvoiceStatusFailed
		inv.UpdatedAt = now
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		sub.SubscriptionStatus = types.SubscriptionStatusPastDue
		sub.UpdatedAt = now
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		*events = append(*events, newWebhookEvent(types.WebhookEventPaymentFailed, sub.UserID, p))
		return ierr.NewError("signup charge declined").
			WithHint("The payment was declined by the provider").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"payment_id":      p.ID,
				"error_code":      errorCode,
			}).
			Mark(ierr.ErrGateway)

	case gwErr == nil || ierr.IsGatewayAmbiguous(gwErr):
		// No verdict: leave the payment PENDING for reconciliation and
		// let the subscription stand; a later FAILED verdict moves it to
		// PAST_DUE through the reconciler.
		if result != nil && result.ProviderPaymentID != "" {
			p.ProviderPaymentID = lo.ToPtr(result.ProviderPaymentID)
		}
		p.RawResponse = marshalRawPayload(result)
		p.UpdatedAt = now
		return s.PaymentRepo.Update(ctx, p)

	default:
		return gwErr
	}
}

// resolvePaymentMethod loads the explicitly requested stored method, or
// the user's default when none was given. A missing method is not fatal;
// the gateway then falls back to the provider-side default.
func (s *subscriptionService) resolvePaymentMethod(ctx context.Context, userID string, paymentMethodID *string) *paymentmethod.PaymentMethodRef {
	if paymentMethodID != nil && *paymentMethodID != "" {
		method, err := s.PaymentMethodRepo.Get(ctx, *paymentMethodID)
		if err == nil && method.UserID == userID {
			return method
		}
		if err != nil && !ierr.IsNotFound(err) {
			s.Logger.Warnw("loading payment method failed",
				"payment_method_id", *paymentMethodID,
				"error", err,
			)
		}
	}
	method, err := s.PaymentMethodRepo.GetDefaultForUser(ctx, userID)
	if err != nil {
		return nil
	}
	return method
}

func (s *subscriptionService) publishSignupEvents(ctx context.Context, events []*types.WebhookEvent) {
	for _, event := range events {
		if err := s.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
			s.Logger.Errorw("publishing webhook event failed",
				"event_name", event.EventName,
				"error", err,
			)
		}
	}
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	now := time.Now().UTC()
	var sub *subscription.Subscription
	var events []*types.WebhookEvent

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus.IsTerminal() {
			return ierr.NewError("subscription already terminal").
				WithHint("The subscription is already canceled or expired").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"status":          sub.SubscriptionStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		if req == nil || !req.Immediate {
			// Deferred cancellation: the billing cycle closes the
			// subscription at period end instead of raising an invoice.
			sub.CancelAtPeriodEnd = true
			sub.UpdatedAt = now
			return s.SubRepo.Update(ctx, sub)
		}

		canceledAt := now
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		sub.CanceledAt = &canceledAt
		sub.NextBillingAt = nil
		sub.UpdatedAt = now
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		events = append(events, newWebhookEvent(types.WebhookEventSubscriptionCanceled, sub.UserID, sub))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishSignupEvents(ctx, events)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListSubscriptionsResponse{
		Items: make([]*dto.SubscriptionResponse, 0, len(subs)),
		Total: total,
	}
	for _, sub := range subs {
		resp.Items = append(resp.Items, dto.NewSubscriptionResponse(sub))
	}
	return resp, nil
}
