package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/billforge/billforge/internal/domain/plan"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/idempotency"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
)

// BillingService runs the scheduled billing jobs: the recurring billing
// cycle, the failed-payment retrier, stale-payment reconciliation and raw
// payload retention.
type BillingService interface {
	// ProcessBillingCycle bills every ACTIVE subscription whose current
	// period has ended. Each subscription is processed in its own
	// transaction; one failing subscription never aborts the run.
	ProcessBillingCycle(ctx context.Context) (*dto.BillingCycleResponse, error)
	// RetryFailedPayments re-attempts every FAILED payment whose
	// subscription is still retriable.
	RetryFailedPayments(ctx context.Context) (*dto.RetryResponse, error)
	// ReconcilePendingPayments resolves payments stuck in PENDING beyond
	// the grace period by probing the gateway for their actual status.
	ReconcilePendingPayments(ctx context.Context) (*dto.ReconcileResponse, error)
	// PurgeExpiredPayloads nulls raw gateway payloads older than the
	// configured retention window.
	PurgeExpiredPayloads(ctx context.Context) (*dto.CleanupResponse, error)
}

type billingService struct {
	ServiceParams
	idempotency *idempotency.Generator
}

// NewBillingService creates a new billing service
func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams: params,
		idempotency:   idempotency.NewGenerator(),
	}
}

// billOutcome is the per-subscription verdict of one billing pass
type billOutcome int

const (
	billOutcomeSkipped billOutcome = iota
	billOutcomeBilled
	billOutcomeCanceled
	billOutcomeFailed
	// billOutcomeAmbiguous means the gateway gave no verdict; the payment
	// stays PENDING for the reconciliation job.
	billOutcomeAmbiguous
)

func (s *billingService) ProcessBillingCycle(ctx context.Context) (*dto.BillingCycleResponse, error) {
	now := time.Now().UTC()
	resp := &dto.BillingCycleResponse{StartedAt: now}

	due, err := s.SubRepo.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	resp.Total = len(due)

	s.Logger.Infow("starting billing cycle",
		"due_subscriptions", len(due),
		"started_at", now,
	)

	for _, sub := range due {
		outcome, err := s.billSubscription(ctx, sub.ID, now)
		if err != nil {
			s.Logger.Errorw("billing subscription failed",
				"subscription_id", sub.ID,
				"error", err,
			)
			resp.Failed++
			continue
		}
		switch outcome {
		case billOutcomeBilled:
			resp.Processed++
		case billOutcomeCanceled:
			resp.Canceled++
		case billOutcomeFailed, billOutcomeAmbiguous:
			resp.Failed++
		case billOutcomeSkipped:
			resp.Total--
		}
	}

	s.Logger.Infow("billing cycle finished",
		"processed", resp.Processed,
		"failed", resp.Failed,
		"canceled", resp.Canceled,
		"total", resp.Total,
	)
	return resp, nil
}

// billSubscription processes one due subscription inside its own
// transaction. Declines and ambiguous outcomes are recorded and committed,
// not rolled back; only infrastructure errors roll the transaction back.
func (s *billingService) billSubscription(ctx context.Context, subscriptionID string, now time.Time) (billOutcome, error) {
	outcome := billOutcomeSkipped
	var events []*types.WebhookEvent

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}

		// Re-check under the row lock: a concurrent run may have already
		// billed or canceled this subscription.
		if sub.SubscriptionStatus != types.SubscriptionStatusActive || !sub.IsDue(now) {
			outcome = billOutcomeSkipped
			return nil
		}

		if sub.CancelAtPeriodEnd {
			canceledAt := now
			sub.SubscriptionStatus = types.SubscriptionStatusCanceled
			sub.CanceledAt = &canceledAt
			sub.NextBillingAt = nil
			sub.UpdatedAt = now
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			events = append(events, newWebhookEvent(types.WebhookEventSubscriptionCanceled, sub.UserID, sub))
			outcome = billOutcomeCanceled
			return nil
		}

		pl, err := s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}

		inv := &invoice.Invoice{
			ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			SubscriptionID:     sub.ID,
			UserID:             sub.UserID,
			Amount:             pl.PriceAmount,
			Currency:           pl.Currency,
			InvoiceStatus:      types.InvoiceStatusPending,
			BillingPeriodStart: lo.ToPtr(sub.CurrentPeriodStart),
			BillingPeriodEnd:   lo.ToPtr(sub.CurrentPeriodEnd),
			BaseModel:          types.GetDefaultBaseModel(ctx),
		}
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}

		// Zero-amount period: settle the invoice without touching the
		// gateway and roll the subscription forward.
		if pl.PriceAmount.IsZero() {
			inv.MarkPaid(now)
			if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
			sub.AdvancePeriod(pl.BillingPeriod)
			sub.UpdatedAt = now
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			outcome = billOutcomeBilled
			return nil
		}

		outcome, err = s.chargeInvoice(ctx, sub, pl, inv, now, &events)
		return err
	})
	if err != nil {
		return billOutcomeFailed, err
	}

	s.publishEvents(ctx, events)
	return outcome, nil
}

// chargeInvoice derives the day-scoped idempotency key for the invoice
// and charges it. The key is unique at the storage layer, so a replay of
// the same invoice on the same UTC day gets the already-recorded payment
// back instead of minting a second charge.
func (s *billingService) chargeInvoice(
	ctx context.Context,
	sub *subscription.Subscription,
	pl *plan.Plan,
	inv *invoice.Invoice,
	now time.Time,
	events *[]*types.WebhookEvent,
) (billOutcome, error) {
	key := s.idempotency.GenerateBillingKey(idempotency.ScopeBillingCycle, sub.ID, inv.ID, now)
	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      inv.ID,
		UserID:         sub.UserID,
		Provider:       s.Gateway.Name(),
		PaymentStatus:  types.PaymentStatusPending,
		Amount:         inv.Amount,
		Currency:       inv.Currency,
		IdempotencyKey: key,
		RawRequest:     marshalRawPayload(newChargeRequestPayload(inv, key, s.Gateway.Name())),
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	p, err := s.PaymentRepo.CreateOrGetByIdempotencyKey(ctx, p)
	if err != nil {
		return billOutcomeFailed, err
	}
	// A colliding key with a SUCCEEDED payment means this charge already
	// went through; replay the success effects instead of charging again.
	if p.PaymentStatus == types.PaymentStatusSucceeded {
		if err := s.applySuccessfulPayment(ctx, sub, pl, inv, p, derefOrEmpty(p.ProviderPaymentID), now, events); err != nil {
			return billOutcomeFailed, err
		}
		return billOutcomeBilled, nil
	}

	method := s.defaultPaymentMethod(ctx, sub.UserID)

	result, gwErr := s.chargeWithTimeout(ctx, p, method)
	switch {
	case gwErr == nil && result.Status == gateway.ChargeStatusSucceeded:
		if err := s.applySuccessfulPayment(ctx, sub, pl, inv, p, result.ProviderPaymentID, now, events); err != nil {
			return billOutcomeFailed, err
		}
		return billOutcomeBilled, nil

	case gwErr == nil && result.Status == gateway.ChargeStatusFailed:
		if err := s.applyFailedPayment(ctx, sub, inv, p, derefOrEmpty(result.ErrorCode), result, now, events); err != nil {
			return billOutcomeFailed, err
		}
		return billOutcomeFailed, nil

	case gwErr == nil || ierr.IsGatewayAmbiguous(gwErr):
		// No verdict: record what we know and leave the payment PENDING
		// for reconciliation. The state is committed.
		if result != nil && result.ProviderPaymentID != "" {
			p.ProviderPaymentID = lo.ToPtr(result.ProviderPaymentID)
		}
		p.RawResponse = marshalRawPayload(result)
		p.UpdatedAt = now
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return billOutcomeFailed, err
		}
		s.Logger.Warnw("gateway gave no verdict, payment left pending",
			"payment_id", p.ID,
			"subscription_id", sub.ID,
			"error", gwErr,
		)
		return billOutcomeAmbiguous, nil

	case ierr.IsGateway(gwErr):
		if err := s.applyFailedPayment(ctx, sub, inv, p, ierr.DisplayMessage(gwErr), nil, now, events); err != nil {
			return billOutcomeFailed, err
		}
		return billOutcomeFailed, nil

	default:
		// Infrastructure error before any gateway verdict
		p.PaymentStatus = types.PaymentStatusError
		p.UpdatedAt = now
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return billOutcomeFailed, err
		}
		s.Logger.Errorw("payment processing error",
			"payment_id", p.ID,
			"subscription_id", sub.ID,
			"error", gwErr,
		)
		return billOutcomeFailed, nil
	}
}

func (s *billingService) RetryFailedPayments(ctx context.Context) (*dto.RetryResponse, error) {
	now := time.Now().UTC()

	filter := types.NewNoLimitPaymentFilter()
	filter.PaymentStatus = lo.ToPtr(types.PaymentStatusFailed)
	failed, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.RetryResponse{Total: len(failed)}
	s.Logger.Infow("starting failed payment retry",
		"failed_payments", len(failed),
	)

	for _, p := range failed {
		retried, err := s.retryPayment(ctx, p.ID, now)
		if err != nil {
			s.Logger.Errorw("retrying payment failed",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}
		if retried {
			resp.Retried++
		}
	}

	s.Logger.Infow("failed payment retry finished",
		"retried", resp.Retried,
		"total", resp.Total,
	)
	return resp, nil
}

// retryPayment re-attempts one FAILED payment under the same idempotency
// key. Returns true only when the payment transitioned to SUCCEEDED.
func (s *billingService) retryPayment(ctx context.Context, paymentID string, now time.Time) (bool, error) {
	retried := false
	var events []*types.WebhookEvent

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != types.PaymentStatusFailed {
			return nil
		}

		inv, err := s.InvoiceRepo.Get(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		sub, err := s.SubRepo.GetForUpdate(ctx, inv.SubscriptionID)
		if err != nil {
			return err
		}
		// Never charge a canceled or expired subscription
		if sub.SubscriptionStatus.IsTerminal() {
			return nil
		}
		pl, err := s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}

		method := s.defaultPaymentMethod(ctx, sub.UserID)

		p.RetryCount++
		result, gwErr := s.chargeWithTimeout(ctx, p, method)
		switch {
		case gwErr == nil && result.Status == gateway.ChargeStatusSucceeded:
			if err := s.applySuccessfulPayment(ctx, sub, pl, inv, p, result.ProviderPaymentID, now, &events); err != nil {
				return err
			}
			retried = true

		case gwErr == nil && result.Status == gateway.ChargeStatusFailed:
			p.MarkFailed(derefOrEmpty(result.ErrorCode), now)
			p.RawResponse = marshalRawPayload(result)
			p.NextRetryAt = lo.ToPtr(now.Add(24 * time.Hour))
			if err := s.PaymentRepo.Update(ctx, p); err != nil {
				return err
			}

		case gwErr == nil || ierr.IsGatewayAmbiguous(gwErr):
			// Ambiguous again: hand the payment to the reconciler
			p.PaymentStatus = types.PaymentStatusPending
			if result != nil && result.ProviderPaymentID != "" {
				p.ProviderPaymentID = lo.ToPtr(result.ProviderPaymentID)
			}
			p.UpdatedAt = now
			if err := s.PaymentRepo.Update(ctx, p); err != nil {
				return err
			}

		default:
			p.MarkFailed(ierr.DisplayMessage(gwErr), now)
			p.NextRetryAt = lo.ToPtr(now.Add(24 * time.Hour))
			if err := s.PaymentRepo.Update(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.publishEvents(ctx, events)
	return retried, nil
}

func (s *billingService) ReconcilePendingPayments(ctx context.Context) (*dto.ReconcileResponse, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.Config.Billing.PendingGracePeriod)

	filter := types.NewNoLimitPaymentFilter()
	filter.PaymentStatus = lo.ToPtr(types.PaymentStatusPending)
	filter.PendingSince = &cutoff
	stale, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ReconcileResponse{Examined: len(stale)}
	for _, p := range stale {
		resolved, err := s.reconcilePayment(ctx, p.ID, now)
		if err != nil {
			s.Logger.Errorw("reconciling payment failed",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}
		if resolved {
			resp.Resolved++
		}
	}

	s.Logger.Infow("pending payment reconciliation finished",
		"examined", resp.Examined,
		"resolved", resp.Resolved,
	)
	return resp, nil
}

// reconcilePayment probes the gateway for the actual status of a stale
// PENDING payment. A payment is never re-charged here; only the recorded
// state is aligned with the provider's verdict.
func (s *billingService) reconcilePayment(ctx context.Context, paymentID string, now time.Time) (bool, error) {
	resolved := false
	var events []*types.WebhookEvent

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != types.PaymentStatusPending {
			return nil
		}

		// Without a provider reference the charge never reached the
		// provider; fail it so the retrier can attempt it again.
		if p.ProviderPaymentID == nil || *p.ProviderPaymentID == "" {
			p.MarkFailed("no_provider_reference", now)
			if err := s.PaymentRepo.Update(ctx, p); err != nil {
				return err
			}
			resolved = true
			return nil
		}

		status, err := s.Gateway.GetPaymentStatus(ctx, *p.ProviderPaymentID)
		if err != nil {
			return err
		}

		inv, err := s.InvoiceRepo.Get(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		sub, err := s.SubRepo.GetForUpdate(ctx, inv.SubscriptionID)
		if err != nil {
			return err
		}

		switch status.Status {
		case gateway.ChargeStatusSucceeded:
			pl, err := s.PlanRepo.Get(ctx, sub.PlanID)
			if err != nil {
				return err
			}
			if err := s.applySuccessfulPayment(ctx, sub, pl, inv, p, *p.ProviderPaymentID, now, &events); err != nil {
				return err
			}
			resolved = true
		case gateway.ChargeStatusFailed:
			if err := s.applyFailedPayment(ctx, sub, inv, p, "reconciled_failed", nil, now, &events); err != nil {
				return err
			}
			resolved = true
		default:
			// Still no verdict; leave it for the next pass
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.publishEvents(ctx, events)
	return resolved, nil
}

func (s *billingService) PurgeExpiredPayloads(ctx context.Context) (*dto.CleanupResponse, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.Config.Billing.PayloadRetentionDays)

	filter := types.NewNoLimitPaymentFilter()
	filter.CreatedBefore = &cutoff
	purged, err := s.PaymentRepo.PurgeRawPayloads(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("purged raw gateway payloads",
		"purged", purged,
		"cutoff", cutoff,
	)
	return &dto.CleanupResponse{Purged: purged}, nil
}

// chargeWithTimeout bounds the gateway call so a hung provider cannot
// stall a billing run. A deadline hit surfaces as an ambiguous outcome.
func (s *billingService) chargeWithTimeout(ctx context.Context, p *payment.Payment, method *paymentmethod.PaymentMethodRef) (*gateway.ChargeResult, error) {
	gwCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	return s.Gateway.CreatePayment(gwCtx, p, method)
}

// defaultPaymentMethod loads the user's default stored method; a missing
// one is not an error, the gateway then uses its provider-side default.
func (s *billingService) defaultPaymentMethod(ctx context.Context, userID string) *paymentmethod.PaymentMethodRef {
	method, err := s.PaymentMethodRepo.GetDefaultForUser(ctx, userID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			s.Logger.Warnw("loading default payment method failed",
				"user_id", userID,
				"error", err,
			)
		}
		return nil
	}
	return method
}

// applySuccessfulPayment records the full effect of a successful charge:
// payment SUCCEEDED, invoice PAID, subscription rolled into its next
// period and reactivated (terminal subscriptions keep their state),
// a CHARGE ledger entry, and the success webhook.
func (s *billingService) applySuccessfulPayment(
	ctx context.Context,
	sub *subscription.Subscription,
	pl *plan.Plan,
	inv *invoice.Invoice,
	p *payment.Payment,
	providerPaymentID string,
	now time.Time,
	events *[]*types.WebhookEvent,
) error {
	if p.PaymentStatus != types.PaymentStatusSucceeded {
		p.MarkSucceeded(providerPaymentID, now)
		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return err
		}
	}

	if inv.InvoiceStatus != types.InvoiceStatusPaid {
		inv.MarkPaid(now)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
	}

	// CANCELED is terminal: a late success still settles the payment and
	// invoice but never revives the subscription or moves its period.
	if !sub.SubscriptionStatus.IsTerminal() {
		sub.AdvancePeriod(pl.BillingPeriod)
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.UpdatedAt = now
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
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
}

// applyFailedPayment records the full effect of a declined charge:
// payment FAILED, invoice FAILED, subscription PAST_DUE, and the failure
// webhook.
func (s *billingService) applyFailedPayment(
	ctx context.Context,
	sub *subscription.Subscription,
	inv *invoice.Invoice,
	p *payment.Payment,
	errorCode string,
	result *gateway.ChargeResult,
	now time.Time,
	events *[]*types.WebhookEvent,
) error {
	p.MarkFailed(errorCode, now)
	if result != nil {
		if result.ProviderPaymentID != "" {
			p.ProviderPaymentID = lo.ToPtr(result.ProviderPaymentID)
		}
		p.RawResponse = marshalRawPayload(result)
	}
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return err
	}

	inv.InvoiceStatus = types.InvoiceStatusFailed
	inv.UpdatedAt = now
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	if !sub.SubscriptionStatus.IsTerminal() {
		sub.SubscriptionStatus = types.SubscriptionStatusPastDue
		sub.UpdatedAt = now
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	*events = append(*events, newWebhookEvent(types.WebhookEventPaymentFailed, sub.UserID, p))
	return nil
}

// publishEvents fires the collected webhook events after the surrounding
// transaction committed. Delivery failures are logged, never surfaced.
func (s *billingService) publishEvents(ctx context.Context, events []*types.WebhookEvent) {
	for _, event := range events {
		if err := s.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
			s.Logger.Errorw("publishing webhook event failed",
				"event_name", event.EventName,
				"user_id", event.UserID,
				"error", err,
			)
		}
	}
}

func newWebhookEvent(name, userID string, payload any) *types.WebhookEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: name,
		UserID:    userID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
}

// chargeRequestPayload is the diagnostic snapshot of an outbound charge,
// kept on the payment row until the retention job purges it
type chargeRequestPayload struct {
	InvoiceID      string `json:"invoice_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	Provider       string `json:"provider"`
}

func newChargeRequestPayload(inv *invoice.Invoice, key, provider string) chargeRequestPayload {
	return chargeRequestPayload{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount.String(),
		Currency:       inv.Currency,
		IdempotencyKey: key,
		Provider:       provider,
	}
}

func marshalRawPayload(v any) *string {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return lo.ToPtr(string(raw))
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
