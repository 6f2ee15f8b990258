package gateway

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	"github.com/shopspring/decimal"
)

// ChargeStatus is the verdict a gateway returns for an operation
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "SUCCEEDED"
	ChargeStatusFailed    ChargeStatus = "FAILED"
	// ChargeStatusPending is the ambiguous outcome: no definitive verdict
	// yet. Callers must not record it as SUCCEEDED or FAILED; the payment
	// stays PENDING until reconciliation resolves it.
	ChargeStatusPending ChargeStatus = "PENDING"
)

func (s ChargeStatus) String() string {
	return string(s)
}

// ChargeResult is the outcome of a charge attempt
type ChargeResult struct {
	ProviderPaymentID string       `json:"provider_payment_id"`
	Status            ChargeStatus `json:"status"`
	ErrorCode         *string      `json:"error_code,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// RefundResult is the outcome of a refund
type RefundResult struct {
	ProviderRefundID string       `json:"provider_refund_id"`
	Status           ChargeStatus `json:"status"`
}

// StatusResult is the outcome of a reconciliation probe
type StatusResult struct {
	Status ChargeStatus `json:"status"`
}

// SavedPaymentMethod is the outcome of registering a payment method
type SavedPaymentMethod struct {
	ProviderPaymentMethodID string `json:"provider_payment_method_id"`
}

// Gateway is the capability contract every payment provider implements.
// Implementations are injected into services at construction; there is no
// global gateway lookup.
//
// All operations may fail with a terminal error (marked ErrGateway) or an
// ambiguous one (marked ErrGatewayAmbiguous, e.g. a timeout); callers must
// treat the two differently. CreatePayment must be safe to call with a
// payment that already carries a provider payment id; idempotent retry at
// the provider level is the gateway's own responsibility.
type Gateway interface {
	// Name returns the provider name, recorded on every payment
	Name() string
	// CreatePayment attempts to charge the payment using the given stored
	// method reference; a nil method uses the provider-side default.
	CreatePayment(ctx context.Context, p *payment.Payment, method *paymentmethod.PaymentMethodRef) (*ChargeResult, error)
	// RefundPayment refunds part or all of a settled payment. The amount
	// bound (refund <= original) is enforced by the caller; the gateway
	// trusts its input.
	RefundPayment(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string) (*RefundResult, error)
	// GetPaymentStatus probes the provider for the current status of a
	// charge; used for out-of-band reconciliation.
	GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error)
	// SavePaymentMethod registers a tokenized payment credential and
	// returns the provider-side reference.
	SavePaymentMethod(ctx context.Context, userID string, paymentToken string) (*SavedPaymentMethod, error)
}
