package payment

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Payment represents one gateway charge attempt tied to an invoice.
// The idempotency key is unique at the storage layer: creating a second
// payment with a colliding key returns the existing row to the caller,
// never a duplicate-key fault.
type Payment struct {
	// Unique identifier for this payment
	ID string `db:"id" json:"id"`
	// Invoice this payment settles; nullable back-reference so purging an
	// invoice does not break the ledger
	InvoiceID string `db:"invoice_id" json:"invoice_id"`
	// Owning user
	UserID string `db:"user_id" json:"user_id"`
	// Gateway provider name used to process this payment
	Provider string `db:"provider" json:"provider"`
	// Correlation id assigned by the gateway (optional)
	ProviderPaymentID *string `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	// Current state of this payment
	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`
	// Amount charged
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// Globally-unique key preventing duplicate charge attempts
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`
	// Gateway error code of the last attempt (optional)
	ErrorCode *string `db:"error_code" json:"error_code,omitempty"`
	// Raw gateway request/response payloads, kept for diagnostics and
	// purged after the retention window (optional)
	RawRequest  *string `db:"raw_request" json:"raw_request,omitempty"`
	RawResponse *string `db:"raw_response" json:"raw_response,omitempty"`
	// Number of times this payment has been retried
	RetryCount int `db:"retry_count" json:"retry_count"`
	// When the next retry is expected (optional)
	NextRetryAt *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	// When this payment succeeded or failed (optional)
	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failed_at,omitempty"`

	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("Invoice id is required").
			Mark(ierr.ErrValidation)
	}
	if p.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if p.IdempotencyKey == "" {
		return ierr.NewError("idempotency key is required").
			WithHint("Idempotency key is required").
			Mark(ierr.ErrValidation)
	}
	return p.PaymentStatus.Validate()
}

// MarkSucceeded records a definitive success verdict from the gateway
func (p *Payment) MarkSucceeded(providerPaymentID string, now time.Time) {
	p.PaymentStatus = types.PaymentStatusSucceeded
	if providerPaymentID != "" {
		p.ProviderPaymentID = &providerPaymentID
	}
	succeededAt := now
	p.SucceededAt = &succeededAt
	p.UpdatedAt = now
}

// MarkFailed records a definitive decline verdict from the gateway
func (p *Payment) MarkFailed(errorCode string, now time.Time) {
	p.PaymentStatus = types.PaymentStatusFailed
	if errorCode != "" {
		p.ErrorCode = &errorCode
	}
	failedAt := now
	p.FailedAt = &failedAt
	p.UpdatedAt = now
}

// TableName returns the table name for the payment
func (p *Payment) TableName() string {
	return "payments"
}
