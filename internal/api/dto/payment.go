package dto

import (
	"github.com/billforge/billforge/internal/domain/ledger"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/paymentmethod"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/shopspring/decimal"
)

// RefundPaymentRequest is the payload for refunding a payment.
// A nil amount refunds the full original amount.
type RefundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// Validate validates the request
func (r *RefundPaymentRequest) Validate() error {
	if r.Amount != nil && !r.Amount.IsPositive() {
		return ierr.NewError("invalid refund amount").
			WithHint("Refund amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SavePaymentMethodRequest is the payload for registering a payment method
type SavePaymentMethodRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	PaymentToken string `json:"payment_token" binding:"required"`
	SetDefault   bool   `json:"set_default"`
}

// Validate validates the request
func (r *SavePaymentMethodRequest) Validate() error {
	if r.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if r.PaymentToken == "" {
		return ierr.NewError("payment_token is required").
			WithHint("Payment token is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentResponse is the read projection of a payment
type PaymentResponse struct {
	*payment.Payment
}

// NewPaymentResponse builds a response from a domain payment
func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{Payment: p}
}

// ListPaymentsResponse is the paginated projection of payments
type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
	Total int                `json:"total"`
}

// RefundResponse reports a completed refund
type RefundResponse struct {
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// PaymentMethodResponse is the read projection of a payment method reference
type PaymentMethodResponse struct {
	*paymentmethod.PaymentMethodRef
}

// NewPaymentMethodResponse builds a response from a domain payment method reference
func NewPaymentMethodResponse(ref *paymentmethod.PaymentMethodRef) *PaymentMethodResponse {
	return &PaymentMethodResponse{PaymentMethodRef: ref}
}

// TransactionResponse is the read projection of a ledger entry
type TransactionResponse struct {
	*ledger.TransactionHistoryEntry
}

// ListTransactionsResponse is the paginated projection of ledger entries
type ListTransactionsResponse struct {
	Items []*TransactionResponse `json:"items"`
	Total int                    `json:"total"`
}
