package invoice

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the monetary record of one billing attempt. Exactly one
// invoice is created per billing attempt; a PAID invoice is immutable.
type Invoice struct {
	// Unique identifier for this invoice
	ID string `db:"id" json:"id"`
	// Subscription this invoice bills
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	// Owning user
	UserID string `db:"user_id" json:"user_id"`
	// Amount due
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// Current state of the invoice
	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	// Bounds of the billing period this invoice covers (optional)
	BillingPeriodStart *time.Time `db:"billing_period_start" json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *time.Time `db:"billing_period_end" json:"billing_period_end,omitempty"`
	// When the invoice was paid (optional)
	PaidAt *time.Time `db:"paid_at" json:"paid_at,omitempty"`

	types.BaseModel
}

// Validate validates the invoice
func (i *Invoice) Validate() error {
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if i.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if i.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if i.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	return i.InvoiceStatus.Validate()
}

// MarkPaid transitions the invoice to PAID and stamps the payment time
func (i *Invoice) MarkPaid(now time.Time) {
	i.InvoiceStatus = types.InvoiceStatusPaid
	paidAt := now
	i.PaidAt = &paidAt
	i.UpdatedAt = now
}

// TableName returns the table name for the invoice
func (i *Invoice) TableName() string {
	return "invoices"
}
