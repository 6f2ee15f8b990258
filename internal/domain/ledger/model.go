package ledger

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// TransactionHistoryEntry is an append-only ledger row. Entries are never
// mutated or deleted after creation; subscription and payment references
// are nullable so either side may be removed without breaking the ledger.
type TransactionHistoryEntry struct {
	// Unique identifier for this entry
	ID string `db:"id" json:"id"`
	// Owning user
	UserID string `db:"user_id" json:"user_id"`
	// Subscription this entry relates to (optional)
	SubscriptionID *string `db:"subscription_id" json:"subscription_id,omitempty"`
	// Payment that originated this entry (optional)
	PaymentID *string `db:"payment_id" json:"payment_id,omitempty"`
	// Kind of the entry
	Type types.TransactionType `db:"type" json:"type"`
	// Amount of the entry
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// Free-form description (optional)
	Description *string `db:"description" json:"description,omitempty"`
	// When the entry was written
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Validate validates the entry
func (e *TransactionHistoryEntry) Validate() error {
	if e.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User id is required").
			Mark(ierr.ErrValidation)
	}
	if err := e.Type.Validate(); err != nil {
		return err
	}
	if e.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the ledger
func (e *TransactionHistoryEntry) TableName() string {
	return "transaction_history"
}
