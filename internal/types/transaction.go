package types

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// TransactionType is the kind of a transaction history entry
type TransactionType string

const (
	TransactionTypeCharge     TransactionType = "CHARGE"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

func (t TransactionType) String() string {
	return string(t)
}

func (t TransactionType) Validate() error {
	allowed := []TransactionType{
		TransactionTypeCharge,
		TransactionTypeRefund,
		TransactionTypeAdjustment,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid transaction type").
			WithHint("Invalid transaction type").
			WithReportableDetails(map[string]any{
				"type":           t,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TransactionFilter represents the filter for listing transaction history entries
type TransactionFilter struct {
	*QueryFilter

	UserID          *string          `form:"user_id"`
	SubscriptionID  *string          `form:"subscription_id"`
	PaymentID       *string          `form:"payment_id"`
	TransactionType *TransactionType `form:"transaction_type"`
}

// NewNoLimitTransactionFilter creates a new transaction filter with no limit
func NewNoLimitTransactionFilter() *TransactionFilter {
	return &TransactionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the transaction filter
func (f *TransactionFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.TransactionType != nil {
		return f.TransactionType.Validate()
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *TransactionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *TransactionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// IsUnlimited returns true if the filter has no limit
func (f *TransactionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
