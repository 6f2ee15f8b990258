package types

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/samber/lo"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusNew       PaymentStatus = "NEW"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
	// PaymentStatusError marks a payment whose processing raised an
	// infrastructure error before the gateway returned a verdict.
	PaymentStatusError PaymentStatus = "ERROR"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusNew,
		PaymentStatusPending,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCanceled,
		PaymentStatusError,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Invalid payment status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsResolved returns true once the gateway has produced a definitive verdict
func (s PaymentStatus) IsResolved() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

// PaymentFilter represents the filter for listing payments
type PaymentFilter struct {
	*QueryFilter

	PaymentIDs    []string       `form:"payment_ids"`
	InvoiceID     *string        `form:"invoice_id"`
	UserID        *string        `form:"user_id"`
	PaymentStatus *PaymentStatus `form:"payment_status"`
	Provider      *string        `form:"provider"`
	// PendingSince selects payments that have been PENDING since before the
	// given time; used by the reconciliation job.
	PendingSince *time.Time `form:"pending_since"`
	// CreatedBefore selects payments created before the given time; used by
	// the payload retention job.
	CreatedBefore *time.Time `form:"created_before"`
}

// NewNoLimitPaymentFilter creates a new payment filter with no limit
func NewNoLimitPaymentFilter() *PaymentFilter {
	return &PaymentFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the payment filter
func (f *PaymentFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.PaymentStatus != nil {
		return f.PaymentStatus.Validate()
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *PaymentFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *PaymentFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// IsUnlimited returns true if the filter has no limit
func (f *PaymentFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
