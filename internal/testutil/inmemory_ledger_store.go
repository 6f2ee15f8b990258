package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/domain/ledger"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// InMemoryLedgerStore implements ledger.Repository
type InMemoryLedgerStore struct {
	*InMemoryStore[*ledger.TransactionHistoryEntry]
}

// NewInMemoryLedgerStore creates a new in-memory ledger store
func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		InMemoryStore: NewInMemoryStore[*ledger.TransactionHistoryEntry](),
	}
}

// ledgerFilterFn implements filtering logic for ledger entries
func ledgerFilterFn(_ context.Context, e *ledger.TransactionHistoryEntry, filter interface{}) bool {
	if e == nil {
		return false
	}
	f, ok := filter.(*types.TransactionFilter)
	if !ok || f == nil {
		return true
	}
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.SubscriptionID != nil {
		if e.SubscriptionID == nil || *e.SubscriptionID != *f.SubscriptionID {
			return false
		}
	}
	if f.PaymentID != nil {
		if e.PaymentID == nil || *e.PaymentID != *f.PaymentID {
			return false
		}
	}
	if f.TransactionType != nil && e.Type != *f.TransactionType {
		return false
	}
	return true
}

// ledgerSortFn sorts entries newest first
func ledgerSortFn(i, j *ledger.TransactionHistoryEntry) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryLedgerStore) Create(ctx context.Context, entry *ledger.TransactionHistoryEntry) error {
	if entry == nil {
		return ierr.NewError("ledger entry cannot be nil").
			WithHint("Ledger entry cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, entry.ID, entry)
}

func (s *InMemoryLedgerStore) Get(ctx context.Context, id string) (*ledger.TransactionHistoryEntry, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryLedgerStore) List(ctx context.Context, filter *types.TransactionFilter) ([]*ledger.TransactionHistoryEntry, error) {
	return s.InMemoryStore.List(ctx, filter, ledgerFilterFn, ledgerSortFn)
}

func (s *InMemoryLedgerStore) Count(ctx context.Context, filter *types.TransactionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, ledgerFilterFn)
}
