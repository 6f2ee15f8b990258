package ledger

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// Repository defines the interface for the append-only transaction ledger.
// There are deliberately no update or delete operations.
type Repository interface {
	Create(ctx context.Context, entry *TransactionHistoryEntry) error
	Get(ctx context.Context, id string) (*TransactionHistoryEntry, error)
	List(ctx context.Context, filter *types.TransactionFilter) ([]*TransactionHistoryEntry, error)
	Count(ctx context.Context, filter *types.TransactionFilter) (int, error)
}
