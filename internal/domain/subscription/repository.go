package subscription

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetForUpdate re-reads the subscription under a row-level lock; the
	// lock is held until the surrounding transaction ends. Callers must
	// re-check the status after acquiring the lock.
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	// ListDue returns ACTIVE subscriptions whose current period has ended
	// at or before now, in creation order.
	ListDue(ctx context.Context, now time.Time) ([]*Subscription, error)
}
