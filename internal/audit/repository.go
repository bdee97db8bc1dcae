package audit

import (
	"context"
	"time"
)

// Repository persists audit entries. The store is append-only from the
// application's point of view: Delete exists solely for the retention sweep.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, entityType, entityID string, limit, offset int) ([]*Entry, int, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Entry, error)
	Delete(ctx context.Context, id string) error
}
