package task

import (
	"context"
	"time"
)

// Filter narrows List results; zero values match everything.
type Filter struct {
	AssigneeID string
	Status     Status
	Priority   Priority
	JobID      string
	DueBefore  *time.Time
}

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Task, int, error)
	// Update is a compare-and-swap on Version.
	Update(ctx context.Context, t *Task) error
}
