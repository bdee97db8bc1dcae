package job

import "context"

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, companyID string, status Status) ([]*Job, error)
	// Update is a compare-and-swap on Version.
	Update(ctx context.Context, j *Job) error
}
