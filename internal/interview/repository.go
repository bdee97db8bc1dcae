package interview

import "context"

type Repository interface {
	Create(ctx context.Context, i *Interview) error
	Get(ctx context.Context, id string) (*Interview, error)
	List(ctx context.Context, applicationID string, status Status, limit, offset int) ([]*Interview, int, error)
	// Update is a compare-and-swap on Version.
	Update(ctx context.Context, i *Interview) error
}
