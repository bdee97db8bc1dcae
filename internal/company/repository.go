package company

import "context"

type Repository interface {
	Create(ctx context.Context, c *Company) error
	Get(ctx context.Context, id string) (*Company, error)
	// Update is a compare-and-swap on Version.
	Update(ctx context.Context, c *Company) error
}
