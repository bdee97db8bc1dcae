package application

import "context"

type Repository interface {
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, id string) (*Application, error)
	FindByCandidateAndJob(ctx context.Context, candidateID, jobID string) (*Application, error)
	List(ctx context.Context, candidateID, jobID string, stage Stage, limit, offset int) ([]*Application, int, error)
	// Update is a compare-and-swap on Version: it fails with
	// ConcurrentModification when the stored version differs from a.Version,
	// and increments the version on success.
	Update(ctx context.Context, a *Application) error
}
