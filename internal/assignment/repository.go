package assignment

import "context"

type AgentRepository interface {
	Get(ctx context.Context, agentID string) (*AgentAssignment, error)
	List(ctx context.Context) ([]*AgentAssignment, error)
	// Upsert creates the record on first write and is a compare-and-swap
	// on Version thereafter.
	Upsert(ctx context.Context, a *AgentAssignment) error
}

type CandidateFilter struct {
	CandidateID string
	HRID        string
	AgentID     string
	JobID       string
	Status      CandidateStatus
}

type CandidateRepository interface {
	Create(ctx context.Context, c *CandidateAssignment) error
	Get(ctx context.Context, id string) (*CandidateAssignment, error)
	List(ctx context.Context, filter CandidateFilter, limit, offset int) ([]*CandidateAssignment, int, error)
	// FindActive returns the active assignment for the tuple, or nil.
	FindActive(ctx context.Context, candidateID, hrID, jobID string) (*CandidateAssignment, error)
	// Update is a compare-and-swap on Version.
	Update(ctx context.Context, c *CandidateAssignment) error
}
