package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talentpipe/talentpipe/internal/assignment"
	"github.com/talentpipe/talentpipe/pkg/cerr"
	"github.com/talentpipe/talentpipe/pkg/storage"
)

const (
	agentsPrefix     = "assignments/agents"
	candidatesPrefix = "assignments/candidates"
)

type AgentYAMLRepository struct {
	storage storage.Storage
	locks   *storage.KeyLock
}

func NewAgentYAMLRepository(s storage.Storage) *AgentYAMLRepository {
	return &AgentYAMLRepository{
		storage: s,
		locks:   storage.NewKeyLock(),
	}
}

func agentPath(agentID string) string {
	return fmt.Sprintf("%s/%s.yaml", agentsPrefix, agentID)
}

func (r *AgentYAMLRepository) Get(ctx context.Context, agentID string) (*assignment.AgentAssignment, error) {
	data, err := r.storage.Read(ctx, agentPath(agentID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("agent assignment", err)
	}
	var a assignment.AgentAssignment
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal agent assignment: %w", err))
	}
	return &a, nil
}

func (r *AgentYAMLRepository) List(ctx context.Context) ([]*assignment.AgentAssignment, error) {
	paths, err := r.storage.List(ctx, agentsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("agent assignments", err)
	}
	sort.Strings(paths)

	var all []*assignment.AgentAssignment
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var a assignment.AgentAssignment
		if err := yaml.Unmarshal(data, &a); err != nil {
			continue
		}
		all = append(all, &a)
	}
	return all, nil
}

func (r *AgentYAMLRepository) Upsert(ctx context.Context, a *assignment.AgentAssignment) error {
	unlock := r.locks.Lock(a.AgentID)
	defer unlock()

	exists, err := r.storage.Exists(ctx, agentPath(a.AgentID))
	if err != nil {
		return cerr.WrapStorageWriteError("agent assignment", err)
	}
	if exists {
		current, err := r.Get(ctx, a.AgentID)
		if err != nil {
			return err
		}
		if current.Version != a.Version {
			return cerr.NewFieldError(cerr.ConcurrentModification, "agent assignment was modified concurrently", "version", current.Version)
		}
		a.Version++
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal agent assignment: %w", err))
	}
	if err := r.storage.Write(ctx, agentPath(a.AgentID), data); err != nil {
		if exists {
			a.Version--
		}
		return cerr.WrapStorageWriteError("agent assignment", err)
	}
	return nil
}

type CandidateYAMLRepository struct {
	storage storage.Storage
	locks   *storage.KeyLock
}

func NewCandidateYAMLRepository(s storage.Storage) *CandidateYAMLRepository {
	return &CandidateYAMLRepository{
		storage: s,
		locks:   storage.NewKeyLock(),
	}
}

func candidatePath(id string) string {
	return fmt.Sprintf("%s/%s.yaml", candidatesPrefix, id)
}

// tupleKey serializes creates for the same (candidate, HR, job) so the
// active-uniqueness check cannot race with itself.
func tupleKey(candidateID, hrID, jobID string) string {
	return fmt.Sprintf("%s/%s/%s", candidateID, hrID, jobID)
}

func (r *CandidateYAMLRepository) Create(ctx context.Context, c *assignment.CandidateAssignment) error {
	unlock := r.locks.Lock(tupleKey(c.CandidateID, c.HRID, c.JobID))
	defer unlock()

	active, err := r.FindActive(ctx, c.CandidateID, c.HRID, c.JobID)
	if err != nil {
		return err
	}
	if active != nil {
		return cerr.NewFieldError(cerr.Conflict, "candidate already has an active assignment for this HR and job", "assignment_id", active.ID)
	}
	return r.write(ctx, c)
}

func (r *CandidateYAMLRepository) Get(ctx context.Context, id string) (*assignment.CandidateAssignment, error) {
	data, err := r.storage.Read(ctx, candidatePath(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("candidate assignment", err)
	}
	var c assignment.CandidateAssignment
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to unmarshal candidate assignment: %w", err))
	}
	return &c, nil
}

func (r *CandidateYAMLRepository) List(ctx context.Context, filter assignment.CandidateFilter, limit, offset int) ([]*assignment.CandidateAssignment, int, error) {
	all, err := r.readAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	var filtered []*assignment.CandidateAssignment
	for _, c := range all {
		if !matches(c, filter) {
			continue
		}
		filtered = append(filtered, c)
	}

	total := len(filtered)
	if offset >= total {
		return nil, total, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, total, nil
}

func matches(c *assignment.CandidateAssignment, f assignment.CandidateFilter) bool {
	if f.CandidateID != "" && c.CandidateID != f.CandidateID {
		return false
	}
	if f.HRID != "" && c.HRID != f.HRID {
		return false
	}
	if f.AgentID != "" && c.AgentID != f.AgentID {
		return false
	}
	if f.JobID != "" && c.JobID != f.JobID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

func (r *CandidateYAMLRepository) FindActive(ctx context.Context, candidateID, hrID, jobID string) (*assignment.CandidateAssignment, error) {
	all, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Status != assignment.StatusActive {
			continue
		}
		if c.CandidateID == candidateID && c.HRID == hrID && c.JobID == jobID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *CandidateYAMLRepository) Update(ctx context.Context, c *assignment.CandidateAssignment) error {
	unlock := r.locks.Lock(c.ID)
	defer unlock()

	current, err := r.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if current.Version != c.Version {
		return cerr.NewFieldError(cerr.ConcurrentModification, "candidate assignment was modified concurrently", "version", current.Version)
	}
	c.Version++
	if err := r.write(ctx, c); err != nil {
		c.Version--
		return err
	}
	return nil
}

func (r *CandidateYAMLRepository) readAll(ctx context.Context) ([]*assignment.CandidateAssignment, error) {
	paths, err := r.storage.List(ctx, candidatesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("candidate assignments", err)
	}
	sort.Strings(paths)

	var all []*assignment.CandidateAssignment
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var c assignment.CandidateAssignment
		if err := yaml.Unmarshal(data, &c); err != nil {
			continue
		}
		all = append(all, &c)
	}
	return all, nil
}

func (r *CandidateYAMLRepository) write(ctx context.Context, c *assignment.CandidateAssignment) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal candidate assignment: %w", err))
	}
	if err := r.storage.Write(ctx, candidatePath(c.ID), data); err != nil {
		return cerr.WrapStorageWriteError("candidate assignment", err)
	}
	return nil
}
