package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

const (
	AgentEntityType     = "agent_assignment"
	CandidateEntityType = "candidate_assignment"
)

type Service struct {
	agents       AgentRepository
	candidates   CandidateRepository
	auditor      *audit.Writer
	bus          *eventbus.Bus
	storeTimeout time.Duration
}

func NewService(agents AgentRepository, candidates CandidateRepository, auditor *audit.Writer, bus *eventbus.Bus, storeTimeout time.Duration) *Service {
	return &Service{
		agents:       agents,
		candidates:   candidates,
		auditor:      auditor,
		bus:          bus,
		storeTimeout: storeTimeout,
	}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// AssignAgent upserts the single assignment record for an agent. Existing
// members are kept; the given ids are merged in. Removal is explicit via the
// remove lists, never implied by omission.
func (s *Service) AssignAgent(ctx context.Context, agentID string, hrIDs, candidateIDs, removeHRIDs, removeCandidateIDs []string, actor identity.Actor) (*AgentAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if agentID == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "agent id is required", "agent_id", agentID)
	}

	a, err := s.agents.Get(ctx, agentID)
	var before map[string]any
	switch {
	case err == nil:
		before = audit.Snapshot(a)
	case cerr.IsCode(err, cerr.NotFound):
		now := time.Now()
		a = &AgentAssignment{AgentID: agentID, CreatedAt: now}
	default:
		return nil, err
	}

	a.HRIDs = mergeIDs(a.HRIDs, hrIDs, removeHRIDs)
	a.CandidateIDs = mergeIDs(a.CandidateIDs, candidateIDs, removeCandidateIDs)
	a.UpdatedAt = time.Now()

	rec := audit.Record{
		Actor:      actor,
		Action:     audit.ActionAgentAssign,
		EntityType: AgentEntityType,
		EntityID:   a.AgentID,
		Before:     before,
		After:      a,
		Success:    true,
		Duration:   time.Since(start),
		Context:    audit.RequestContextFrom(ctx),
	}
	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.agents.Upsert(ctx, a); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventAgentAssignmentUpdated, AgentEntityType, a.AgentID, actor.ID, map[string]string{
		"hr_count":        fmt.Sprintf("%d", len(a.HRIDs)),
		"candidate_count": fmt.Sprintf("%d", len(a.CandidateIDs)),
	})
	return a, nil
}

type RouteRequest struct {
	CandidateID string
	TargetHRID  string
	AgentID     string
	JobID       string
	Priority    Priority
	DueDate     *time.Time
}

// RouteCandidate creates an active candidate assignment. The routing agent
// must own the candidate per its agent assignment; ownership is a presence
// check here, full authorization lives with the caller.
func (s *Service) RouteCandidate(ctx context.Context, req RouteRequest, actor identity.Actor) (*CandidateAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if req.CandidateID == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "candidate id is required", "candidate_id", req.CandidateID)
	}
	if req.TargetHRID == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "target HR id is required", "target_hr_id", req.TargetHRID)
	}

	if req.AgentID != "" {
		agent, err := s.agents.Get(ctx, req.AgentID)
		if err != nil {
			return nil, err
		}
		if !agent.OwnsCandidate(req.CandidateID) {
			return nil, cerr.NewFieldError(cerr.PermissionDenied, "agent does not own this candidate", "candidate_id", req.CandidateID)
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	now := time.Now()
	c := &CandidateAssignment{
		ID:          ulid.Make().String(),
		CandidateID: req.CandidateID,
		HRID:        req.TargetHRID,
		AgentID:     req.AgentID,
		JobID:       req.JobID,
		Status:      StatusActive,
		Priority:    priority,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec := audit.Record{
		Actor:      actor,
		Action:     audit.ActionCandidateRoute,
		EntityType: CandidateEntityType,
		EntityID:   c.ID,
		After:      c,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}
	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.candidates.Create(ctx, c); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventCandidateRouted, CandidateEntityType, c.ID, actor.ID, map[string]string{
		"candidate_id": c.CandidateID,
		"hr_id":        c.HRID,
		"job_id":       c.JobID,
	})
	return c, nil
}

// MarkCompleted closes an active assignment as completed.
func (s *Service) MarkCompleted(ctx context.Context, id, feedback string, actor identity.Actor) (*CandidateAssignment, error) {
	return s.close(ctx, id, StatusCompleted, feedback, "", audit.ActionAssignmentComplete, actor)
}

// Reject closes an active assignment as rejected.
func (s *Service) Reject(ctx context.Context, id, reason string, actor identity.Actor) (*CandidateAssignment, error) {
	return s.close(ctx, id, StatusRejected, "", reason, audit.ActionAssignmentReject, actor)
}

// Withdraw closes an active assignment as withdrawn.
func (s *Service) Withdraw(ctx context.Context, id, reason string, actor identity.Actor) (*CandidateAssignment, error) {
	return s.close(ctx, id, StatusWithdrawn, "", reason, audit.ActionAssignmentWithdraw, actor)
}

func (s *Service) close(ctx context.Context, id string, to CandidateStatus, feedback, reason string, action audit.Action, actor identity.Actor) (*CandidateAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	c, err := s.candidates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return nil, cerr.NewFieldError(cerr.InvalidState,
			fmt.Sprintf("assignment is already %s", c.Status), "status", c.Status)
	}

	before := audit.Snapshot(c)
	now := time.Now()
	c.Status = to
	c.Feedback = feedback
	c.Reason = reason
	c.ClosedAt = &now
	c.ClosedBy = actor.ID
	c.UpdatedAt = now

	rec := audit.Record{
		Actor:      actor,
		Action:     action,
		EntityType: CandidateEntityType,
		EntityID:   c.ID,
		Before:     before,
		After:      c,
		Success:    true,
		Duration:   time.Since(start),
		Context:    audit.RequestContextFrom(ctx),
	}
	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.candidates.Update(ctx, c); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventAssignmentClosed, CandidateEntityType, c.ID, actor.ID, map[string]string{
		"candidate_id": c.CandidateID,
		"status":       string(c.Status),
	})
	return c, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (*AgentAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.agents.Get(ctx, agentID)
}

func (s *Service) GetCandidateAssignment(ctx context.Context, id string) (*CandidateAssignment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.candidates.Get(ctx, id)
}

func (s *Service) ListCandidateAssignments(ctx context.Context, filter CandidateFilter, limit, offset int) ([]*CandidateAssignment, int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.candidates.List(ctx, filter, limit, offset)
}

// mergeIDs unions adds into existing, preserving order and deduplicating,
// then drops anything in removes.
func mergeIDs(existing, adds, removes []string) []string {
	seen := make(map[string]bool, len(existing)+len(adds))
	var out []string
	for _, id := range existing {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range adds {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(removes) == 0 {
		return out
	}
	drop := make(map[string]bool, len(removes))
	for _, id := range removes {
		drop[id] = true
	}
	filtered := out[:0]
	for _, id := range out {
		if !drop[id] {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
