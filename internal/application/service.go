package application

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

// EntityType is the audit entity type for applications.
const EntityType = "application"

// Service owns all application mutations. Every transition is a single
// read-modify-write against the stored version; the audit entry is written
// before the state write, and a failed state write leaves a paired failure
// entry behind.
type Service struct {
	repo         Repository
	auditor      *audit.Writer
	bus          *eventbus.Bus
	storeTimeout time.Duration
}

func NewService(repo Repository, auditor *audit.Writer, bus *eventbus.Bus, storeTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
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

type CreateRequest struct {
	CandidateID string
	JobID       string
	Source      string
	ReferrerID  string
}

// Create registers a new candidacy at the initial phase. A candidate has at
// most one application per job.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if req.CandidateID == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "candidate id is required", "candidate_id", req.CandidateID)
	}
	if req.JobID == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "job id is required", "job_id", req.JobID)
	}
	if existing, err := s.repo.FindByCandidateAndJob(ctx, req.CandidateID, req.JobID); err == nil {
		return nil, cerr.NewFieldError(cerr.Conflict, "candidate already applied to this job", "application_id", existing.ID)
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}

	now := time.Now()
	initial := InitialPhase()
	a := &Application{
		ID:          ulid.Make().String(),
		CandidateID: req.CandidateID,
		JobID:       req.JobID,
		Stage:       initial.Stage,
		Status:      initial.Status,
		Source:      req.Source,
		ReferrerID:  req.ReferrerID,
		StageHistory: []StageHistoryEntry{{
			Stage:     initial.Stage,
			Status:    initial.Status,
			Actor:     actor,
			CreatedAt: now,
		}},
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionApplicationCreate,
		EntityType: EntityType,
		EntityID:   a.ID,
		After:      a,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventApplicationCreated, EntityType, a.ID, actor.ID, map[string]string{
		"candidate_id": a.CandidateID,
		"job_id":       a.JobID,
	})
	return a, nil
}

// AdvanceStage moves the application to another allowed (stage, status)
// pair. Rejection and withdrawal are not reachable through here.
func (s *Service) AdvanceStage(ctx context.Context, id string, stage Stage, status Status, actor identity.Actor, note string) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := Phase{Stage: stage, Status: status}
	if !IsAllowedPhase(target) {
		return nil, cerr.NewFieldError(cerr.InvalidTransition,
			fmt.Sprintf("(%s, %s) is not a valid pipeline state", stage, status), "stage", stage).
			WithField("status", status)
	}
	if !CanTransition(a.Phase(), target) {
		return nil, cerr.NewFieldError(cerr.InvalidTransition,
			fmt.Sprintf("cannot move from (%s, %s) to (%s, %s)", a.Stage, a.Status, stage, status), "stage", stage).
			WithField("status", status)
	}

	before := audit.Snapshot(a)
	a.moveTo(target, actor, note, time.Now())

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionApplicationAdvance,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventApplicationStageChanged, EntityType, a.ID, actor.ID, map[string]string{
		"candidate_id": a.CandidateID,
		"job_id":       a.JobID,
		"stage":        string(a.Stage),
		"status":       string(a.Status),
	})
	return a, nil
}

// Reject forces the application into the rejected phase. Irreversible, legal
// from any non-terminal state.
func (s *Service) Reject(ctx context.Context, id, reason string, actor identity.Actor) (*Application, error) {
	return s.close(ctx, id, phaseRejected, reason, actor,
		audit.ActionApplicationReject, eventbus.EventApplicationRejected)
}

// Withdraw is the candidate-initiated terminal transition. Only the owning
// candidate may withdraw.
func (s *Service) Withdraw(ctx context.Context, id, reason string, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(identity.RoleCandidate) || actor.ID != a.CandidateID {
		return nil, cerr.NewFieldError(cerr.PermissionDenied, "only the owning candidate may withdraw", "actor_id", actor.ID)
	}
	return s.close(ctx, id, phaseWithdrawn, reason, actor,
		audit.ActionApplicationWithdraw, eventbus.EventApplicationWithdrawn)
}

func (s *Service) close(ctx context.Context, id string, terminal Phase, reason string, actor identity.Actor, action audit.Action, event eventbus.EventType) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, cerr.NewFieldError(cerr.InvalidState,
			fmt.Sprintf("application is already %s", a.Stage), "stage", a.Stage)
	}

	before := audit.Snapshot(a)
	a.moveTo(terminal, actor, reason, time.Now())

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   action,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(event, EntityType, a.ID, actor.ID, map[string]string{
		"candidate_id": a.CandidateID,
		"job_id":       a.JobID,
		"reason":       reason,
	})
	return a, nil
}

type OfferInput struct {
	Salary    int64
	Currency  string
	StartDate *time.Time
	Benefits  []string
	ExpiresAt *time.Time
	Note      string
}

// SendOffer extends an offer. Only legal from (interview, interviewed).
func (s *Service) SendOffer(ctx context.Context, id string, in OfferInput, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Phase() != phaseInterviewed {
		return nil, cerr.NewFieldError(cerr.InvalidState,
			fmt.Sprintf("offer can only be sent from (%s, %s)", StageInterview, StatusInterviewed), "stage", a.Stage).
			WithField("status", a.Status)
	}

	before := audit.Snapshot(a)
	now := time.Now()
	a.Offer = &Offer{
		Salary:    in.Salary,
		Currency:  in.Currency,
		StartDate: in.StartDate,
		Benefits:  in.Benefits,
		ExpiresAt: in.ExpiresAt,
		SentAt:    &now,
		Note:      in.Note,
	}
	a.moveTo(phaseOfferExtended, actor, "", now)

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionOfferSend,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventOfferSent, EntityType, a.ID, actor.ID, map[string]string{
		"candidate_id": a.CandidateID,
		"job_id":       a.JobID,
	})
	return a, nil
}

// RespondToOffer records the candidate's reply. Acceptance moves the
// application to hired; the job/company hire counters are updated by the
// event handler listening for the response, not inline here.
func (s *Service) RespondToOffer(ctx context.Context, id string, response OfferResponse, note string, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(identity.RoleCandidate) || actor.ID != a.CandidateID {
		return nil, cerr.NewFieldError(cerr.PermissionDenied, "only the owning candidate may respond", "actor_id", actor.ID)
	}
	if !response.IsValid() {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "unknown offer response", "response", response)
	}
	if a.Offer == nil || a.Offer.SentAt == nil {
		return nil, cerr.NewFieldError(cerr.InvalidState, "no offer has been sent", "application_id", a.ID)
	}
	if a.Offer.RespondedAt != nil {
		return nil, cerr.NewFieldError(cerr.InvalidState, "offer has already been responded to", "response", a.Offer.Response)
	}

	before := audit.Snapshot(a)
	now := time.Now()
	a.Offer.Response = response
	a.Offer.RespondedAt = &now
	a.Offer.Note = note

	switch response {
	case OfferAccepted:
		a.moveTo(phaseHired, actor, note, now)
	case OfferRejected:
		a.moveTo(phaseOfferDeclined, actor, note, now)
	default:
		// negotiating keeps the current phase
		a.LastActivityAt = now
		a.UpdatedAt = now
	}

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionOfferRespond,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventOfferResponded, EntityType, a.ID, actor.ID, map[string]string{
		"candidate_id": a.CandidateID,
		"job_id":       a.JobID,
		"response":     string(response),
	})
	return a, nil
}

// MarkAsViewed is idempotent: the first call stamps viewed_at, later calls
// change nothing.
func (s *Service) MarkAsViewed(ctx context.Context, id string, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ViewedByEmployer {
		return a, nil
	}

	before := audit.Snapshot(a)
	now := time.Now()
	a.ViewedByEmployer = true
	a.ViewedAt = &now
	a.UpdatedAt = now

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionApplicationView,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// AddNote appends a note. Notes are append-only like history.
func (s *Service) AddNote(ctx context.Context, id, content string, internal bool, actor identity.Actor) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if content == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "note content is required", "content", content)
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := audit.Snapshot(a)
	now := time.Now()
	a.Notes = append(a.Notes, Note{
		ID:        ulid.Make().String(),
		Content:   content,
		AuthorID:  actor.ID,
		Internal:  internal,
		CreatedAt: now,
	})
	a.LastActivityAt = now
	a.UpdatedAt = now

	if err := s.persist(ctx, a, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionApplicationNote,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Application, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, candidateID, jobID string, stage Stage, limit, offset int) ([]*Application, int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.List(ctx, candidateID, jobID, stage, limit, offset)
}

// persist writes the audit entry first, then the state. A failed state write
// leaves a paired failure entry so reconciliation can spot the gap.
func (s *Service) persist(ctx context.Context, a *Application, before map[string]any, rec audit.Record) error {
	rec.EntityType = EntityType
	rec.EntityID = a.ID
	rec.Before = before
	rec.After = a
	rec.Success = true
	rec.Context = audit.RequestContextFrom(ctx)

	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return err
	}
	return nil
}
