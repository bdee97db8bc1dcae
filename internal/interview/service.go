package interview

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentpipe/talentpipe/internal/application"
	"github.com/talentpipe/talentpipe/internal/audit"
	"github.com/talentpipe/talentpipe/internal/eventbus"
	"github.com/talentpipe/talentpipe/internal/identity"
	"github.com/talentpipe/talentpipe/pkg/cerr"
)

const EntityType = "interview"

type Service struct {
	repo         Repository
	appRepo      application.Repository
	auditor      *audit.Writer
	bus          *eventbus.Bus
	storeTimeout time.Duration
}

func NewService(repo Repository, appRepo application.Repository, auditor *audit.Writer, bus *eventbus.Bus, storeTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		appRepo:      appRepo,
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

type ScheduleRequest struct {
	ApplicationID   string
	Type            Type
	Round           int
	ScheduledAt     time.Time
	DurationMinutes int
	Interviewers    []string
}

// Schedule creates an interview for an application that has reached the
// interview stage. The scheduled time must be strictly in the future.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	app, err := s.appRepo.Get(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Stage != application.StageInterview {
		return nil, cerr.NewFieldError(cerr.InvalidState,
			fmt.Sprintf("application is in stage %s, not %s", app.Stage, application.StageInterview), "stage", app.Stage)
	}
	if !req.ScheduledAt.After(time.Now()) {
		return nil, cerr.NewFieldError(cerr.PastDate, "scheduled time must be in the future", "scheduled_at", req.ScheduledAt)
	}
	if len(req.Interviewers) == 0 {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "at least one interviewer is required", "interviewers", req.Interviewers)
	}

	now := time.Now()
	i := &Interview{
		ID:              ulid.Make().String(),
		ApplicationID:   req.ApplicationID,
		Type:            req.Type,
		Round:           req.Round,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Interviewers:    req.Interviewers,
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := s.auditor.Write(ctx, audit.Record{
		Actor:      actor,
		Action:     audit.ActionInterviewSchedule,
		EntityType: EntityType,
		EntityID:   i.ID,
		After:      i,
		Success:    true,
		Context:    audit.RequestContextFrom(ctx),
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, i); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventInterviewScheduled, EntityType, i.ID, actor.ID, map[string]string{
		"application_id": i.ApplicationID,
		"scheduled_at":   i.ScheduledAt.Format(time.RFC3339),
	})
	return i, nil
}

// Confirm moves a scheduled interview to confirmed.
func (s *Service) Confirm(ctx context.Context, id string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Status != StatusScheduled {
		return nil, invalidStatus("confirm", i.Status)
	}

	before := audit.Snapshot(i)
	i.Status = StatusConfirmed
	i.UpdatedAt = time.Now()

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewConfirm,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return i, nil
}

// Reschedule moves the interview to a new future time and appends to the
// reschedule history. Legal only while scheduled or confirmed.
func (s *Service) Reschedule(ctx context.Context, id string, newTime time.Time, reason string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Status != StatusScheduled && i.Status != StatusConfirmed {
		return nil, invalidStatus("reschedule", i.Status)
	}
	if !newTime.After(time.Now()) {
		return nil, cerr.NewFieldError(cerr.PastDate, "new time must be in the future", "new_time", newTime)
	}

	before := audit.Snapshot(i)
	now := time.Now()
	i.RescheduleHistory = append(i.RescheduleHistory, RescheduleEntry{
		PreviousTime: i.ScheduledAt,
		NewTime:      newTime,
		Reason:       reason,
		Actor:        actor,
		CreatedAt:    now,
	})
	i.ScheduledAt = newTime
	i.UpdatedAt = now

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewReschedule,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventInterviewRescheduled, EntityType, i.ID, actor.ID, map[string]string{
		"application_id": i.ApplicationID,
		"scheduled_at":   i.ScheduledAt.Format(time.RFC3339),
		"reason":         reason,
	})
	return i, nil
}

// Start stamps the actual start time. Legal only from confirmed.
func (s *Service) Start(ctx context.Context, id string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Status != StatusConfirmed {
		return nil, invalidStatus("start", i.Status)
	}

	before := audit.Snapshot(i)
	now := time.Now()
	i.Status = StatusInProgress
	i.ActualStartAt = &now
	i.UpdatedAt = now

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewStart,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return i, nil
}

// Complete finishes the interview. Legal from scheduled, confirmed or
// in progress; feedback is not required for completion.
func (s *Service) Complete(ctx context.Context, id string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Status.IsTerminal() {
		return nil, invalidStatus("complete", i.Status)
	}

	before := audit.Snapshot(i)
	now := time.Now()
	i.Status = StatusCompleted
	i.ActualEndAt = &now
	i.UpdatedAt = now

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewComplete,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventInterviewCompleted, EntityType, i.ID, actor.ID, map[string]string{
		"application_id": i.ApplicationID,
		"round":          fmt.Sprintf("%d", i.Round),
	})
	return i, nil
}

// Cancel terminates the interview. The scheduled time is kept for the
// historical record.
func (s *Service) Cancel(ctx context.Context, id, reason string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Status.IsTerminal() {
		return nil, invalidStatus("cancel", i.Status)
	}

	before := audit.Snapshot(i)
	i.Status = StatusCancelled
	i.UpdatedAt = time.Now()

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewCancel,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventInterviewCancelled, EntityType, i.ID, actor.ID, map[string]string{
		"application_id": i.ApplicationID,
		"reason":         reason,
	})
	return i, nil
}

// AddFeedback records one interviewer's feedback. Each listed interviewer
// may submit exactly once; the average rating is always derived from the
// list, never stored.
func (s *Service) AddFeedback(ctx context.Context, id string, fb Feedback, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if fb.Rating < 1 || fb.Rating > 5 {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "rating must be between 1 and 5", "rating", fb.Rating)
	}

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !i.hasInterviewer(fb.InterviewerID) {
		return nil, cerr.NewFieldError(cerr.PermissionDenied, "not an assigned interviewer", "interviewer_id", fb.InterviewerID)
	}
	if i.HasFeedbackFrom(fb.InterviewerID) {
		return nil, cerr.NewFieldError(cerr.Conflict, "interviewer already submitted feedback", "interviewer_id", fb.InterviewerID)
	}

	before := audit.Snapshot(i)
	now := time.Now()
	fb.SubmittedAt = now
	i.Feedback = append(i.Feedback, fb)
	i.UpdatedAt = now

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewFeedback,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return i, nil
}

// AddFollowUp appends a follow-up action item.
func (s *Service) AddFollowUp(ctx context.Context, id, description string, dueDate *time.Time, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	if description == "" {
		return nil, cerr.NewFieldError(cerr.InvalidArgument, "description is required", "description", description)
	}

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := audit.Snapshot(i)
	i.FollowUps = append(i.FollowUps, FollowUp{
		ID:          ulid.Make().String(),
		Description: description,
		DueDate:     dueDate,
	})
	i.UpdatedAt = time.Now()

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewFollowUp,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return i, nil
}

// CompleteFollowUp marks a follow-up done.
func (s *Service) CompleteFollowUp(ctx context.Context, id, followUpID string, actor identity.Actor) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	start := time.Now()

	i, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	found := false
	before := audit.Snapshot(i)
	now := time.Now()
	for idx := range i.FollowUps {
		if i.FollowUps[idx].ID == followUpID {
			i.FollowUps[idx].Completed = true
			i.FollowUps[idx].CompletedAt = &now
			found = true
			break
		}
	}
	if !found {
		return nil, cerr.NewFieldError(cerr.NotFound, "follow-up not found", "follow_up_id", followUpID)
	}
	i.UpdatedAt = now

	if err := s.persist(ctx, i, before, audit.Record{
		Actor:    actor,
		Action:   audit.ActionInterviewFollowUp,
		Duration: time.Since(start),
	}); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Interview, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, applicationID string, status Status, limit, offset int) ([]*Interview, int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.repo.List(ctx, applicationID, status, limit, offset)
}

func (s *Service) persist(ctx context.Context, i *Interview, before map[string]any, rec audit.Record) error {
	rec.EntityType = EntityType
	rec.EntityID = i.ID
	rec.Before = before
	rec.After = i
	rec.Success = true
	rec.Context = audit.RequestContextFrom(ctx)

	if _, err := s.auditor.Write(ctx, rec); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, i); err != nil {
		s.auditor.WriteFailure(ctx, rec, err)
		return err
	}
	return nil
}

func invalidStatus(op string, status Status) error {
	return cerr.NewFieldError(cerr.InvalidState,
		fmt.Sprintf("cannot %s an interview in status %s", op, status), "status", status)
}
